package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

var makeAdminCmd = &cobra.Command{
	Use:   "make-admin <email>",
	Short: "Grant the admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store database.Store) error {
			users := core.NewUserService(db.NewUserRepository(store), zap.NewNop())
			user, err := users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			if user.IsAdmin() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already an admin\n", user.Email)
				return nil
			}
			if _, err := users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", user.Email)
			return nil
		})
	},
}

var checkUserCmd = &cobra.Command{
	Use:   "check-user <email>",
	Short: "Show a user with its latest subscription and account count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store database.Store) error {
			users := core.NewUserService(db.NewUserRepository(store), zap.NewNop())
			user, err := users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			subs, err := db.NewSubscriptionRepository(store).ListByUser(ctx, user.ID)
			if err != nil {
				return err
			}
			accounts, err := db.NewAccountRepository(store).CountByUser(ctx, user.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID:\t%s\n", user.ID)
			fmt.Fprintf(w, "Email:\t%s\n", user.Email)
			fmt.Fprintf(w, "Name:\t%s\n", user.DisplayName)
			fmt.Fprintf(w, "Role:\t%s\n", user.Role)
			fmt.Fprintf(w, "Active:\t%t\n", user.IsActive)
			fmt.Fprintf(w, "Created:\t%s\n", user.CreatedAt.Format(time.RFC3339))
			if len(subs) == 0 {
				fmt.Fprintf(w, "Subscription:\tnone\n")
			} else {
				latest := subs[0]
				fmt.Fprintf(w, "Subscription:\t%s (%s)\n", latest.Plan, latest.Status)
				if latest.CurrentPeriodEnd != nil {
					fmt.Fprintf(w, "Period ends:\t%s\n", latest.CurrentPeriodEnd.Format(time.RFC3339))
				}
			}
			fmt.Fprintf(w, "Accounts:\t%d\n", accounts)
			return w.Flush()
		})
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Print the plan catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLAN\tNAME\tMONTHLY\tACCOUNTS\tGIFT GROUPS")
		for _, p := range models.Plans() {
			fmt.Fprintf(w, "%s\t%s\t$%.2f\t%d\t%d\n", p.Type, p.Name, models.ToMajorUnits(p.MonthlyPrice), p.Accounts, p.GiftGroups)
		}
		fmt.Fprintf(w, "\nDeployment fee: $%.2f, extra account: $%.2f/month\n",
			models.ToMajorUnits(models.DeploymentFee), models.ToMajorUnits(models.AdditionalAccountPrice))
		return w.Flush()
	},
}

func newMintTokenCmd() *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "mint-token",
		Short: "Print a development token for AUTH_PROVIDER=jwt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("AUTH_JWT_SECRET")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set; pass --secret or export it")
			}
			token, err := auth.MintToken(secret, auth.Identity{
				UID:           v.GetString("uid"),
				Email:         v.GetString("email"),
				EmailVerified: true,
				Name:          v.GetString("name"),
			}, v.GetDuration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("uid", "", "subject of the token (required)")
	flags.String("email", "", "email claim (required)")
	flags.String("name", "", "display name claim")
	flags.Duration("ttl", 24*time.Hour, "token lifetime")
	flags.String("secret", "", "signing secret (defaults to $AUTH_JWT_SECRET)")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("email")

	_ = v.BindPFlag("uid", flags.Lookup("uid"))
	_ = v.BindPFlag("email", flags.Lookup("email"))
	_ = v.BindPFlag("name", flags.Lookup("name"))
	_ = v.BindPFlag("ttl", flags.Lookup("ttl"))
	_ = v.BindPFlag("AUTH_JWT_SECRET", flags.Lookup("secret"))
	return cmd
}
