// Command ttgiftsctl is the operator CLI for the O3 TT Gifts backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/config"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/pkg/database"
)

// openStore connects to the store configured in the environment. Tests
// replace it with an in-memory store.
var openStore = func(ctx context.Context) (database.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	var app *firebase.App
	if cfg.DatabaseDriver == config.DriverFirestore {
		if app, err = db.InitFirebase(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}
	return db.OpenStore(ctx, cfg, app, logger)
}

var rootCmd = &cobra.Command{
	Use:           "ttgiftsctl",
	Short:         "Operator tools for the O3 TT Gifts backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(makeAdminCmd, checkUserCmd, plansCmd, newMintTokenCmd())
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store database.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
