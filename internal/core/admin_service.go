package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

const (
	recentUsersLimit   = 10
	userPaymentsLimit  = 20
	summaryConcurrency = 8
	reportingWindow    = 30 * 24 * time.Hour
)

type adminService struct {
	userRepo     db.UserRepository
	subRepo      db.SubscriptionRepository
	accountRepo  db.AccountRepository
	paymentRepo  db.PaymentRepository
	auditService AuditService
	logger       *zap.Logger
	now          clock
}

// NewAdminService creates an AdminService.
func NewAdminService(
	userRepo db.UserRepository,
	subRepo db.SubscriptionRepository,
	accountRepo db.AccountRepository,
	paymentRepo db.PaymentRepository,
	as AuditService,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		userRepo:     userRepo,
		subRepo:      subRepo,
		accountRepo:  accountRepo,
		paymentRepo:  paymentRepo,
		auditService: as,
		logger:       logger,
		now:          systemClock,
	}
}

func sumAmounts(payments []*models.Payment) int64 {
	var total int64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

// Dashboard runs its independent queries concurrently.
func (s *adminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	since := s.now().Add(-reportingWindow)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.TotalUsers, err = s.userRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.ActiveSubscriptions, err = s.subRepo.CountByStatus(gctx, models.LiveStatuses...)
		return err
	})
	g.Go(func() (err error) {
		d.TotalAccounts, err = s.accountRepo.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.PendingAccounts, err = s.accountRepo.CountByStatus(gctx, models.AccountPending)
		return err
	})
	g.Go(func() (err error) {
		d.RecentUsers, err = s.userRepo.ListRecent(gctx, recentUsersLimit)
		return err
	})
	g.Go(func() error {
		succeeded, err := s.paymentRepo.ListByStatusSince(gctx, models.PaymentSucceeded, time.Time{})
		if err != nil {
			return err
		}
		d.TotalRevenue = sumAmounts(succeeded)
		for _, p := range succeeded {
			if !p.CreatedAt.Before(since) {
				d.RevenueLast30Days += p.Amount
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return d, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func (s *adminService) ListUsers(ctx context.Context, filter UserFilter) (*UserPage, error) {
	page := filter.Page.normalize(20)
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := users[:0:0]
	for _, u := range users {
		if search == "" || containsFold(u.Email, search) || containsFold(u.DisplayName, search) {
			matched = append(matched, u)
		}
	}

	visible := paginate(matched, page)
	summaries := make([]UserSummary, len(visible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, u := range visible {
		g.Go(func() error {
			sub, err := governingSubscription(gctx, s.subRepo, u.ID)
			if err != nil {
				return err
			}
			count, err := s.accountRepo.CountByUser(gctx, u.ID)
			if err != nil {
				return err
			}
			summaries[i] = UserSummary{User: u, Subscription: sub, AccountCount: count}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to summarize users: %w", err)
	}

	return &UserPage{Users: summaries, Pagination: newPagination(page, len(matched))}, nil
}

func (s *adminService) UserDetail(ctx context.Context, userID string) (*UserDetail, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	detail := &UserDetail{User: user}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, err := s.subRepo.ListByUser(gctx, userID)
		if err != nil {
			return err
		}
		if len(subs) > 0 {
			detail.Subscription = subs[0]
		}
		return nil
	})
	g.Go(func() (err error) {
		detail.Accounts, err = s.accountRepo.ListByUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		detail.Payments, err = s.paymentRepo.ListByUser(gctx, userID, userPaymentsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load user detail: %w", err)
	}
	return detail, nil
}

func (s *adminService) UpdateUser(ctx context.Context, actor Actor, userID string, req models.AdminUpdateUserRequest) (*models.User, error) {
	if req.Role == nil && req.IsActive == nil {
		return nil, validationError("No valid fields to update")
	}
	if req.Role != nil && !req.Role.Valid() {
		return nil, validationError("Invalid role. Must be 'user' or 'admin'")
	}

	user, err := s.userRepo.Update(ctx, userID, func(u *models.User) error {
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	details := map[string]string{}
	if req.Role != nil {
		details["role"] = string(*req.Role)
	}
	if req.IsActive != nil {
		details["is_active"] = fmt.Sprint(*req.IsActive)
	}
	s.logger.Info("Admin updated user", zap.String("user_id", userID), zap.Any("changes", details))
	s.auditService.Record(ctx, actor, models.ActionUserUpdate, models.TargetUser, userID, details)
	return user, nil
}

func accountMatches(a *models.TikTokAccount, filter AccountFilter, search string) bool {
	switch filter.Status {
	case "":
	case "disconnection":
		if !a.DisconnectionRequested {
			return false
		}
	default:
		if string(a.Status) != filter.Status {
			return false
		}
	}
	if search == "" {
		return true
	}
	return containsFold(a.AccountID, search) || containsFold(a.AccountName, search) || containsFold(a.AccountHandle, search)
}

func (s *adminService) ListAccounts(ctx context.Context, filter AccountFilter) (*AccountPage, error) {
	page := filter.Page.normalize(50)
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := accounts[:0:0]
	for _, a := range accounts {
		if accountMatches(a, filter, search) {
			matched = append(matched, a)
		}
	}

	visible := paginate(matched, page)
	summaries := make([]AccountSummary, len(visible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, a := range visible {
		g.Go(func() error {
			summary := AccountSummary{Account: a}
			owner, err := s.userRepo.GetByID(gctx, a.UserID)
			switch {
			case err == nil:
				summary.Owner = owner
			case !db.IsNotFound(err):
				return err
			}
			subs, err := s.subRepo.ListByUser(gctx, a.UserID, models.LiveStatuses...)
			if err != nil {
				return err
			}
			if len(subs) > 0 {
				summary.Subscription = subs[0]
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to summarize accounts: %w", err)
	}

	return &AccountPage{Accounts: summaries, Pagination: newPagination(page, len(matched))}, nil
}

// UpdateAccount assigns an access URL or changes the status. Assigning a URL
// to a pending account activates it.
func (s *adminService) UpdateAccount(ctx context.Context, actor Actor, accountID string, req models.AdminUpdateAccountRequest) (*models.TikTokAccount, error) {
	statusValid := req.Status != nil && (*req.Status == models.AccountPending ||
		*req.Status == models.AccountActive || *req.Status == models.AccountInactive)
	if !statusValid && req.AccessURL == nil {
		return nil, validationError("No valid fields to update")
	}

	account, err := s.accountRepo.Update(ctx, accountID, func(a *models.TikTokAccount) error {
		if statusValid {
			a.Status = *req.Status
		}
		if req.AccessURL != nil {
			a.AccessURL = strings.TrimSpace(*req.AccessURL)
			if a.AccessURL != "" && a.Status == models.AccountPending {
				a.Status = models.AccountActive
			}
		}
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	details := map[string]string{"status": string(account.Status)}
	if req.AccessURL != nil {
		details["access_url"] = account.AccessURL
	}
	s.auditService.Record(ctx, actor, models.ActionAccountUpdate, models.TargetAccount, accountID, details)
	return account, nil
}

func (s *adminService) DeleteAccount(ctx context.Context, actor Actor, accountID string) error {
	if err := s.accountRepo.Delete(ctx, accountID); err != nil {
		if db.IsNotFound(err) {
			return errAccountNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	s.logger.Info("Admin deleted account", zap.String("account_id", accountID))
	s.auditService.Record(ctx, actor, models.ActionAccountDelete, models.TargetAccount, accountID, nil)
	return nil
}

var accountStatuses = []models.AccountStatus{
	models.AccountPending, models.AccountActive, models.AccountInactive, models.AccountSuspended,
}

func (s *adminService) Analytics(ctx context.Context) (*Analytics, error) {
	since := s.now().Add(-reportingWindow)
	a := &Analytics{
		SubscriptionBreakdown:  map[models.PlanType]int{},
		AccountStatusBreakdown: map[models.AccountStatus]int64{},
	}
	statusCounts := make([]int64, len(accountStatuses))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.NewUsersLast30Days, err = s.userRepo.CountCreatedSince(gctx, since)
		return err
	})
	g.Go(func() error {
		recent, err := s.subRepo.ListCreatedSince(gctx, since)
		if err != nil {
			return err
		}
		for _, sub := range recent {
			if sub.Status == models.StatusActive || sub.Status == models.StatusTrialing {
				a.NewSubscriptionsLast30Days++
			}
		}
		return nil
	})
	g.Go(func() error {
		live, err := s.subRepo.ListByStatus(gctx, models.LiveStatuses...)
		if err != nil {
			return err
		}
		for _, sub := range live {
			a.SubscriptionBreakdown[sub.Plan]++
		}
		return nil
	})
	for i, status := range accountStatuses {
		g.Go(func() (err error) {
			statusCounts[i], err = s.accountRepo.CountByStatus(gctx, status)
			return err
		})
	}
	g.Go(func() error {
		payments, err := s.paymentRepo.ListByStatusSince(gctx, models.PaymentSucceeded, since)
		if err != nil {
			return err
		}
		a.RevenueLast30Days = sumAmounts(payments)
		a.DailyRevenue = dailyRevenue(payments)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build analytics: %w", err)
	}
	for i, status := range accountStatuses {
		if statusCounts[i] > 0 {
			a.AccountStatusBreakdown[status] = statusCounts[i]
		}
	}
	return a, nil
}

// dailyRevenue buckets payments by UTC calendar day, oldest day first.
func dailyRevenue(payments []*models.Payment) []DailyRevenue {
	byDay := map[string]*DailyRevenue{}
	for _, p := range payments {
		day := p.CreatedAt.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &DailyRevenue{Date: day}
			byDay[day] = entry
		}
		entry.Amount += p.Amount
		entry.Count++
	}
	out := make([]DailyRevenue, 0, len(byDay))
	for _, entry := range byDay {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (s *adminService) RecentActivity(ctx context.Context, limit int) (*RecentActivity, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	r := &RecentActivity{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.Users, err = s.userRepo.ListRecent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		r.Subscriptions, err = s.subRepo.ListRecent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		r.Payments, err = s.paymentRepo.ListRecent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		r.Accounts, err = s.accountRepo.ListRecent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		r.AuditLogs, err = s.auditService.ListRecent(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}
	return r, nil
}
