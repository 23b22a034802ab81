package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/crypto"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

const testSignature = "t=1,v1=ok"

// fakeEngine records provider calls and decodes webhook payloads without
// verifying a real signature.
type fakeEngine struct {
	mu        sync.Mutex
	customers int
	checkouts []billing.CheckoutRequest
	changes   []billing.PlanChange
	cancels   map[string]bool
	invoices  map[string][]billing.Invoice
	failNext  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{cancels: map[string]bool{}, invoices: map[string][]billing.Invoice{}}
}

func (f *fakeEngine) takeFailure() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeEngine) CreateCustomer(_ context.Context, _ billing.CustomerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	f.customers++
	return fmt.Sprintf("cus_%d", f.customers), nil
}

func (f *fakeEngine) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.checkouts = append(f.checkouts, req)
	id := fmt.Sprintf("cs_%d", len(f.checkouts))
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (f *fakeEngine) lastCheckout() billing.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkouts[len(f.checkouts)-1]
}

func (f *fakeEngine) ParseEvent(payload []byte, signature string) (billing.Event, error) {
	if signature != testSignature {
		return nil, billing.ErrInvalidSignature
	}
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	return billing.DecodeEvent(envelope.ID, envelope.Type, envelope.Data.Object)
}

func (f *fakeEngine) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) (*billing.SubscriptionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.cancels[subscriptionID] = cancel
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	return &billing.SubscriptionState{ID: subscriptionID, Status: "active", CancelAtPeriodEnd: cancel, CurrentPeriodEnd: &end}, nil
}

func (f *fakeEngine) ChangePlan(_ context.Context, subscriptionID string, change billing.PlanChange) (*billing.SubscriptionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.changes = append(f.changes, change)
	return &billing.SubscriptionState{ID: subscriptionID, Status: "active"}, nil
}

func (f *fakeEngine) ListInvoices(_ context.Context, customerID string, _ int) ([]billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invoices[customerID], nil
}

// testEnv wires every service over one in-memory store.
type testEnv struct {
	store    database.Store
	engine   *fakeEngine
	users    db.UserRepository
	subs     db.SubscriptionRepository
	payments db.PaymentRepository
	accounts db.AccountRepository
	coupons  db.CouponRepository

	userService     UserService
	auditService    AuditService
	couponService   CouponService
	checkout        CheckoutService
	reconciliation  ReconciliationService
	subscriptions   SubscriptionService
	accountService  AccountService
	instanceService InstanceService
	adminService    AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := database.NewMemoryStore()
	engine := newFakeEngine()

	sealer, err := crypto.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		engine:   engine,
		users:    db.NewUserRepository(store),
		subs:     db.NewSubscriptionRepository(store),
		payments: db.NewPaymentRepository(store),
		accounts: db.NewAccountRepository(store),
		coupons:  db.NewCouponRepository(store),
	}
	env.userService = NewUserService(env.users, logger)
	env.auditService = NewAuditService(db.NewAuditRepository(store), logger)
	env.couponService = NewCouponService(env.coupons, env.auditService, logger)
	env.checkout = NewCheckoutService(env.subs, env.payments, env.couponService, engine, "https://app.test/", logger)
	env.reconciliation = NewReconciliationService(env.subs, env.payments, env.couponService, engine, logger)
	env.subscriptions = NewSubscriptionService(env.subs, env.accounts, engine, logger)
	env.accountService = NewAccountService(env.accounts, env.subs, logger)
	env.instanceService = NewInstanceService(db.NewInstanceRepository(store), db.NewInstanceDataRepository(store),
		env.accounts, sealer, env.auditService, logger)
	env.adminService = NewAdminService(env.users, env.subs, env.accounts, env.payments, env.auditService, logger)
	return env
}

func (e *testEnv) provision(t *testing.T, uid string) *models.User {
	t.Helper()
	res, err := e.userService.ResolveOrProvision(context.Background(), &auth.Identity{UID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return res.User
}

// activeSubscription stores a subscription that is already live.
func (e *testEnv) activeSubscription(t *testing.T, uid string, plan models.PlanType) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:               uid,
		StripeCustomerID:     "cus_" + uid,
		StripeSubscriptionID: "sub_" + uid,
		Plan:                 plan,
		Status:               models.StatusActive,
		DeploymentFeePaid:    true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, e.subs.Create(context.Background(), sub))
	return sub
}

func (e *testEnv) deliver(t *testing.T, id, eventType string, object interface{}) (Outcome, error) {
	t.Helper()
	return e.reconciliation.HandleWebhook(context.Background(), eventPayload(t, id, eventType, object), testSignature)
}

func eventPayload(t *testing.T, id, eventType string, object interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func checkoutObject(sessionID, customerID, subscriptionID string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"customer":       customerID,
		"subscription":   subscriptionID,
		"payment_intent": "pi_" + sessionID,
		"metadata":       metadata,
	}
}
