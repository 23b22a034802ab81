package db

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/config"
	"o3-ttgifts-backend/pkg/database"
)

// Collection names.
const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
	paymentsCollection      = "payments"
	accountsCollection      = "tiktok_accounts"
	couponsCollection       = "coupons"
	instancesCollection     = "tracker_instances"
	instanceDataCollection  = "instance_data"
	auditLogsCollection     = "audit_logs"
)

// OpenStore connects the document store selected by DATABASE_DRIVER. app is
// only used by the Firestore driver and may be nil otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) (database.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverFirestore:
		if app == nil {
			return nil, fmt.Errorf("firestore driver requires an initialized Firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.Firestore: %w", err)
		}
		logger.Info("Firestore client initialized")
		return database.NewFirestoreStore(client), nil

	case config.DriverMongo:
		store, err := database.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := EnsureMongoIndexes(ctx, store); err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("MongoDB connected", zap.String("database", cfg.MongoDatabase))
		return store, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		return database.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

type mongoIndex struct {
	collection string
	fields     []string
	unique     bool
	sparse     bool
}

var mongoIndexes = []mongoIndex{
	{usersCollection, []string{"email"}, true, true},
	{usersCollection, []string{"createdAt"}, false, false},
	{subscriptionsCollection, []string{"userId", "createdAt"}, false, false},
	{subscriptionsCollection, []string{"stripeCustomerId"}, false, false},
	{subscriptionsCollection, []string{"stripeSubscriptionId"}, false, true},
	{subscriptionsCollection, []string{"status"}, false, false},
	{paymentsCollection, []string{"userId", "createdAt"}, false, false},
	{paymentsCollection, []string{"status", "createdAt"}, false, false},
	{accountsCollection, []string{"userId", "status"}, false, false},
	{accountsCollection, []string{"accountId"}, true, true},
	{instanceDataCollection, []string{"accountId"}, false, false},
	{auditLogsCollection, []string{"timestamp"}, false, false},
}

// EnsureMongoIndexes creates the secondary indexes queries rely on, including
// the unique ones that back email and external account ID uniqueness.
func EnsureMongoIndexes(ctx context.Context, store *database.MongoStore) error {
	for _, idx := range mongoIndexes {
		if err := store.EnsureIndex(ctx, idx.collection, idx.fields, idx.unique, idx.sparse); err != nil {
			return err
		}
	}
	return nil
}
