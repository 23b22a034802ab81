package models

import "time"

// PaymentType classifies a ledger entry.
type PaymentType string

const (
	PaymentTypeDeploymentFee PaymentType = "deployment_fee"
	PaymentTypeSubscription  PaymentType = "subscription"
	PaymentTypeRefund        PaymentType = "refund"
)

// PaymentStatus is the outcome of a ledger entry.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is an append-only ledger row. Amount is in minor currency units.
// The document ID is derived from the billing event that produced the row.
type Payment struct {
	ID                    string        `json:"id" firestore:"id" bson:"_id"`
	UserID                string        `json:"userId" firestore:"userId" bson:"userId"`
	SubscriptionID        string        `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty" bson:"subscriptionId,omitempty"`
	StripeEventID         string        `json:"stripeEventId,omitempty" firestore:"stripeEventId,omitempty" bson:"stripeEventId,omitempty"`
	StripePaymentIntentID string        `json:"stripePaymentIntentId,omitempty" firestore:"stripePaymentIntentId,omitempty" bson:"stripePaymentIntentId,omitempty"`
	StripeInvoiceID       string        `json:"stripeInvoiceId,omitempty" firestore:"stripeInvoiceId,omitempty" bson:"stripeInvoiceId,omitempty"`
	Type                  PaymentType   `json:"type" firestore:"type" bson:"type"`
	Amount                int64         `json:"amount" firestore:"amount" bson:"amount"`
	Currency              string        `json:"currency" firestore:"currency" bson:"currency"`
	Status                PaymentStatus `json:"status" firestore:"status" bson:"status"`
	Description           string        `json:"description,omitempty" firestore:"description,omitempty" bson:"description,omitempty"`
	CreatedAt             time.Time     `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}
