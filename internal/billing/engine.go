// Package billing wraps the payments provider behind a narrow capability so
// services can be exercised without network access.
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Engine is the billing provider capability used by the services.
type Engine interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseEvent verifies a webhook payload and decodes it into an Event.
	ParseEvent(payload []byte, signatureHeader string) (Event, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*SubscriptionState, error)
	ChangePlan(ctx context.Context, subscriptionID string, change PlanChange) (*SubscriptionState, error)
	ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)
}

// CustomerRequest describes a new billing customer.
type CustomerRequest struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// LineItem is one charge in a checkout. Amounts are in minor units.
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	// Recurring items are billed monthly; others once.
	Recurring bool
}

// CheckoutRequest describes a subscription checkout.
type CheckoutRequest struct {
	CustomerID           string
	Currency             string
	LineItems            []LineItem
	SuccessURL           string
	CancelURL            string
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
}

// CheckoutSession is the hosted checkout the user is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// PlanChange is the new recurring price for a subscription.
type PlanChange struct {
	ProductName        string
	ProductDescription string
	MonthlyAmount      int64
	Currency           string
}

// SubscriptionState is the provider's view of a subscription after a change.
type SubscriptionState struct {
	ID                 string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// Invoice is an invoice issued by the provider.
type Invoice struct {
	ID               string    `json:"id"`
	Number           string    `json:"number,omitempty"`
	Status           string    `json:"status"`
	AmountDue        int64     `json:"amountDue"`
	AmountPaid       int64     `json:"amountPaid"`
	Currency         string    `json:"currency"`
	HostedInvoiceURL string    `json:"hostedInvoiceUrl,omitempty"`
	InvoicePDF       string    `json:"invoicePdf,omitempty"`
	Created          time.Time `json:"created"`
}
