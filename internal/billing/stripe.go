package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// invoiceIter is the subset of the Stripe list iterator used here.
type invoiceIter interface {
	Next() bool
	Invoice() *stripe.Invoice
	Err() error
}

// StripeEngine implements Engine on Stripe. The API calls are held as
// function fields so tests can substitute them.
type StripeEngine struct {
	webhookSecret string
	allowUnsigned bool
	logger        *zap.Logger

	newCustomer        func(*stripe.CustomerParams) (*stripe.Customer, error)
	newCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription    func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error)
	updateSubscription func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error)
	newProduct         func(*stripe.ProductParams) (*stripe.Product, error)
	newPrice           func(*stripe.PriceParams) (*stripe.Price, error)
	listInvoices       func(*stripe.InvoiceListParams) invoiceIter
}

// NewStripeEngine builds an engine for secretKey. When allowUnsigned is set,
// webhook payloads are accepted without signature verification; it must only
// be enabled for local development.
func NewStripeEngine(secretKey, webhookSecret string, allowUnsigned bool, logger *zap.Logger) *StripeEngine {
	sc := client.New(secretKey, nil)
	return &StripeEngine{
		webhookSecret:      webhookSecret,
		allowUnsigned:      allowUnsigned,
		logger:             logger,
		newCustomer:        sc.Customers.New,
		newCheckoutSession: sc.CheckoutSessions.New,
		getSubscription:    sc.Subscriptions.Get,
		updateSubscription: sc.Subscriptions.Update,
		newProduct:         sc.Products.New,
		newPrice:           sc.Prices.New,
		listInvoices: func(p *stripe.InvoiceListParams) invoiceIter {
			return sc.Invoices.List(p)
		},
	}
}

// CreateCustomer creates a Stripe customer and returns its ID.
func (e *StripeEngine) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(req.Email),
		Metadata: req.Metadata,
	}
	if req.Name != "" {
		params.Name = stripe.String(req.Name)
	}
	params.Context = ctx

	cust, err := e.newCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a subscription-mode hosted checkout.
func (e *StripeEngine) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency: stripe.String(currency),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(li.Name),
			},
			UnitAmount: stripe.Int64(li.UnitAmount),
		}
		if li.Description != "" {
			priceData.ProductData.Description = stripe.String(li.Description)
		}
		if li.Recurring {
			priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			}
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:  items,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   req.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.SubscriptionMetadata,
		},
	}
	params.Context = ctx

	session, err := e.newCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, errors.New("stripe returned empty checkout URL")
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the event.
func (e *StripeEngine) ParseEvent(payload []byte, signatureHeader string) (Event, error) {
	var event stripe.Event
	if e.allowUnsigned {
		e.logger.Warn("Accepting unsigned webhook payload (development bypass)")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else {
		if strings.TrimSpace(signatureHeader) == "" {
			return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrInvalidSignature)
		}
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signatureHeader, e.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidSignature, event.ID)
	}
	return DecodeEvent(event.ID, string(event.Type), event.Data.Raw)
}

// SetCancelAtPeriodEnd toggles cancellation at the end of the current period.
func (e *StripeEngine) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx

	sub, err := e.updateSubscription(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("update stripe subscription %s: %w", subscriptionID, err)
	}
	return subscriptionState(sub), nil
}

// ChangePlan creates a product and monthly price for the new plan and swaps
// the subscription's item to it, invoicing the proration immediately.
func (e *StripeEngine) ChangePlan(ctx context.Context, subscriptionID string, change PlanChange) (*SubscriptionState, error) {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	current, err := e.getSubscription(subscriptionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription %s: %w", subscriptionID, err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("stripe subscription %s has no items", subscriptionID)
	}

	productParams := &stripe.ProductParams{Name: stripe.String(change.ProductName)}
	if change.ProductDescription != "" {
		productParams.Description = stripe.String(change.ProductDescription)
	}
	productParams.Context = ctx
	product, err := e.newProduct(productParams)
	if err != nil {
		return nil, fmt.Errorf("create stripe product: %w", err)
	}

	currency := change.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(change.MonthlyAmount),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
	}
	priceParams.Context = ctx
	price, err := e.newPrice(priceParams)
	if err != nil {
		return nil, fmt.Errorf("create stripe price: %w", err)
	}

	updateParams := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(current.Items.Data[0].ID),
			Price: stripe.String(price.ID),
		}},
		ProrationBehavior: stripe.String("always_invoice"),
	}
	updateParams.Context = ctx
	updated, err := e.updateSubscription(subscriptionID, updateParams)
	if err != nil {
		return nil, fmt.Errorf("update stripe subscription %s: %w", subscriptionID, err)
	}
	return subscriptionState(updated), nil
}

// ListInvoices returns up to limit invoices for the customer, newest first.
func (e *StripeEngine) ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Limit = stripe.Int64(int64(limit))
	params.Context = ctx

	iter := e.listInvoices(params)
	out := make([]Invoice, 0, limit)
	for iter.Next() && len(out) < limit {
		inv := iter.Invoice()
		out = append(out, Invoice{
			ID:               inv.ID,
			Number:           inv.Number,
			Status:           string(inv.Status),
			AmountDue:        inv.AmountDue,
			AmountPaid:       inv.AmountPaid,
			Currency:         string(inv.Currency),
			HostedInvoiceURL: inv.HostedInvoiceURL,
			InvoicePDF:       inv.InvoicePDF,
			Created:          time.Unix(inv.Created, 0).UTC(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe invoices for %s: %w", customerID, err)
	}
	return out, nil
}

func subscriptionState(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		state.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		state.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return state
}
