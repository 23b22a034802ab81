package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// Handled provider event types.
const (
	TypeCheckoutCompleted       = "checkout.session.completed"
	TypeSubscriptionUpdated     = "customer.subscription.updated"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed    = "invoice.payment_failed"
)

// Event is a verified webhook event. The set of implementations is closed:
// one type per handled event plus Ignored for everything else.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

type eventMeta struct {
	ID   string
	Type string
}

func (m eventMeta) EventID() string   { return m.ID }
func (m eventMeta) EventType() string { return m.Type }
func (eventMeta) isEvent()            {}

// CheckoutCompleted reports a paid checkout session.
type CheckoutCompleted struct {
	eventMeta
	SessionID       string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	Metadata        map[string]string
}

// SubscriptionUpdated carries the provider's current subscription fields.
type SubscriptionUpdated struct {
	eventMeta
	SubscriptionID     string
	CustomerID         string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CanceledAt         *time.Time
}

// SubscriptionDeleted reports a subscription that has ended.
type SubscriptionDeleted struct {
	eventMeta
	SubscriptionID string
	CustomerID     string
}

// InvoicePayment is the shared payload of invoice payment events.
type InvoicePayment struct {
	InvoiceID       string
	CustomerID      string
	PaymentIntentID string
	AmountPaid      int64
	AmountDue       int64
	Currency        string
}

// InvoicePaymentSucceeded reports a collected invoice.
type InvoicePaymentSucceeded struct {
	eventMeta
	InvoicePayment
}

// InvoicePaymentFailed reports a failed collection attempt.
type InvoicePaymentFailed struct {
	eventMeta
	InvoicePayment
}

// Ignored is any event type the service does not act on.
type Ignored struct {
	eventMeta
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func invoicePayment(inv *stripe.Invoice) InvoicePayment {
	p := InvoicePayment{
		InvoiceID:  inv.ID,
		CustomerID: customerID(inv.Customer),
		AmountPaid: inv.AmountPaid,
		AmountDue:  inv.AmountDue,
		Currency:   string(inv.Currency),
	}
	// Payment intents hang off the invoice's payments list since the basil API.
	if inv.Payments != nil {
		for _, ip := range inv.Payments.Data {
			if ip != nil && ip.Payment != nil && ip.Payment.PaymentIntent != nil {
				p.PaymentIntentID = ip.Payment.PaymentIntent.ID
				break
			}
		}
	}
	return p
}

// DecodeEvent turns a verified event's data object into its typed variant.
func DecodeEvent(id, eventType string, object json.RawMessage) (Event, error) {
	meta := eventMeta{ID: id, Type: eventType}

	switch eventType {
	case TypeCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(object, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		ev := CheckoutCompleted{
			eventMeta:  meta,
			SessionID:  s.ID,
			CustomerID: customerID(s.Customer),
			Metadata:   s.Metadata,
		}
		if s.Subscription != nil {
			ev.SubscriptionID = s.Subscription.ID
		}
		if s.PaymentIntent != nil {
			ev.PaymentIntentID = s.PaymentIntent.ID
		}
		return ev, nil

	case TypeSubscriptionUpdated, TypeSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(object, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		if eventType == TypeSubscriptionDeleted {
			return SubscriptionDeleted{eventMeta: meta, SubscriptionID: s.ID, CustomerID: customerID(s.Customer)}, nil
		}
		state := subscriptionState(&s)
		return SubscriptionUpdated{
			eventMeta:          meta,
			SubscriptionID:     s.ID,
			CustomerID:         customerID(s.Customer),
			Status:             state.Status,
			CancelAtPeriodEnd:  state.CancelAtPeriodEnd,
			CurrentPeriodStart: state.CurrentPeriodStart,
			CurrentPeriodEnd:   state.CurrentPeriodEnd,
			CanceledAt:         unixTime(s.CanceledAt),
		}, nil

	case TypeInvoicePaymentSucceeded, TypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(object, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		if eventType == TypeInvoicePaymentSucceeded {
			return InvoicePaymentSucceeded{eventMeta: meta, InvoicePayment: invoicePayment(&inv)}, nil
		}
		return InvoicePaymentFailed{eventMeta: meta, InvoicePayment: invoicePayment(&inv)}, nil
	}

	return Ignored{eventMeta: meta}, nil
}
