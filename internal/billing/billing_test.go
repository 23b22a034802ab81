package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

func eventPayload(t *testing.T, id, eventType string, object interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-03-31.basil",
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func TestParseEventVerifiesSignature(t *testing.T) {
	engine := NewStripeEngine("sk_test", testWebhookSecret, false, zap.NewNop())
	payload := eventPayload(t, "evt_1", TypeCheckoutCompleted, map[string]interface{}{
		"id":             "cs_1",
		"customer":       "cus_1",
		"subscription":   "sub_1",
		"payment_intent": nil,
		"metadata":       map[string]string{"userId": "u1", "plan": "STARTER"},
	})

	event, err := engine.ParseEvent(payload, sign(payload))
	require.NoError(t, err)
	completed, ok := event.(CheckoutCompleted)
	require.True(t, ok, "got %T", event)
	assert.Equal(t, "evt_1", completed.EventID())
	assert.Equal(t, "cus_1", completed.CustomerID)
	assert.Equal(t, "sub_1", completed.SubscriptionID)
	assert.Equal(t, "u1", completed.Metadata["userId"])

	_, err = engine.ParseEvent(payload, "t=1,v1=deadbeef")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	_, err = engine.ParseEvent(payload, "")
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	_, err = engine.ParseEvent(tampered, sign(payload))
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestParseEventDevelopmentBypass(t *testing.T) {
	engine := NewStripeEngine("sk_test", "", true, zap.NewNop())
	payload := eventPayload(t, "evt_2", "customer.created", map[string]interface{}{"id": "cus_9"})

	event, err := engine.ParseEvent(payload, "")
	require.NoError(t, err)
	_, ignored := event.(Ignored)
	assert.True(t, ignored)
	assert.Equal(t, "customer.created", event.EventType())
}

func TestDecodeSubscriptionEvents(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"id":                   "sub_1",
		"customer":             map[string]string{"id": "cus_1", "object": "customer"},
		"status":               "past_due",
		"cancel_at_period_end": true,
		"canceled_at":          nil,
		"items": map[string]interface{}{
			"data": []map[string]int64{{"current_period_start": 1700000000, "current_period_end": 1702592000}},
		},
	})

	event, err := DecodeEvent("evt_3", TypeSubscriptionUpdated, raw)
	require.NoError(t, err)
	updated := event.(SubscriptionUpdated)
	assert.Equal(t, "cus_1", updated.CustomerID, "expanded customer objects decode to their ID")
	assert.Equal(t, "past_due", updated.Status)
	assert.True(t, updated.CancelAtPeriodEnd)
	require.NotNil(t, updated.CurrentPeriodEnd)
	assert.Equal(t, int64(1702592000), updated.CurrentPeriodEnd.Unix())
	assert.Nil(t, updated.CanceledAt)

	event, err = DecodeEvent("evt_4", TypeSubscriptionDeleted, raw)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", event.(SubscriptionDeleted).SubscriptionID)
}

func TestDecodeInvoiceEvents(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"id": "in_1", "customer": "cus_1",
		"amount_paid": 0, "amount_due": 3000, "currency": "usd",
		"payments": map[string]interface{}{
			"data": []map[string]interface{}{
				{"payment": map[string]interface{}{"type": "payment_intent", "payment_intent": "pi_1"}},
			},
		},
	})

	event, err := DecodeEvent("evt_5", TypeInvoicePaymentFailed, raw)
	require.NoError(t, err)
	failed := event.(InvoicePaymentFailed)
	assert.Equal(t, int64(3000), failed.AmountDue)
	assert.Equal(t, "pi_1", failed.PaymentIntentID)

	event, err = DecodeEvent("evt_6", TypeInvoicePaymentSucceeded, raw)
	require.NoError(t, err)
	assert.Equal(t, "in_1", event.(InvoicePaymentSucceeded).InvoiceID)

	_, err = DecodeEvent("evt_7", TypeInvoicePaymentFailed, []byte(`"oops"`))
	assert.Error(t, err)
}

func TestCreateCheckoutSessionBuildsLineItems(t *testing.T) {
	engine := NewStripeEngine("sk_test", testWebhookSecret, false, zap.NewNop())
	var captured *stripe.CheckoutSessionParams
	engine.newCheckoutSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = p
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
	}

	session, err := engine.CreateCheckoutSession(context.Background(), CheckoutRequest{
		CustomerID: "cus_1",
		LineItems: []LineItem{
			{Name: "One-Time Deployment Fee", UnitAmount: 50000},
			{Name: "Starter Plan", UnitAmount: 3000, Recurring: true},
		},
		SuccessURL:           "https://app/success",
		CancelURL:            "https://app/cancel",
		Metadata:             map[string]string{"userId": "u1"},
		SubscriptionMetadata: map[string]string{"plan": "STARTER"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", session.URL)

	require.NotNil(t, captured)
	assert.Equal(t, "cus_1", *captured.Customer)
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *captured.Mode)
	require.Len(t, captured.LineItems, 2)
	assert.Nil(t, captured.LineItems[0].PriceData.Recurring)
	assert.Equal(t, int64(50000), *captured.LineItems[0].PriceData.UnitAmount)
	require.NotNil(t, captured.LineItems[1].PriceData.Recurring)
	assert.Equal(t, "month", *captured.LineItems[1].PriceData.Recurring.Interval)
	assert.Equal(t, "usd", *captured.LineItems[1].PriceData.Currency)
	assert.Equal(t, "STARTER", captured.SubscriptionData.Metadata["plan"])

	engine.newCheckoutSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return &stripe.CheckoutSession{ID: "cs_2"}, nil
	}
	_, err = engine.CreateCheckoutSession(context.Background(), CheckoutRequest{CustomerID: "cus_1"})
	assert.Error(t, err, "an empty checkout URL is an error")
}

func TestChangePlanSwapsSubscriptionItem(t *testing.T) {
	engine := NewStripeEngine("sk_test", testWebhookSecret, false, zap.NewNop())
	engine.getSubscription = func(id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
		return &stripe.Subscription{ID: id, Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{ID: "si_1"}},
		}}, nil
	}
	engine.newProduct = func(p *stripe.ProductParams) (*stripe.Product, error) {
		assert.Equal(t, "Professional Plan", *p.Name)
		return &stripe.Product{ID: "prod_1"}, nil
	}
	engine.newPrice = func(p *stripe.PriceParams) (*stripe.Price, error) {
		assert.Equal(t, "prod_1", *p.Product)
		assert.Equal(t, int64(8000), *p.UnitAmount)
		return &stripe.Price{ID: "price_1"}, nil
	}
	var update *stripe.SubscriptionParams
	engine.updateSubscription = func(id string, p *stripe.SubscriptionParams) (*stripe.Subscription, error) {
		update = p
		return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive, Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{ID: "si_1", CurrentPeriodStart: 1700000000, CurrentPeriodEnd: 1702592000}},
		}}, nil
	}

	state, err := engine.ChangePlan(context.Background(), "sub_1", PlanChange{ProductName: "Professional Plan", MonthlyAmount: 8000})
	require.NoError(t, err)
	assert.Equal(t, "active", state.Status)
	require.NotNil(t, state.CurrentPeriodEnd)
	assert.Equal(t, int64(1702592000), state.CurrentPeriodEnd.Unix())

	require.NotNil(t, update)
	require.Len(t, update.Items, 1)
	assert.Equal(t, "si_1", *update.Items[0].ID)
	assert.Equal(t, "price_1", *update.Items[0].Price)
	assert.Equal(t, "always_invoice", *update.ProrationBehavior)
}

type fakeInvoiceIter struct {
	invoices []*stripe.Invoice
	pos      int
}

func (f *fakeInvoiceIter) Next() bool {
	if f.pos >= len(f.invoices) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeInvoiceIter) Invoice() *stripe.Invoice { return f.invoices[f.pos-1] }
func (f *fakeInvoiceIter) Err() error               { return nil }

func TestListInvoicesHonoursLimit(t *testing.T) {
	engine := NewStripeEngine("sk_test", testWebhookSecret, false, zap.NewNop())
	engine.listInvoices = func(p *stripe.InvoiceListParams) invoiceIter {
		assert.Equal(t, "cus_1", *p.Customer)
		return &fakeInvoiceIter{invoices: []*stripe.Invoice{
			{ID: "in_1", AmountPaid: 3000, Currency: stripe.CurrencyUSD, Status: stripe.InvoiceStatusPaid, Created: 1700000000},
			{ID: "in_2"},
			{ID: "in_3"},
		}}
	}

	invoices, err := engine.ListInvoices(context.Background(), "cus_1", 2)
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "paid", invoices[0].Status)
	assert.Equal(t, int64(3000), invoices[0].AmountPaid)
}
