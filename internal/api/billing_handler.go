package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/middleware"
	"o3-ttgifts-backend/internal/models"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// BillingHandler handles checkout, payment history and provider webhooks.
type BillingHandler struct {
	userService    core.UserService
	checkout       core.CheckoutService
	reconciliation core.ReconciliationService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(us core.UserService, cs core.CheckoutService, rs core.ReconciliationService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{userService: us, checkout: cs, reconciliation: rs, logger: logger}
}

// CreateCheckoutSession handles POST /api/payments/create-checkout-session
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid plan selected")
		return
	}

	session, err := h.checkout.CreateCheckoutSession(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, CheckoutResponse{SessionID: session.ID, URL: session.URL}, "")
}

// HandleStripeWebhook handles POST /api/payments/webhook
// The route is public; the provider authenticates with the Stripe-Signature header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.AbortWithMessage(c, http.StatusRequestEntityTooLarge, "Webhook payload too large")
			return
		}
		badRequest(c, "Failed to read webhook payload")
		return
	}

	outcome, err := h.reconciliation.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Debug("Webhook processed", zap.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// PaymentHistory handles GET /api/payments/history
func (h *BillingHandler) PaymentHistory(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	payments, err := h.checkout.PaymentHistory(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newPaymentResponses(payments), "")
}

// Invoices handles GET /api/payments/invoices
func (h *BillingHandler) Invoices(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	invoices, err := h.checkout.Invoices(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newInvoiceResponses(invoices), "")
}
