package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/washdeck/washdeck/pkg/billing"
	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
	"github.com/washdeck/washdeck/pkg/promos"
)

// webhookMaxBody caps Stripe webhook payloads; events are small
const webhookMaxBody = 1 << 20

// BillingHandlers handles checkout, subscription, and webhook requests
type BillingHandlers struct {
	billing billing.Service
	promos  promos.Service
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewBillingHandlers creates a new BillingHandlers. promoService may be
// nil when promo codes are not configured.
func NewBillingHandlers(billingService billing.Service, promoService promos.Service, log *observability.Logger, metrics *observability.Metrics) *BillingHandlers {
	return &BillingHandlers{
		billing: billingService,
		promos:  promoService,
		log:     log,
		metrics: metrics,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/create-checkout-session", h.CreateCheckoutSession).Methods("POST")
	router.HandleFunc("/api/update-subscription", h.UpdateSubscription).Methods("POST")
	router.HandleFunc("/api/cancel-subscription", h.CancelSubscription).Methods("POST")
	router.HandleFunc("/api/cancel-self-service-subscription", h.CancelSelfServiceSubscription).Methods("POST")
	router.HandleFunc("/api/create-customer-portal", h.CreateCustomerPortal).Methods("POST")
	router.HandleFunc("/api/update-payment-method", h.UpdatePaymentMethod).Methods("POST")
	router.HandleFunc("/api/webhook/stripe", h.StripeWebhook).Methods("POST")
}

// writeBillingError maps service errors onto the API error contract:
// client mistakes get 400 with a message, missing resources get 404,
// everything else an opaque 500 with the detail logged.
func (h *BillingHandlers) writeBillingError(w http.ResponseWriter, r *http.Request, err error) {
	var pmErr *billing.PriceMappingError
	switch {
	case errors.Is(err, billing.ErrNoActiveSubscription):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, billing.ErrNoVehicles),
		errors.Is(err, billing.ErrInvalidBillingCycle),
		errors.Is(err, billing.ErrCouponInvalid),
		errors.Is(err, billing.ErrIntervalMismatch),
		errors.Is(err, billing.ErrMissingStripeID),
		errors.Is(err, billing.ErrVehiclePlanMismatch),
		errors.Is(err, catalog.ErrPlanNotFound),
		errors.As(err, &pmErr):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.log.Error("billing request failed",
			"path", r.URL.Path,
			"request_id", httputil.RequestID(r.Context()),
			"error", err)
		httputil.WriteInternalError(w)
	}
}

// CreateCheckoutSession builds a Stripe checkout session for 1..N vehicles
func (h *BillingHandlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req billing.CheckoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}

	// A promo code resolves locally to its Stripe coupon before the
	// billing layer validates it with Stripe.
	if req.CouponID != "" && h.promos != nil {
		couponID, err := h.promos.ResolveCoupon(r.Context(), req.CouponID)
		if err != nil {
			if errors.Is(err, promos.ErrCodeNotFound) || errors.Is(err, promos.ErrCodeNotUsable) {
				httputil.WriteBadRequest(w, billing.ErrCouponInvalid.Error())
				return
			}
			h.writeBillingError(w, r, err)
			return
		}
		req.CouponID = couponID
	}

	session, err := h.billing.CreateCheckoutSession(r.Context(), &req)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CheckoutSessionsTotal.Inc()
	}
	httputil.WriteSuccess(w, session)
}

// UpdateSubscription switches a subscription's plan and billing cycle
func (h *BillingHandlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req billing.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.billing.UpdateSubscription(r.Context(), &req)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SubscriptionUpdatesTotal.Inc()
	}
	httputil.WriteSuccess(w, result)
}

type cancelRequest struct {
	UserID string `json:"userId"`
}

func (h *BillingHandlers) cancel(w http.ResponseWriter, r *http.Request, selfService bool) {
	var req cancelRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}

	if err := h.billing.CancelAtPeriodEnd(r.Context(), req.UserID, selfService); err != nil {
		h.writeBillingError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CancellationsTotal.Inc()
	}
	httputil.WriteSuccess(w, map[string]bool{"canceled": true})
}

// CancelSubscription schedules a standard subscription to end at period end
func (h *BillingHandlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, false)
}

// CancelSelfServiceSubscription schedules a self-service subscription to
// end at period end
func (h *BillingHandlers) CancelSelfServiceSubscription(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, true)
}

type portalRequest struct {
	UserID     string `json:"userId"`
	ReturnPath string `json:"returnPath,omitempty"`
}

// CreateCustomerPortal returns a Stripe billing portal URL for the user
func (h *BillingHandlers) CreateCustomerPortal(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}
	if req.ReturnPath == "" {
		req.ReturnPath = "/account"
	}

	url, err := h.billing.CreatePortalSession(r.Context(), req.UserID, req.ReturnPath)
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}

// UpdatePaymentMethod sends the user to the billing portal's payment
// method page
func (h *BillingHandlers) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}

	url, err := h.billing.CreatePortalSession(r.Context(), req.UserID, "/account/payment")
	if err != nil {
		h.writeBillingError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}

// StripeWebhook verifies and applies one Stripe event. Verified events
// always return 200 so Stripe stops retrying; only signature failures
// are rejected.
func (h *BillingHandlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBody))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	outcome, eventType, err := h.billing.ProcessWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if h.metrics != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues(eventType, string(outcome)).Inc()
	}
	if outcome == billing.OutcomeSignatureInvalid {
		h.log.Warn("webhook signature rejected", "request_id", httputil.RequestID(r.Context()))
		// Stripe's receiver contract wants a plain 400, not the JSON
		// error envelope.
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("webhook processing failed",
			"event_type", eventType,
			"outcome", string(outcome),
			"error", err)
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"received": true})
}
