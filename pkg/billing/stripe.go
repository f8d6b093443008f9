package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

// StripeClient is the slice of the Stripe API this service consumes.
// The real implementation wraps the official client; tests substitute
// a fake.
type StripeClient interface {
	GetPrice(id string) (*stripe.Price, error)
	CreatePrice(params *stripe.PriceParams) (*stripe.Price, error)
	GetCoupon(id string) (*stripe.Coupon, error)
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSubscription(id string) (*stripe.Subscription, error)
	UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CreatePortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// apiClient owns its API key and webhook secret explicitly rather than
// relying on the SDK's package-level key, so multiple clients can coexist
// and tests never touch globals.
type apiClient struct {
	api           *client.API
	webhookSecret string
}

// NewStripeClient creates a StripeClient backed by the official SDK
func NewStripeClient(apiKey, webhookSecret string) StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &apiClient{api: api, webhookSecret: webhookSecret}
}

func (c *apiClient) GetPrice(id string) (*stripe.Price, error) {
	return c.api.Prices.Get(id, nil)
}

func (c *apiClient) CreatePrice(params *stripe.PriceParams) (*stripe.Price, error) {
	return c.api.Prices.New(params)
}

func (c *apiClient) GetCoupon(id string) (*stripe.Coupon, error) {
	return c.api.Coupons.Get(id, nil)
}

func (c *apiClient) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

func (c *apiClient) GetSubscription(id string) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Get(id, nil)
}

func (c *apiClient) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Update(id, params)
}

func (c *apiClient) CreatePortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return c.api.BillingPortalSessions.New(params)
}

func (c *apiClient) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
}

// instrumentedClient counts failed API calls per operation
type instrumentedClient struct {
	next StripeClient
	errs *prometheus.CounterVec
}

// InstrumentStripeClient wraps a client so failed calls increment errs
// with an operation label. A nil errs returns next unwrapped.
func InstrumentStripeClient(next StripeClient, errs *prometheus.CounterVec) StripeClient {
	if errs == nil {
		return next
	}
	return &instrumentedClient{next: next, errs: errs}
}

func (c *instrumentedClient) count(op string, err error) {
	if err != nil {
		c.errs.WithLabelValues(op).Inc()
	}
}

func (c *instrumentedClient) GetPrice(id string) (*stripe.Price, error) {
	p, err := c.next.GetPrice(id)
	c.count("get_price", err)
	return p, err
}

func (c *instrumentedClient) CreatePrice(params *stripe.PriceParams) (*stripe.Price, error) {
	p, err := c.next.CreatePrice(params)
	c.count("create_price", err)
	return p, err
}

func (c *instrumentedClient) GetCoupon(id string) (*stripe.Coupon, error) {
	cp, err := c.next.GetCoupon(id)
	c.count("get_coupon", err)
	return cp, err
}

func (c *instrumentedClient) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s, err := c.next.CreateCheckoutSession(params)
	c.count("create_checkout_session", err)
	return s, err
}

func (c *instrumentedClient) GetSubscription(id string) (*stripe.Subscription, error) {
	s, err := c.next.GetSubscription(id)
	c.count("get_subscription", err)
	return s, err
}

func (c *instrumentedClient) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s, err := c.next.UpdateSubscription(id, params)
	c.count("update_subscription", err)
	return s, err
}

func (c *instrumentedClient) CreatePortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	s, err := c.next.CreatePortalSession(params)
	c.count("create_portal_session", err)
	return s, err
}

func (c *instrumentedClient) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	// Signature failures are client-side; only the wrapped call is counted.
	return c.next.ConstructEvent(payload, sigHeader)
}
