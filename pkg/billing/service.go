package billing

import (
	"context"
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"

	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/vehicles"
)

// Service defines the billing operations exposed to the API layer
type Service interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	UpdateSubscription(ctx context.Context, req *UpdateRequest) (*UpdateResult, error)
	CancelAtPeriodEnd(ctx context.Context, userID string, selfService bool) error
	CreatePortalSession(ctx context.Context, userID string, returnPath string) (string, error)
	ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) (Outcome, string, error)
}

// seenEventsSize bounds the replay-dedup window; Stripe retries arrive
// well within this many events
const seenEventsSize = 2048

// StripeService implements Service against Stripe and the local store
type StripeService struct {
	db        *sql.DB
	stripe    StripeClient
	plans     catalog.Service
	registrar vehicles.Registrar
	baseURL   string
	log       *logrus.Logger

	// seenEvents short-circuits webhook replays by event ID
	seenEvents *lru.Cache[string, struct{}]
}

// NewStripeService creates a new StripeService
func NewStripeService(db *sql.DB, sc StripeClient, plans catalog.Service, registrar vehicles.Registrar, baseURL string, log *logrus.Logger) (*StripeService, error) {
	if log == nil {
		log = logrus.New()
	}
	seen, err := lru.New[string, struct{}](seenEventsSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create event cache: %w", err)
	}
	return &StripeService{
		db:         db,
		stripe:     sc,
		plans:      plans,
		registrar:  registrar,
		baseURL:    baseURL,
		log:        log,
		seenEvents: seen,
	}, nil
}

// subscriptionTable returns the table a cancellation or portal lookup
// should operate on
func subscriptionTable(selfService bool) string {
	if selfService {
		return "self_service_subscriptions"
	}
	return "user_subscription"
}

// CreatePortalSession creates a Stripe billing-portal session for the
// caller's customer and returns the redirect URL
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string, returnPath string) (string, error) {
	var customerID string
	err := s.db.QueryRowContext(ctx, `
		SELECT stripe_customer_id FROM user_subscription
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, userID).Scan(&customerID)
	if err == sql.ErrNoRows {
		return "", ErrNoActiveSubscription
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up subscription: %w", err)
	}
	if customerID == "" {
		return "", ErrMissingStripeID
	}

	sess, err := s.stripe.CreatePortalSession(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.baseURL + returnPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}
