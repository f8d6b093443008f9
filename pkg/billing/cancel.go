package billing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"
)

// CancelAtPeriodEnd schedules the user's active subscription to lapse at
// the end of the paid period rather than cutting access immediately.
// The local row is left alone: the subscription webhook sets the cancel
// flag, and the period-end deletion event flips the status to canceled.
func (s *StripeService) CancelAtPeriodEnd(ctx context.Context, userID string, selfService bool) error {
	table := subscriptionTable(selfService)

	var stripeSubID sql.NullString
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT stripe_subscription_id FROM %s
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, table), userID).Scan(&stripeSubID)
	if err == sql.ErrNoRows {
		return ErrNoActiveSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if !stripeSubID.Valid || stripeSubID.String == "" {
		return ErrMissingStripeID
	}

	_, err = s.stripe.UpdateSubscription(stripeSubID.String, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cancellation: %w", err)
	}

	// No local write: the customer.subscription.updated webhook records
	// the cancel flag, and the period-end deletion event closes the row.
	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"self_service": selfService,
		"subscription": stripeSubID.String,
	}).Info("subscription cancellation scheduled")
	return nil
}
