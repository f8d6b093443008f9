package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"
)

// ProcessWebhook verifies and applies one Stripe event. The returned
// Outcome says what happened; the string is the event type for metrics.
//
// Only OutcomeSignatureInvalid should turn into a client error upstream.
// Handled events that match no local row return OutcomeUnmatched with a
// nil error so Stripe does not retry an event we can never apply.
func (s *StripeService) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) (Outcome, string, error) {
	event, err := s.stripe.ConstructEvent(payload, sigHeader)
	if err != nil {
		return OutcomeSignatureInvalid, "", fmt.Errorf("webhook signature verification failed: %w", err)
	}

	// Stripe retries aggressively; drop exact replays by event ID.
	if _, seen := s.seenEvents.Get(event.ID); seen {
		s.log.WithField("event_id", event.ID).Debug("webhook replay ignored")
		return OutcomeIgnored, event.Type, nil
	}

	outcome, err := s.applyEvent(ctx, event)
	if err != nil {
		return outcome, event.Type, err
	}
	s.seenEvents.Add(event.ID, struct{}{})

	s.log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
		"outcome":  outcome,
	}).Info("webhook processed")
	return outcome, event.Type, nil
}

func (s *StripeService) applyEvent(ctx context.Context, event stripe.Event) (Outcome, error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return s.applyCheckoutCompleted(ctx, &sess)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to decode subscription: %w", err)
		}
		return s.applySubscriptionState(ctx, &sub, string(sub.Status))

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to decode subscription: %w", err)
		}
		return s.applySubscriptionState(ctx, &sub, string(SubscriptionStatusCanceled))

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to decode invoice: %w", err)
		}
		return s.applyInvoicePaid(ctx, &inv)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to decode invoice: %w", err)
		}
		return s.applyInvoiceFailed(ctx, &inv)

	default:
		return OutcomeIgnored, nil
	}
}

// applyCheckoutCompleted records the subscription a completed checkout
// created. The session metadata carries back what CreateCheckoutSession
// put in, so the row lands on the right user and plan.
func (s *StripeService) applyCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) (Outcome, error) {
	userID := sess.Metadata["user_id"]
	if userID == "" {
		return OutcomeUnmatched, nil
	}
	planID, _ := strconv.ParseInt(sess.Metadata["plan_id"], 10, 64)
	cycle := sess.Metadata["billing_cycle"]
	if cycle == "" {
		cycle = "monthly"
	}

	var customerID, subscriptionID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}

	// An earlier delivery may already have written the row.
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_subscription
		SET status = 'active', stripe_customer_id = $1, updated_at = NOW()
		WHERE stripe_subscription_id = $2 AND stripe_subscription_id <> ''
	`, customerID, subscriptionID)
	if err != nil {
		return OutcomeUnmatched, fmt.Errorf("failed to update subscription row: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return OutcomeApplied, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_subscription
			(user_id, plan_id, stripe_customer_id, stripe_subscription_id, status, billing_cycle)
		VALUES ($1, $2, $3, $4, 'active', $5)
	`, userID, planID, customerID, subscriptionID, cycle)
	if err != nil {
		return OutcomeUnmatched, fmt.Errorf("failed to insert subscription row: %w", err)
	}
	return OutcomeApplied, nil
}

// applySubscriptionState mirrors Stripe's view of a subscription onto the
// local row. Self-service rows share the same stripe ID namespace, so
// both tables get a chance to match.
func (s *StripeService) applySubscriptionState(ctx context.Context, sub *stripe.Subscription, status string) (Outcome, error) {
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
	matched := false
	for _, table := range []string{"user_subscription", "self_service_subscriptions"} {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s
			SET status = $1, cancel_at_period_end = $2, current_period_end = $3, updated_at = NOW()
			WHERE stripe_subscription_id = $4
		`, table), status, sub.CancelAtPeriodEnd, periodEnd, sub.ID)
		if err != nil {
			return OutcomeUnmatched, fmt.Errorf("failed to update %s: %w", table, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			matched = true
		}
	}
	if !matched {
		s.log.WithField("subscription", sub.ID).Warn("subscription event matched no local row")
		return OutcomeUnmatched, nil
	}
	return OutcomeApplied, nil
}

// applyInvoicePaid stamps a fleet invoice as paid. COALESCE keeps the
// first paid_at on replayed deliveries.
func (s *StripeService) applyInvoicePaid(ctx context.Context, inv *stripe.Invoice) (Outcome, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fleet_invoices
		SET status = 'paid', paid_at = COALESCE(paid_at, $2), updated_at = NOW()
		WHERE stripe_invoice_id = $1 AND stripe_invoice_id <> ''
	`, inv.ID, time.Now().UTC())
	if err != nil {
		return OutcomeUnmatched, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return OutcomeUnmatched, nil
	}
	return OutcomeApplied, nil
}

// applyInvoiceFailed flips a fleet invoice to overdue on a failed charge
func (s *StripeService) applyInvoiceFailed(ctx context.Context, inv *stripe.Invoice) (Outcome, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fleet_invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE stripe_invoice_id = $1 AND stripe_invoice_id <> '' AND status <> 'paid'
	`, inv.ID)
	if err != nil {
		return OutcomeUnmatched, fmt.Errorf("failed to mark invoice overdue: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return OutcomeUnmatched, nil
	}
	return OutcomeApplied, nil
}
