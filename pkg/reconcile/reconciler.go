// Package reconcile runs the periodic sweep that keeps local state in
// step with Stripe. Webhooks are the primary sync path; the sweep
// catches deliveries that were missed or arrived out of order.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/washdeck/washdeck/pkg/billing"
	"github.com/washdeck/washdeck/pkg/fleet"
)

const sweepTimeout = 5 * time.Minute

// Reconciler sweeps subscriptions against Stripe and ages fleet invoices
type Reconciler struct {
	db       *sql.DB
	stripe   billing.StripeClient
	invoices fleet.Service
	log      *logrus.Logger
	cron     *cron.Cron
}

// New creates a Reconciler. invoices may be nil to skip invoice aging.
func New(db *sql.DB, sc billing.StripeClient, invoices fleet.Service, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	return &Reconciler{
		db:       db,
		stripe:   sc,
		invoices: invoices,
		log:      log,
	}
}

// Start schedules the sweep with the given cron expression and begins
// running it. An empty schedule disables the reconciler.
func (r *Reconciler) Start(schedule string) error {
	if schedule == "" {
		r.log.Info("reconciler disabled")
		return nil
	}
	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := r.Sweep(ctx); err != nil {
			r.log.WithError(err).Error("reconcile sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	r.log.WithField("schedule", schedule).Info("reconciler started")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep refreshes local subscription rows from Stripe and flips open
// fleet invoices past due to overdue
func (r *Reconciler) Sweep(ctx context.Context) error {
	if err := r.syncSubscriptions(ctx); err != nil {
		return err
	}
	if r.invoices != nil {
		n, err := r.invoices.MarkOverdueBefore(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			r.log.WithField("count", n).Info("aged fleet invoices")
		}
	}
	return nil
}

// syncSubscriptions re-reads every non-terminal subscription from Stripe
// and mirrors its status locally
func (r *Reconciler) syncSubscriptions(ctx context.Context) error {
	for _, table := range []string{"user_subscription", "self_service_subscriptions"} {
		ids, err := r.pendingSubscriptionIDs(ctx, table)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := r.syncOne(ctx, table, id); err != nil {
				// One bad subscription must not stall the sweep.
				r.log.WithError(err).WithField("subscription", id).Warn("failed to sync subscription")
			}
		}
	}
	return nil
}

func (r *Reconciler) pendingSubscriptionIDs(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT stripe_subscription_id FROM %s
		WHERE status NOT IN ('canceled') AND stripe_subscription_id <> ''
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions in %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscription id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Reconciler) syncOne(ctx context.Context, table, subscriptionID string) error {
	sub, err := r.stripe.GetSubscription(subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}

	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = $1, cancel_at_period_end = $2, current_period_end = $3, updated_at = NOW()
		WHERE stripe_subscription_id = $4
	`, table), string(sub.Status), sub.CancelAtPeriodEnd, periodEnd, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription row: %w", err)
	}
	return nil
}
