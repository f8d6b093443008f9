package billing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"
)

// UpdateSubscription switches an active subscription to a new plan and
// billing cycle. All validation happens before the Stripe mutation: a
// request that fails the interval check leaves both Stripe and the local
// row untouched.
func (s *StripeService) UpdateSubscription(ctx context.Context, req *UpdateRequest) (*UpdateResult, error) {
	if req.StripeSubscriptionID == "" {
		return nil, ErrMissingStripeID
	}
	if !req.BillingCycle.Valid() {
		return nil, ErrInvalidBillingCycle
	}

	plan, err := s.plans.GetPlan(ctx, req.NewPlanID)
	if err != nil {
		return nil, err
	}
	newPriceID := plan.PriceID(req.BillingCycle)
	if newPriceID == "" {
		return nil, &PriceMappingError{VehicleIndex: 0, PlanID: plan.ID}
	}

	// The configured price must actually recur at the requested interval;
	// a mismatched catalog entry would silently change what the customer
	// pays per period.
	newPrice, err := s.stripe.GetPrice(newPriceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price %s: %w", newPriceID, err)
	}
	if newPrice.Recurring == nil || string(newPrice.Recurring.Interval) != req.BillingCycle.Interval() {
		return nil, ErrIntervalMismatch
	}

	sub, err := s.stripe.GetSubscription(req.StripeSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", req.StripeSubscriptionID)
	}

	var vehicleID string
	if req.Vehicle != nil {
		v, err := s.registrar.Resolve(ctx, *req.Vehicle)
		if err != nil {
			return nil, fmt.Errorf("vehicle: %w", err)
		}
		vehicleID = v.ID
	}

	// A plan change is also an implicit un-cancel: the customer is
	// re-committing to the subscription.
	params := &stripe.SubscriptionParams{
		ProrationBehavior: stripe.String("create_prorations"),
		CancelAtPeriodEnd: stripe.Bool(false),
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(newPriceID),
			},
		},
	}
	params.AddMetadata("plan_id", fmt.Sprintf("%d", plan.ID))
	params.AddMetadata("billing_cycle", string(req.BillingCycle))
	if vehicleID != "" {
		params.AddMetadata("vehicle_id", vehicleID)
	}

	updated, err := s.stripe.UpdateSubscription(req.StripeSubscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	// The local row is not touched here; the customer.subscription.updated
	// webhook (and the reconciler sweep) carry the change into the tables.
	s.log.WithFields(logrus.Fields{
		"subscription": updated.ID,
		"plan_id":      plan.ID,
		"cycle":        req.BillingCycle,
	}).Info("subscription updated")

	return &UpdateResult{
		SubscriptionID:    updated.ID,
		Status:            string(updated.Status),
		CancelAtPeriodEnd: updated.CancelAtPeriodEnd,
		VehicleID:         vehicleID,
	}, nil
}
