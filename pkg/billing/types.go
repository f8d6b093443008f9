package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/vehicles"
)

// SubscriptionStatus mirrors the status Stripe reports for a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
)

// UserSubscription is a locally stored subscription row
type UserSubscription struct {
	ID                   int64                `json:"id"`
	UserID               string               `json:"user_id"`
	PlanID               int64                `json:"plan_id"`
	StripeCustomerID     string               `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string               `json:"stripe_subscription_id,omitempty"`
	Status               SubscriptionStatus   `json:"status"`
	BillingCycle         catalog.BillingCycle `json:"billing_cycle"`
	CurrentPeriodStart   *time.Time           `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time           `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                 `json:"cancel_at_period_end"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// CheckoutRequest asks for a hosted payment page for 1..N vehicles.
// Single-vehicle clients may send "vehicle" instead of a one-element
// "vehicles" array.
type CheckoutRequest struct {
	UserID       string               `json:"userId"`
	PlanID       int64                `json:"planId"`
	BillingCycle catalog.BillingCycle `json:"billingCycle"`
	Vehicle      *vehicles.Input      `json:"vehicle,omitempty"`
	Vehicles     []vehicles.Input     `json:"vehicles"`
	// VehiclePlans optionally overrides PlanID per vehicle; when set its
	// length must equal len(Vehicles)
	VehiclePlans []int64 `json:"vehiclePlans,omitempty"`
	CouponID     string  `json:"couponId,omitempty"`
}

// CheckoutSession is the hosted payment page handle returned to the client
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// UpdateRequest switches an existing subscription to a new plan/cycle
type UpdateRequest struct {
	StripeSubscriptionID string               `json:"stripeSubscriptionId"`
	NewPlanID            int64                `json:"newPlanId"`
	BillingCycle         catalog.BillingCycle `json:"billingCycle"`
	Vehicle              *vehicles.Input      `json:"vehicle,omitempty"`
	UserID               string               `json:"userId,omitempty"`
}

// UpdateResult summarizes the mutated subscription
type UpdateResult struct {
	SubscriptionID    string `json:"subscriptionId"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
	VehicleID         string `json:"vehicleId,omitempty"`
}

// Outcome classifies what a webhook event did, so callers and tests can
// distinguish the paths without reading logs
type Outcome string

const (
	// OutcomeApplied means a local row was updated
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored means the event type is not handled or was a replay
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched means the event was handled but no local row matched
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeSignatureInvalid means the payload could not be trusted
	OutcomeSignatureInvalid Outcome = "signature_invalid"
)

// Sentinel errors mapped to HTTP statuses at the API layer
var (
	ErrNoVehicles           = errors.New("at least one vehicle is required")
	ErrInvalidBillingCycle  = errors.New("billing cycle must be monthly or yearly")
	ErrCouponInvalid        = errors.New("Promo code is no longer valid")
	ErrIntervalMismatch     = errors.New("price interval does not match requested billing cycle")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrMissingStripeID      = errors.New("subscription has no billing reference")
	ErrVehiclePlanMismatch  = errors.New("vehiclePlans must have one entry per vehicle")
)

// PriceMappingError reports which vehicle's plan has no price for the
// requested billing cycle
type PriceMappingError struct {
	VehicleIndex int
	PlanID       int64
}

func (e *PriceMappingError) Error() string {
	return fmt.Sprintf("no price configured for vehicle %d (plan %d)", e.VehicleIndex, e.PlanID)
}
