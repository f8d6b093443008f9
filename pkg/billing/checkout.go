package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v72"

	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/vehicles"
)

// CreateCheckoutSession builds the per-vehicle line items and asks Stripe
// for a hosted payment page in subscription mode.
//
// The first vehicle bills at the plan's catalog price. Every later vehicle
// gets a fresh price object at 90% of its own plan's base amount. A
// supplied coupon is validated with Stripe before it is attached; Stripe
// then applies it on top of the already-discounted line items.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if len(req.Vehicles) == 0 && req.Vehicle != nil {
		req.Vehicles = []vehicles.Input{*req.Vehicle}
	}
	if len(req.Vehicles) == 0 {
		return nil, ErrNoVehicles
	}
	if !req.BillingCycle.Valid() {
		return nil, ErrInvalidBillingCycle
	}
	if len(req.VehiclePlans) > 0 && len(req.VehiclePlans) != len(req.Vehicles) {
		return nil, ErrVehiclePlanMismatch
	}

	// Resolve every vehicle up front; a bad vehicle fails the request
	// before any Stripe call.
	vehicleIDs := make([]string, 0, len(req.Vehicles))
	for i, in := range req.Vehicles {
		v, err := s.registrar.Resolve(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
		vehicleIDs = append(vehicleIDs, v.ID)
	}

	plans, err := s.resolvePlans(ctx, req)
	if err != nil {
		return nil, err
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Vehicles))
	for i := range req.Vehicles {
		plan := plans[s.planIDFor(req, i)]
		if plan == nil {
			return nil, catalog.ErrPlanNotFound
		}
		basePriceID := plan.PriceID(req.BillingCycle)
		if basePriceID == "" {
			return nil, &PriceMappingError{VehicleIndex: i, PlanID: plan.ID}
		}

		priceID := basePriceID
		if i > 0 {
			discounted, err := s.createDiscountedPrice(plan, basePriceID, req.BillingCycle, i)
			if err != nil {
				return nil, err
			}
			priceID = discounted
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(s.baseURL + "/subscriptions/confirmed?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/subscriptions"),
	}
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("plan_id", strconv.FormatInt(req.PlanID, 10))
	params.AddMetadata("billing_cycle", string(req.BillingCycle))
	params.AddMetadata("vehicle_ids", strings.Join(vehicleIDs, ","))
	params.AddMetadata("vehicle_count", strconv.Itoa(len(vehicleIDs)))

	if req.CouponID != "" {
		coupon, err := s.stripe.GetCoupon(req.CouponID)
		if err != nil || coupon == nil || !coupon.Valid {
			return nil, ErrCouponInvalid
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}

	sess, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  req.UserID,
		"vehicles": len(vehicleIDs),
		"session":  sess.ID,
	}).Info("checkout session created")

	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// resolvePlans batch-fetches every distinct plan the request references
func (s *StripeService) resolvePlans(ctx context.Context, req *CheckoutRequest) (map[int64]*catalog.Plan, error) {
	distinct := make(map[int64]struct{})
	for i := range req.Vehicles {
		distinct[s.planIDFor(req, i)] = struct{}{}
	}
	ids := make([]int64, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}
	plans, err := s.plans.GetPlans(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plans: %w", err)
	}
	return plans, nil
}

func (s *StripeService) planIDFor(req *CheckoutRequest, vehicleIndex int) int64 {
	if len(req.VehiclePlans) > 0 {
		return req.VehiclePlans[vehicleIndex]
	}
	return req.PlanID
}

// createDiscountedPrice makes a one-off Stripe price at 90% of the base
// price's unit amount, tagged so dashboard users can tell where it came
// from. The created prices stay behind if the session is never completed;
// they are inert until referenced.
func (s *StripeService) createDiscountedPrice(plan *catalog.Plan, basePriceID string, cycle catalog.BillingCycle, vehicleIndex int) (string, error) {
	base, err := s.stripe.GetPrice(basePriceID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch base price %s: %w", basePriceID, err)
	}
	if base.Product == nil {
		return "", fmt.Errorf("base price %s has no product", basePriceID)
	}

	params := &stripe.PriceParams{
		Currency:   stripe.String(string(base.Currency)),
		Product:    stripe.String(base.Product.ID),
		UnitAmount: stripe.Int64(DiscountedUnitAmount(base.UnitAmount)),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(cycle.Interval()),
		},
		Nickname: stripe.String(fmt.Sprintf("%s multi-vehicle", plan.Name)),
	}
	params.AddMetadata("multi_vehicle_discount", "true")
	params.AddMetadata("base_price_id", basePriceID)
	params.AddMetadata("vehicle_index", strconv.Itoa(vehicleIndex))

	price, err := s.stripe.CreatePrice(params)
	if err != nil {
		return "", fmt.Errorf("failed to create discounted price: %w", err)
	}
	return price.ID, nil
}
