package billing

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v72"

	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/vehicles"
)

// fakeStripeClient lets each test supply only the calls it expects;
// an unstubbed call fails loudly.
type fakeStripeClient struct {
	getPriceFunc              func(id string) (*stripe.Price, error)
	createPriceFunc           func(params *stripe.PriceParams) (*stripe.Price, error)
	getCouponFunc             func(id string) (*stripe.Coupon, error)
	createCheckoutSessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscriptionFunc       func(id string) (*stripe.Subscription, error)
	updateSubscriptionFunc    func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	createPortalSessionFunc   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	constructEventFunc        func(payload []byte, sigHeader string) (stripe.Event, error)
}

func (f *fakeStripeClient) GetPrice(id string) (*stripe.Price, error) {
	if f.getPriceFunc == nil {
		return nil, errors.New("unexpected GetPrice call")
	}
	return f.getPriceFunc(id)
}

func (f *fakeStripeClient) CreatePrice(params *stripe.PriceParams) (*stripe.Price, error) {
	if f.createPriceFunc == nil {
		return nil, errors.New("unexpected CreatePrice call")
	}
	return f.createPriceFunc(params)
}

func (f *fakeStripeClient) GetCoupon(id string) (*stripe.Coupon, error) {
	if f.getCouponFunc == nil {
		return nil, errors.New("unexpected GetCoupon call")
	}
	return f.getCouponFunc(id)
}

func (f *fakeStripeClient) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.createCheckoutSessionFunc == nil {
		return nil, errors.New("unexpected CreateCheckoutSession call")
	}
	return f.createCheckoutSessionFunc(params)
}

func (f *fakeStripeClient) GetSubscription(id string) (*stripe.Subscription, error) {
	if f.getSubscriptionFunc == nil {
		return nil, errors.New("unexpected GetSubscription call")
	}
	return f.getSubscriptionFunc(id)
}

func (f *fakeStripeClient) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if f.updateSubscriptionFunc == nil {
		return nil, errors.New("unexpected UpdateSubscription call")
	}
	return f.updateSubscriptionFunc(id, params)
}

func (f *fakeStripeClient) CreatePortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if f.createPortalSessionFunc == nil {
		return nil, errors.New("unexpected CreatePortalSession call")
	}
	return f.createPortalSessionFunc(params)
}

func (f *fakeStripeClient) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.constructEventFunc == nil {
		return stripe.Event{}, errors.New("unexpected ConstructEvent call")
	}
	return f.constructEventFunc(payload, sigHeader)
}

type fakeCatalog struct {
	plans map[int64]*catalog.Plan
}

func (f *fakeCatalog) ListPlans(ctx context.Context) ([]*catalog.Plan, error) {
	out := make([]*catalog.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) GetPlan(ctx context.Context, id int64) (*catalog.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, catalog.ErrPlanNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetPlans(ctx context.Context, ids []int64) (map[int64]*catalog.Plan, error) {
	out := make(map[int64]*catalog.Plan, len(ids))
	for _, id := range ids {
		if p, ok := f.plans[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeRegistrar struct {
	resolveFunc func(ctx context.Context, in vehicles.Input) (*vehicles.Vehicle, error)
	calls       int
}

func (f *fakeRegistrar) Resolve(ctx context.Context, in vehicles.Input) (*vehicles.Vehicle, error) {
	f.calls++
	if f.resolveFunc == nil {
		return &vehicles.Vehicle{ID: "veh-" + in.Model}, nil
	}
	return f.resolveFunc(ctx, in)
}
