package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v72"
)

func eventWithRaw(t *testing.T, id, eventType string, obj interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return stripe.Event{
		ID:   id,
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestProcessWebhookSignatureInvalid(t *testing.T) {
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return stripe.Event{}, errors.New("no valid signature")
		},
	}
	svc := newTestService(t, nil, sc, testPlans(), &fakeRegistrar{})

	outcome, _, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "t=bad")
	assert.Equal(t, OutcomeSignatureInvalid, outcome)
	assert.Error(t, err)
}

func TestProcessWebhookUnhandledTypeIgnored(t *testing.T) {
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return stripe.Event{ID: "evt_1", Type: "payment_intent.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}, nil
		},
	}
	svc := newTestService(t, nil, sc, testPlans(), &fakeRegistrar{})

	outcome, eventType, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, "payment_intent.created", eventType)
}

func TestProcessWebhookSubscriptionUpdated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ev := eventWithRaw(t, "evt_2", "customer.subscription.updated", map[string]interface{}{
		"id":                   "sub_77",
		"status":               "past_due",
		"cancel_at_period_end": true,
		"current_period_end":   time.Now().Add(720 * time.Hour).Unix(),
	})
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return ev, nil
		},
	}
	svc := newTestService(t, db, sc, testPlans(), &fakeRegistrar{})

	mock.ExpectExec("UPDATE user_subscription").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE self_service_subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, eventType, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "customer.subscription.updated", eventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessWebhookSubscriptionUnmatched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ev := eventWithRaw(t, "evt_3", "customer.subscription.deleted", map[string]interface{}{
		"id": "sub_unknown",
	})
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return ev, nil
		},
	}
	svc := newTestService(t, db, sc, testPlans(), &fakeRegistrar{})

	mock.ExpectExec("UPDATE user_subscription").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE self_service_subscriptions").WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, _, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	// Unmatched is not an error: Stripe must not retry it.
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, outcome)
}

func TestProcessWebhookReplayIgnored(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ev := eventWithRaw(t, "evt_4", "customer.subscription.updated", map[string]interface{}{
		"id":     "sub_88",
		"status": "active",
	})
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return ev, nil
		},
	}
	svc := newTestService(t, db, sc, testPlans(), &fakeRegistrar{})

	// First delivery applies.
	mock.ExpectExec("UPDATE user_subscription").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE self_service_subscriptions").WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, _, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	// Replay of the same event ID touches nothing.
	outcome, _, err = svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessWebhookCheckoutCompletedInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ev := eventWithRaw(t, "evt_5", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_1",
		"customer":     map[string]interface{}{"id": "cus_5"},
		"subscription": map[string]interface{}{"id": "sub_5"},
		"metadata": map[string]string{
			"user_id":       "user-9",
			"plan_id":       "2",
			"billing_cycle": "yearly",
		},
	})
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			return ev, nil
		},
	}
	svc := newTestService(t, db, sc, testPlans(), &fakeRegistrar{})

	mock.ExpectExec("UPDATE user_subscription").
		WithArgs("cus_5", "sub_5").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO user_subscription").
		WithArgs("user-9", int64(2), "cus_5", "sub_5", "yearly").
		WillReturnResult(sqlmock.NewResult(1, 1))

	outcome, _, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessWebhookInvoicePaidIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Stripe may deliver the same paid invoice under distinct event IDs,
	// which the replay cache does not catch.
	deliveries := []stripe.Event{
		eventWithRaw(t, "evt_6", "invoice.paid", map[string]interface{}{"id": "in_3"}),
		eventWithRaw(t, "evt_7", "invoice.paid", map[string]interface{}{"id": "in_3"}),
	}
	call := 0
	sc := &fakeStripeClient{
		constructEventFunc: func(payload []byte, sigHeader string) (stripe.Event, error) {
			ev := deliveries[call]
			call++
			return ev, nil
		},
	}
	svc := newTestService(t, db, sc, testPlans(), &fakeRegistrar{})

	// COALESCE keeps the original paid_at, so the repeat write is a no-op.
	mock.ExpectExec("SET status = 'paid', paid_at = COALESCE").
		WithArgs("in_3", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET status = 'paid', paid_at = COALESCE").
		WithArgs("in_3", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, _, err := svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	outcome, _, err = svc.ProcessWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
