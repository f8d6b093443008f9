package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washdeck/washdeck/pkg/storage/postgres"
)

func planRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "monthly_price_cents", "yearly_price_cents",
		"stripe_price_id_monthly", "stripe_price_id_yearly", "created_at", "updated_at",
	}).
		AddRow(1, "Basic", 2999, 29990, "price_basic_m", "price_basic_y", now, now).
		AddRow(2, "Deluxe", 4999, 49990, "price_deluxe_m", "price_deluxe_y", now, now)
}

func TestListPlans(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM subscription_plans").WillReturnRows(planRows())

	svc := NewPostgresService(db, nil)
	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Basic", plans[0].Name)
	assert.Equal(t, int64(4999), plans[1].MonthlyPriceCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlansUsesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	cache, err := postgres.NewCache("redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	// First read hits the database and populates the cache
	mock.ExpectQuery("SELECT (.+) FROM subscription_plans").WillReturnRows(planRows())

	svc := NewPostgresService(db, cache)
	ctx := context.Background()

	first, err := svc.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Second read is served from Redis; no further query is expected
	second, err := svc.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].Name, second[0].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlanNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM subscription_plans").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	svc := NewPostgresService(db, nil)
	_, err = svc.GetPlan(context.Background(), 99)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestGetPlansBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM subscription_plans").WillReturnRows(planRows())

	svc := NewPostgresService(db, nil)
	plans, err := svc.GetPlans(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Deluxe", plans[2].Name)
}

func TestGetPlansEmptyInput(t *testing.T) {
	svc := NewPostgresService(nil, nil)
	plans, err := svc.GetPlans(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanPriceIDAndBasePrice(t *testing.T) {
	plan := &Plan{
		MonthlyPriceCents:    4999,
		YearlyPriceCents:     49990,
		StripePriceIDMonthly: "price_m",
		StripePriceIDYearly:  "price_y",
	}

	assert.Equal(t, "price_m", plan.PriceID(BillingCycleMonthly))
	assert.Equal(t, "price_y", plan.PriceID(BillingCycleYearly))
	assert.Equal(t, "", plan.PriceID(BillingCycle("weekly")))
	assert.Equal(t, int64(4999), plan.BasePriceCents(BillingCycleMonthly))
	assert.Equal(t, int64(49990), plan.BasePriceCents(BillingCycleYearly))
}

func TestBillingCycle(t *testing.T) {
	assert.True(t, BillingCycleMonthly.Valid())
	assert.True(t, BillingCycleYearly.Valid())
	assert.False(t, BillingCycle("weekly").Valid())
	assert.Equal(t, "month", BillingCycleMonthly.Interval())
	assert.Equal(t, "year", BillingCycleYearly.Interval())
}
