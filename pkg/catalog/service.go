package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/washdeck/washdeck/pkg/storage/postgres"
)

// ErrPlanNotFound is returned when a plan id has no catalog row
var ErrPlanNotFound = fmt.Errorf("plan not found")

// Service defines plan catalog lookups
type Service interface {
	ListPlans(ctx context.Context) ([]*Plan, error)
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	// GetPlans fetches a set of plans in one query, keyed by id.
	// Missing ids are absent from the result, not an error.
	GetPlans(ctx context.Context, ids []int64) (map[int64]*Plan, error)
}

// PostgresService implements Service against the subscription_plans table,
// with an optional Redis cache in front of the full-list read.
type PostgresService struct {
	db    *sql.DB
	cache *postgres.Cache
}

// NewPostgresService creates a new PostgresService. cache may be nil.
func NewPostgresService(db *sql.DB, cache *postgres.Cache) *PostgresService {
	return &PostgresService{db: db, cache: cache}
}

const planColumns = `id, name, monthly_price_cents, yearly_price_cents,
	       stripe_price_id_monthly, stripe_price_id_yearly, created_at, updated_at`

const plansCacheKey = "catalog:plans"

// ListPlans returns every plan ordered by monthly price
func (s *PostgresService) ListPlans(ctx context.Context) ([]*Plan, error) {
	var cached []*Plan
	if hit, err := s.cache.GetJSON(ctx, plansCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		ORDER BY monthly_price_cents ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	// Best effort; a cache write failure never fails the read
	s.cache.SetJSON(ctx, plansCacheKey, plans)

	return plans, nil
}

// GetPlan retrieves a single plan by id
func (s *PostgresService) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE id = $1
	`
	plan := &Plan{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&plan.ID, &plan.Name, &plan.MonthlyPriceCents, &plan.YearlyPriceCents,
		&plan.StripePriceIDMonthly, &plan.StripePriceIDYearly,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %d: %w", id, err)
	}
	return plan, nil
}

// GetPlans batch-fetches the given plan ids
func (s *PostgresService) GetPlans(ctx context.Context, ids []int64) (map[int64]*Plan, error) {
	if len(ids) == 0 {
		return map[int64]*Plan{}, nil
	}

	query := `
		SELECT ` + planColumns + `
		FROM subscription_plans
		WHERE id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to batch-fetch plans: %w", err)
	}
	defer rows.Close()

	plans := make(map[int64]*Plan, len(ids))
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans[plan.ID] = plan
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

func scanPlan(rows *sql.Rows) (*Plan, error) {
	plan := &Plan{}
	if err := rows.Scan(
		&plan.ID, &plan.Name, &plan.MonthlyPriceCents, &plan.YearlyPriceCents,
		&plan.StripePriceIDMonthly, &plan.StripePriceIDYearly,
		&plan.CreatedAt, &plan.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	return plan, nil
}
