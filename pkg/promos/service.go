package promos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Service defines promo code management and resolution
type Service interface {
	ListCodes(ctx context.Context) ([]*PromoCode, error)
	GetCode(ctx context.Context, code string) (*PromoCode, error)
	CreateCode(ctx context.Context, code *PromoCode) (*PromoCode, error)
	DeactivateCode(ctx context.Context, code string) error
	// ResolveCoupon maps a usable code to its Stripe coupon id.
	// Inactive or expired codes resolve to ErrCodeNotUsable.
	ResolveCoupon(ctx context.Context, code string) (string, error)
}

// PostgresService implements Service against the promo_codes table
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const promoColumns = `id, code, stripe_coupon_id, description, active,
	       expires_at, created_at, updated_at`

func scanPromo(row interface{ Scan(...interface{}) error }) (*PromoCode, error) {
	var p PromoCode
	var expires sql.NullTime
	err := row.Scan(&p.ID, &p.Code, &p.StripeCouponID, &p.Description,
		&p.Active, &expires, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		p.ExpiresAt = &expires.Time
	}
	return &p, nil
}

// ListCodes returns all promo codes, newest first
func (s *PostgresService) ListCodes(ctx context.Context) ([]*PromoCode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	var codes []*PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		codes = append(codes, p)
	}
	return codes, rows.Err()
}

// GetCode fetches one promo code by its text, case-insensitively
func (s *PostgresService) GetCode(ctx context.Context, code string) (*PromoCode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		WHERE UPPER(code) = UPPER($1)
	`, code)
	p, err := scanPromo(row)
	if err == sql.ErrNoRows {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return p, nil
}

// CreateCode inserts a new promo code. Codes are stored upper-cased so
// lookups never depend on how the customer typed them.
func (s *PostgresService) CreateCode(ctx context.Context, code *PromoCode) (*PromoCode, error) {
	if code.Code == "" || code.StripeCouponID == "" {
		return nil, fmt.Errorf("code and stripe coupon id are required")
	}
	normalized := strings.ToUpper(strings.TrimSpace(code.Code))

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO promo_codes (code, stripe_coupon_id, description, active, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+promoColumns+`
	`, normalized, code.StripeCouponID, code.Description, true, code.ExpiresAt)

	created, err := scanPromo(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	return created, nil
}

// DeactivateCode turns a code off without deleting its history
func (s *PostgresService) DeactivateCode(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE promo_codes SET active = FALSE, updated_at = NOW()
		WHERE UPPER(code) = UPPER($1)
	`, code)
	if err != nil {
		return fmt.Errorf("failed to deactivate promo code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// ResolveCoupon maps a code to its Stripe coupon, enforcing local
// active/expiry state. Stripe-side validity is checked at checkout time.
func (s *PostgresService) ResolveCoupon(ctx context.Context, code string) (string, error) {
	p, err := s.GetCode(ctx, code)
	if err != nil {
		return "", err
	}
	if !p.Usable(time.Now()) {
		return "", ErrCodeNotUsable
	}
	return p.StripeCouponID, nil
}
