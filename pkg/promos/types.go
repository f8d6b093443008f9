// Package promos manages promotional codes: human-friendly codes that
// map onto Stripe coupons. Codes can be deactivated or expire locally
// without touching the Stripe coupon itself.
package promos

import (
	"errors"
	"time"
)

// PromoCode maps a customer-facing code to a Stripe coupon
type PromoCode struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	StripeCouponID string     `json:"stripe_coupon_id"`
	Description    string     `json:"description,omitempty"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Usable reports whether the code can be applied right now
func (p *PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

var (
	// ErrCodeNotFound means no promo code row matches
	ErrCodeNotFound = errors.New("promo code not found")
	// ErrCodeNotUsable means the code exists but is inactive or expired
	ErrCodeNotUsable = errors.New("promo code is not usable")
	// ErrCodeExists means a code with the same text already exists
	ErrCodeExists = errors.New("promo code already exists")
)
