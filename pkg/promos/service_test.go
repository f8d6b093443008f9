package promos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "code", "stripe_coupon_id", "description", "active",
		"expires_at", "created_at", "updated_at",
	})
}

func TestGetCodeCaseInsensitive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM promo_codes").
		WithArgs("welcome10").
		WillReturnRows(promoRows().AddRow(1, "WELCOME10", "coup_1", "intro offer", true, nil, now, now))

	svc := NewPostgresService(db)
	p, err := svc.GetCode(context.Background(), "welcome10")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", p.Code)
	assert.Equal(t, "coup_1", p.StripeCouponID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCodeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM promo_codes").
		WithArgs("NOPE").
		WillReturnRows(promoRows())

	svc := NewPostgresService(db)
	_, err = svc.GetCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResolveCouponExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	past := now.Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM promo_codes").
		WithArgs("SUMMER").
		WillReturnRows(promoRows().AddRow(2, "SUMMER", "coup_2", "", true, past, now, now))

	svc := NewPostgresService(db)
	_, err = svc.ResolveCoupon(context.Background(), "SUMMER")
	assert.ErrorIs(t, err, ErrCodeNotUsable)
}

func TestResolveCouponInactive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM promo_codes").
		WithArgs("OLD").
		WillReturnRows(promoRows().AddRow(3, "OLD", "coup_3", "", false, nil, now, now))

	svc := NewPostgresService(db)
	_, err = svc.ResolveCoupon(context.Background(), "OLD")
	assert.ErrorIs(t, err, ErrCodeNotUsable)
}

func TestResolveCouponUsable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	future := now.Add(24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM promo_codes").
		WithArgs("FRESH").
		WillReturnRows(promoRows().AddRow(4, "FRESH", "coup_4", "", true, future, now, now))

	svc := NewPostgresService(db)
	coupon, err := svc.ResolveCoupon(context.Background(), "FRESH")
	require.NoError(t, err)
	assert.Equal(t, "coup_4", coupon)
}

func TestCreateCodeNormalizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO promo_codes").
		WithArgs("SPRING25", "coup_5", "spring promo", true, nil).
		WillReturnRows(promoRows().AddRow(5, "SPRING25", "coup_5", "spring promo", true, nil, now, now))

	svc := NewPostgresService(db)
	created, err := svc.CreateCode(context.Background(), &PromoCode{
		Code:           "  spring25 ",
		StripeCouponID: "coup_5",
		Description:    "spring promo",
	})
	require.NoError(t, err)
	assert.Equal(t, "SPRING25", created.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateCodeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE promo_codes SET active").
		WithArgs("GHOST").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewPostgresService(db)
	err = svc.DeactivateCode(context.Background(), "GHOST")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
