package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full ordered schema for the service
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create vehicles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS vehicles (
					id UUID PRIMARY KEY,
					year INT NOT NULL DEFAULT 0,
					make VARCHAR(64) NOT NULL DEFAULT '',
					model VARCHAR(64) NOT NULL DEFAULT '',
					trim VARCHAR(64) NOT NULL DEFAULT '',
					body_type VARCHAR(32) NOT NULL DEFAULT '',
					colors TEXT[] NOT NULL DEFAULT '{}',
					license_plate VARCHAR(32) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicles_identity
					ON vehicles (year, make, model, trim) WHERE make <> '';
				CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicles_plate
					ON vehicles (license_plate) WHERE license_plate <> '';
			`,
		},
		{
			Version:     2,
			Description: "Create subscription_plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscription_plans (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(128) NOT NULL,
					monthly_price_cents BIGINT NOT NULL DEFAULT 0,
					yearly_price_cents BIGINT NOT NULL DEFAULT 0,
					stripe_price_id_monthly VARCHAR(255) NOT NULL DEFAULT '',
					stripe_price_id_yearly VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create user_subscription and self_service_subscriptions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_subscription (
					id BIGSERIAL PRIMARY KEY,
					user_id VARCHAR(64) NOT NULL,
					plan_id BIGINT REFERENCES subscription_plans(id),
					stripe_customer_id VARCHAR(255) NOT NULL DEFAULT '',
					stripe_subscription_id VARCHAR(255) NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					billing_cycle VARCHAR(16) NOT NULL DEFAULT 'monthly',
					current_period_start TIMESTAMPTZ,
					current_period_end TIMESTAMPTZ,
					cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_user_subscription_user ON user_subscription(user_id);
				CREATE INDEX IF NOT EXISTS idx_user_subscription_stripe ON user_subscription(stripe_subscription_id);

				CREATE TABLE IF NOT EXISTS self_service_subscriptions (
					id BIGSERIAL PRIMARY KEY,
					user_id VARCHAR(64) NOT NULL,
					plan_id BIGINT REFERENCES subscription_plans(id),
					stripe_customer_id VARCHAR(255) NOT NULL DEFAULT '',
					stripe_subscription_id VARCHAR(255) NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					billing_cycle VARCHAR(16) NOT NULL DEFAULT 'monthly',
					current_period_start TIMESTAMPTZ,
					current_period_end TIMESTAMPTZ,
					cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_self_service_user ON self_service_subscriptions(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create fleet_invoices table",
			SQL: `
				CREATE TABLE IF NOT EXISTS fleet_invoices (
					id BIGSERIAL PRIMARY KEY,
					contract_id VARCHAR(64) NOT NULL,
					stripe_invoice_id VARCHAR(255) NOT NULL DEFAULT '',
					status VARCHAR(16) NOT NULL DEFAULT 'draft',
					amount_cents BIGINT NOT NULL DEFAULT 0,
					currency VARCHAR(8) NOT NULL DEFAULT 'usd',
					due_date TIMESTAMPTZ,
					paid_at TIMESTAMPTZ,
					pdf_key VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_fleet_invoices_contract ON fleet_invoices(contract_id);
				CREATE INDEX IF NOT EXISTS idx_fleet_invoices_stripe ON fleet_invoices(stripe_invoice_id);
			`,
		},
		{
			Version:     5,
			Description: "Create promo_codes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS promo_codes (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(64) NOT NULL UNIQUE,
					stripe_coupon_id VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					expires_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     6,
			Description: "Create bookings table",
			SQL: `
				CREATE TABLE IF NOT EXISTS bookings (
					id UUID PRIMARY KEY,
					customer_name VARCHAR(128) NOT NULL,
					customer_email VARCHAR(255) NOT NULL,
					phone VARCHAR(32) NOT NULL DEFAULT '',
					service_type VARCHAR(64) NOT NULL,
					vehicle_id UUID REFERENCES vehicles(id),
					scheduled_at TIMESTAMPTZ NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					notes TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_bookings_scheduled ON bookings(scheduled_at);
				CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);
			`,
		},
	}
}

// RunMigrations applies all pending migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).
			Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
