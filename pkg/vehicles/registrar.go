package vehicles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Registrar resolves a vehicle input to its row, creating one if needed
type Registrar interface {
	Resolve(ctx context.Context, in Input) (*Vehicle, error)
}

// PostgresRegistrar implements Registrar with a single atomic
// upsert-on-conflict, so concurrent requests for the same new vehicle
// land on one row.
type PostgresRegistrar struct {
	db *sql.DB
}

// NewPostgresRegistrar creates a new PostgresRegistrar
func NewPostgresRegistrar(db *sql.DB) *PostgresRegistrar {
	return &PostgresRegistrar{db: db}
}

// Resolve returns the vehicle row matching the input's identity,
// inserting it when absent
func (r *PostgresRegistrar) Resolve(ctx context.Context, in Input) (*Vehicle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.PlateOnly() {
		return r.resolveByPlate(ctx, in)
	}
	return r.resolveByTuple(ctx, in)
}

func (r *PostgresRegistrar) resolveByTuple(ctx context.Context, in Input) (*Vehicle, error) {
	query := `
		INSERT INTO vehicles (id, year, make, model, trim, body_type, colors, license_plate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (year, make, model, trim) WHERE make <> ''
		DO UPDATE SET
			body_type = EXCLUDED.body_type,
			colors = EXCLUDED.colors,
			license_plate = CASE WHEN EXCLUDED.license_plate <> ''
				THEN EXCLUDED.license_plate ELSE vehicles.license_plate END,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	v := &Vehicle{
		Year:         in.Year,
		Make:         in.Make,
		Model:        in.Model,
		Trim:         in.Trim,
		BodyType:     in.BodyType,
		Colors:       in.Colors,
		LicensePlate: in.LicensePlate,
	}
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), in.Year, in.Make, in.Model, in.Trim,
		in.BodyType, pq.Array(in.Colors), in.LicensePlate).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle: %w", err)
	}
	return v, nil
}

func (r *PostgresRegistrar) resolveByPlate(ctx context.Context, in Input) (*Vehicle, error) {
	query := `
		INSERT INTO vehicles (id, body_type, colors, license_plate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (license_plate) WHERE license_plate <> ''
		DO UPDATE SET updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	v := &Vehicle{
		BodyType:     in.BodyType,
		Colors:       in.Colors,
		LicensePlate: in.LicensePlate,
	}
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), in.BodyType, pq.Array(in.Colors), in.LicensePlate).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle by plate: %w", err)
	}
	return v, nil
}
