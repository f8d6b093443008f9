// Package vehicles resolves customer vehicles to stable identifiers. The
// registrar is idempotent: resolving the same vehicle twice, even from
// concurrent requests, yields the same row.
package vehicles

import (
	"fmt"
	"time"
)

// Vehicle is a registered customer vehicle
type Vehicle struct {
	ID           string    `json:"id"`
	Year         int       `json:"year,omitempty"`
	Make         string    `json:"make,omitempty"`
	Model        string    `json:"model,omitempty"`
	Trim         string    `json:"trim,omitempty"`
	BodyType     string    `json:"body_type,omitempty"`
	Colors       []string  `json:"colors,omitempty"`
	LicensePlate string    `json:"license_plate,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input identifies a vehicle either by its (year, make, model, trim)
// tuple or, for plate-only flows, by license plate alone.
type Input struct {
	Year         int      `json:"year,omitempty"`
	Make         string   `json:"make,omitempty"`
	Model        string   `json:"model,omitempty"`
	Trim         string   `json:"trim,omitempty"`
	BodyType     string   `json:"bodyType,omitempty"`
	Colors       []string `json:"colors,omitempty"`
	LicensePlate string   `json:"licensePlate,omitempty"`
}

// PlateOnly reports whether the input identifies the vehicle by plate alone
func (in *Input) PlateOnly() bool {
	return in.Make == "" && in.Model == "" && in.LicensePlate != ""
}

// Validate checks that the input carries enough identity to resolve
func (in *Input) Validate() error {
	if in.PlateOnly() {
		return nil
	}
	if in.Make == "" || in.Model == "" {
		return fmt.Errorf("vehicle requires make and model, or a license plate")
	}
	if in.Year <= 0 {
		return fmt.Errorf("vehicle year is required")
	}
	return nil
}
