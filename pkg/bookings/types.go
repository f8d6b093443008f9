// Package bookings handles one-off wash appointments and streams
// booking activity to connected dashboards over websockets.
package bookings

import (
	"errors"
	"fmt"
	"time"
)

// Status is the booking lifecycle
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Valid reports whether the status is a known lifecycle value
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Booking is a scheduled wash appointment
type Booking struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Phone         string    `json:"phone,omitempty"`
	ServiceType   string    `json:"service_type"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input is the client payload for creating a booking
type Input struct {
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	Phone         string    `json:"phone,omitempty"`
	ServiceType   string    `json:"serviceType"`
	VehicleID     string    `json:"vehicleId,omitempty"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Notes         string    `json:"notes,omitempty"`
}

// Validate checks required fields and that the slot is in the future
func (in *Input) Validate(now time.Time) error {
	if in.CustomerName == "" {
		return fmt.Errorf("customer name is required")
	}
	if in.CustomerEmail == "" {
		return fmt.Errorf("customer email is required")
	}
	if in.ServiceType == "" {
		return fmt.Errorf("service type is required")
	}
	if !in.ScheduledAt.After(now) {
		return fmt.Errorf("scheduled time must be in the future")
	}
	return nil
}

// Event is one feed message describing booking activity
type Event struct {
	Kind    string   `json:"kind"` // "created" or "status_changed"
	Booking *Booking `json:"booking"`
}

// ErrBookingNotFound is returned when no booking row matches
var ErrBookingNotFound = errors.New("booking not found")

// ErrInvalidStatus is returned for an unknown status transition target
var ErrInvalidStatus = errors.New("invalid booking status")
