package bookings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Service defines booking operations
type Service interface {
	CreateBooking(ctx context.Context, in *Input) (*Booking, error)
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]*Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error)
}

// Publisher receives booking activity; the websocket Feed implements it
type Publisher interface {
	Publish(ev Event)
}

// PostgresService implements Service against the bookings table
type PostgresService struct {
	db      *sql.DB
	feed    Publisher
	log     *logrus.Logger
	created prometheus.Counter
}

// NewPostgresService creates a new PostgresService. feed and created may
// be nil.
func NewPostgresService(db *sql.DB, feed Publisher, log *logrus.Logger, created prometheus.Counter) *PostgresService {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresService{db: db, feed: feed, log: log, created: created}
}

const bookingColumns = `id, customer_name, customer_email, phone, service_type,
	       vehicle_id, scheduled_at, status, notes, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*Booking, error) {
	var b Booking
	var vehicleID sql.NullString
	err := row.Scan(&b.ID, &b.CustomerName, &b.CustomerEmail, &b.Phone,
		&b.ServiceType, &vehicleID, &b.ScheduledAt, &b.Status, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if vehicleID.Valid {
		b.VehicleID = vehicleID.String
	}
	return &b, nil
}

// CreateBooking validates and inserts a new pending booking, then
// publishes it to the activity feed
func (s *PostgresService) CreateBooking(ctx context.Context, in *Input) (*Booking, error) {
	if err := in.Validate(time.Now()); err != nil {
		return nil, err
	}

	var vehicleID interface{}
	if in.VehicleID != "" {
		vehicleID = in.VehicleID
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO bookings
			(id, customer_name, customer_email, phone, service_type, vehicle_id, scheduled_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING `+bookingColumns+`
	`, uuid.NewString(), in.CustomerName, in.CustomerEmail, in.Phone,
		in.ServiceType, vehicleID, in.ScheduledAt, in.Notes)

	booking, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if s.created != nil {
		s.created.Inc()
	}
	if s.feed != nil {
		s.feed.Publish(Event{Kind: "created", Booking: booking})
	}
	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"service":    booking.ServiceType,
	}).Info("booking created")
	return booking, nil
}

// GetBooking fetches a single booking by id
func (s *PostgresService) GetBooking(ctx context.Context, id string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings scheduled within [from, to)
func (s *PostgresService) ListBookings(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// UpdateStatus moves a booking to a new lifecycle status and publishes
// the change
func (s *PostgresService) UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+bookingColumns+`
	`, string(status), id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if s.feed != nil {
		s.feed.Publish(Event{Kind: "status_changed", Booking: b})
	}
	return b, nil
}
