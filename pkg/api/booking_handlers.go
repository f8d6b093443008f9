package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/washdeck/washdeck/pkg/bookings"
	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
)

// BookingHandlers handles appointment requests and the activity feed
type BookingHandlers struct {
	bookings bookings.Service
	feed     http.Handler
	log      *observability.Logger
}

// NewBookingHandlers creates a new BookingHandlers. feed may be nil to
// disable the websocket endpoint.
func NewBookingHandlers(bookingService bookings.Service, feed http.Handler, log *observability.Logger) *BookingHandlers {
	return &BookingHandlers{bookings: bookingService, feed: feed, log: log}
}

// RegisterRoutes registers booking routes
func (h *BookingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/bookings", h.CreateBooking).Methods("POST")
	router.HandleFunc("/api/bookings", h.ListBookings).Methods("GET")
	// The feed route must precede {id}: mux matches in registration order.
	if h.feed != nil {
		router.Handle("/api/bookings/feed", h.feed).Methods("GET")
	}
	router.HandleFunc("/api/bookings/{id}", h.GetBooking).Methods("GET")
	router.HandleFunc("/api/bookings/{id}/status", h.UpdateStatus).Methods("PUT")
}

// CreateBooking schedules a new appointment
func (h *BookingHandlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in bookings.Input
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	booking, err := h.bookings.CreateBooking(r.Context(), &in)
	if err != nil {
		// Validation failures carry user-facing messages.
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, booking)
}

// ListBookings returns bookings in a date window; defaults to the next
// seven days
func (h *BookingHandlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := now
	to := now.Add(7 * 24 * time.Hour)

	if s := httputil.ParseQueryString(r, "from", ""); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httputil.WriteBadRequest(w, "from must be RFC3339")
			return
		}
		from = t
	}
	if s := httputil.ParseQueryString(r, "to", ""); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httputil.WriteBadRequest(w, "to must be RFC3339")
			return
		}
		to = t
	}

	list, err := h.bookings.ListBookings(r.Context(), from, to)
	if err != nil {
		h.log.Error("failed to list bookings", "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetBooking returns one booking by id
func (h *BookingHandlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			httputil.WriteNotFound(w, "booking not found")
			return
		}
		h.log.Error("failed to get booking", "booking_id", id, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, booking)
}

type statusRequest struct {
	Status bookings.Status `json:"status"`
}

// UpdateStatus moves a booking through its lifecycle
func (h *BookingHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	booking, err := h.bookings.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			httputil.WriteNotFound(w, "booking not found")
		case errors.Is(err, bookings.ErrInvalidStatus):
			httputil.WriteBadRequest(w, err.Error())
		default:
			h.log.Error("failed to update booking", "booking_id", id, "error", err)
			httputil.WriteInternalError(w)
		}
		return
	}
	httputil.WriteSuccess(w, booking)
}
