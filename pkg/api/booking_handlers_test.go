package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/washdeck/washdeck/pkg/bookings"
	"github.com/washdeck/washdeck/pkg/observability"
)

// mockBookingService stubs bookings.Service with per-test functions
type mockBookingService struct {
	createBookingFunc func(ctx context.Context, in *bookings.Input) (*bookings.Booking, error)
	getBookingFunc    func(ctx context.Context, id string) (*bookings.Booking, error)
	listBookingsFunc  func(ctx context.Context, from, to time.Time) ([]*bookings.Booking, error)
	updateStatusFunc  func(ctx context.Context, id string, status bookings.Status) (*bookings.Booking, error)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, in *bookings.Input) (*bookings.Booking, error) {
	return m.createBookingFunc(ctx, in)
}

func (m *mockBookingService) GetBooking(ctx context.Context, id string) (*bookings.Booking, error) {
	return m.getBookingFunc(ctx, id)
}

func (m *mockBookingService) ListBookings(ctx context.Context, from, to time.Time) ([]*bookings.Booking, error) {
	return m.listBookingsFunc(ctx, from, to)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, id string, status bookings.Status) (*bookings.Booking, error) {
	return m.updateStatusFunc(ctx, id, status)
}

func newBookingRouter(svc bookings.Service, feed http.Handler) *mux.Router {
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	router := mux.NewRouter()
	NewBookingHandlers(svc, feed, log).RegisterRoutes(router)
	return router
}

func TestBookingFeedRouteNotShadowedByID(t *testing.T) {
	svc := &mockBookingService{
		getBookingFunc: func(ctx context.Context, id string) (*bookings.Booking, error) {
			t.Fatalf("GetBooking called with id %q for the feed path", id)
			return nil, nil
		},
	}
	feedHit := false
	feed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedHit = true
		w.WriteHeader(http.StatusOK)
	})
	router := newBookingRouter(svc, feed)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bookings/feed", nil))

	assert.True(t, feedHit)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingGetByIDStillRoutes(t *testing.T) {
	svc := &mockBookingService{
		getBookingFunc: func(ctx context.Context, id string) (*bookings.Booking, error) {
			assert.Equal(t, "b-42", id)
			return &bookings.Booking{ID: id, ServiceType: "basic"}, nil
		},
	}
	router := newBookingRouter(svc, http.NotFoundHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bookings/b-42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
