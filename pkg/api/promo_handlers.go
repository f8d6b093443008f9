package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
	"github.com/washdeck/washdeck/pkg/promos"
)

// PromoHandlers manages promotional codes
type PromoHandlers struct {
	promos promos.Service
	log    *observability.Logger
}

// NewPromoHandlers creates a new PromoHandlers
func NewPromoHandlers(promoService promos.Service, log *observability.Logger) *PromoHandlers {
	return &PromoHandlers{promos: promoService, log: log}
}

// RegisterRoutes registers promo code routes
func (h *PromoHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/admin/promo-codes", h.ListCodes).Methods("GET")
	router.HandleFunc("/api/admin/promo-codes", h.CreateCode).Methods("POST")
	router.HandleFunc("/api/admin/promo-codes/{code}", h.DeactivateCode).Methods("DELETE")
	router.HandleFunc("/api/promo-codes/{code}/validate", h.ValidateCode).Methods("GET")
}

// ListCodes returns all promo codes
func (h *PromoHandlers) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.promos.ListCodes(r.Context())
	if err != nil {
		h.log.Error("failed to list promo codes", "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, codes)
}

// CreateCode registers a new promo code
func (h *PromoHandlers) CreateCode(w http.ResponseWriter, r *http.Request) {
	var code promos.PromoCode
	if !httputil.ParseJSONOrError(w, r, &code) {
		return
	}

	created, err := h.promos.CreateCode(r.Context(), &code)
	if err != nil {
		if errors.Is(err, promos.ErrCodeExists) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.log.Error("failed to create promo code", "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, created)
}

// DeactivateCode turns a promo code off
func (h *PromoHandlers) DeactivateCode(w http.ResponseWriter, r *http.Request) {
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	if err := h.promos.DeactivateCode(r.Context(), code); err != nil {
		if errors.Is(err, promos.ErrCodeNotFound) {
			httputil.WriteNotFound(w, "promo code not found")
			return
		}
		h.log.Error("failed to deactivate promo code", "code", code, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// ValidateCode reports whether a code can currently be applied
func (h *PromoHandlers) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	_, err := h.promos.ResolveCoupon(r.Context(), code)
	switch {
	case err == nil:
		httputil.WriteSuccess(w, map[string]bool{"valid": true})
	case errors.Is(err, promos.ErrCodeNotFound), errors.Is(err, promos.ErrCodeNotUsable):
		httputil.WriteSuccess(w, map[string]bool{"valid": false})
	default:
		h.log.Error("failed to validate promo code", "code", code, "error", err)
		httputil.WriteInternalError(w)
	}
}
