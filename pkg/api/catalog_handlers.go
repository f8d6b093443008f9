package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
)

// CatalogHandlers serves the read-only plan catalog
type CatalogHandlers struct {
	catalog catalog.Service
	log     *observability.Logger
}

// NewCatalogHandlers creates a new CatalogHandlers
func NewCatalogHandlers(catalogService catalog.Service, log *observability.Logger) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalogService, log: log}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/plans", h.ListPlans).Methods("GET")
	router.HandleFunc("/api/plans/{id:[0-9]+}", h.GetPlan).Methods("GET")
}

// ListPlans returns every subscription plan
func (h *CatalogHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.ListPlans(r.Context())
	if err != nil {
		h.log.Error("failed to list plans", "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, plans)
}

// GetPlan returns one plan by id
func (h *CatalogHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.catalog.GetPlan(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			httputil.WriteNotFound(w, "plan not found")
			return
		}
		h.log.Error("failed to get plan", "plan_id", id, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, plan)
}
