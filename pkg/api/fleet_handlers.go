package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/washdeck/washdeck/pkg/fleet"
	"github.com/washdeck/washdeck/pkg/httputil"
	"github.com/washdeck/washdeck/pkg/observability"
)

// FleetHandlers manages fleet contract invoices
type FleetHandlers struct {
	fleet fleet.Service
	log   *observability.Logger
}

// NewFleetHandlers creates a new FleetHandlers
func NewFleetHandlers(fleetService fleet.Service, log *observability.Logger) *FleetHandlers {
	return &FleetHandlers{fleet: fleetService, log: log}
}

// RegisterRoutes registers fleet invoice routes
func (h *FleetHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/admin/fleet-invoices", h.CreateInvoice).Methods("POST")
	router.HandleFunc("/api/admin/fleet-invoices", h.ListInvoices).Methods("GET").Queries("contract", "{contract}")
	router.HandleFunc("/api/admin/fleet-invoices/{id:[0-9]+}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/api/admin/fleet-invoices/{id:[0-9]+}/send", h.SendInvoice).Methods("POST")
	router.HandleFunc("/api/admin/fleet-invoices/{id:[0-9]+}/pdf", h.RenderInvoice).Methods("POST")
}

// ListInvoices returns a contract's invoices
func (h *FleetHandlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	contract, ok := httputil.ParsePathStringOrError(w, r, "contract")
	if !ok {
		return
	}

	invoices, err := h.fleet.ListInvoices(r.Context(), contract)
	if err != nil {
		h.log.Error("failed to list invoices", "contract", contract, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, invoices)
}

// CreateInvoice opens a new invoice for a contract
func (h *FleetHandlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv fleet.Invoice
	if !httputil.ParseJSONOrError(w, r, &inv) {
		return
	}
	if inv.ContractID == "" {
		httputil.WriteBadRequest(w, "contract_id is required")
		return
	}

	created, err := h.fleet.CreateInvoice(r.Context(), &inv)
	if err != nil {
		h.log.Error("failed to create invoice", "contract", inv.ContractID, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, created)
}

// GetInvoice returns one invoice by id
func (h *FleetHandlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.fleet.GetInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, fleet.ErrInvoiceNotFound) {
			httputil.WriteNotFound(w, "invoice not found")
			return
		}
		h.log.Error("failed to get invoice", "invoice_id", id, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// SendInvoice moves a draft invoice to sent
func (h *FleetHandlers) SendInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.fleet.SendInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, fleet.ErrInvoiceNotFound) {
			httputil.WriteNotFound(w, "invoice not found")
			return
		}
		if errors.Is(err, fleet.ErrInvoiceNotDraft) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.log.Error("failed to send invoice", "invoice_id", id, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, inv)
}

type renderRequest struct {
	Lines []struct {
		Description string `json:"description"`
		Quantity    int64  `json:"quantity"`
		UnitCents   int64  `json:"unitCents"`
	} `json:"lines"`
}

// RenderInvoice renders the invoice PDF and archives it
func (h *FleetHandlers) RenderInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req renderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Lines) == 0 {
		httputil.WriteBadRequest(w, "at least one line item is required")
		return
	}

	lines := make([]fleet.LineItem, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, fleet.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitCents:   l.UnitCents,
		})
	}

	key, err := h.fleet.RenderAndArchive(r.Context(), id, lines)
	if err != nil {
		if errors.Is(err, fleet.ErrInvoiceNotFound) {
			httputil.WriteNotFound(w, "invoice not found")
			return
		}
		h.log.Error("failed to render invoice", "invoice_id", id, "error", err)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"pdfKey": key})
}
