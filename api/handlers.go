/*
handlers.go - HTTP API handlers for the stock ledger

PURPOSE:
  Exposes the catalog, the movement ledger and the derived balances over
  REST. Handles HTTP request/response and JSON encoding, and delegates
  every rule to the inventory package.

ENDPOINTS:
  Catalog:
    GET    /api/products             List products (insertion order)
    POST   /api/products             Create product {id, name}
    DELETE /api/products/{id}        Delete product
    GET    /api/locations            List locations
    POST   /api/locations            Create location {id, name}
    DELETE /api/locations/{id}       Delete location

  Ledger:
    GET    /api/movements            All movements, id order
    POST   /api/movements            Append one movement

  Derived:
    GET    /api/balances             Every (product, location) cell
    GET    /api/report               Non-zero cells with names (?format=xlsx)
    GET    /api/audit/negative       Cells below zero

  Both /balances and /report accept ?as_of=<RFC 3339> to replay only
  movements recorded at or before that instant.

REQUEST BODIES:
  JSON when Content-Type is application/json, form fields otherwise.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, code is the rejection reason
  - 404: Catalog entry not found
  - 409: Duplicate id, duplicate idempotency key, entry still referenced
  - 500: Storage failures (logged, details not echoed)

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/stock-ledger/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *inventory.Service
	Metrics *Metrics

	resetter inventory.Resetter // nil when the store cannot be wiped

	mu              sync.Mutex // guards scenario loads and currentScenario
	currentScenario string
}

// NewHandler creates a handler over svc. A nil metrics gets a fresh,
// unexposed registry.
func NewHandler(svc *inventory.Service, metrics *Metrics) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	h := &Handler{Service: svc, Metrics: metrics}
	if r, ok := svc.Store.(inventory.Resetter); ok {
		h.resetter = r
	}
	return h
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.Catalog.Products(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, name, err := decodeEntry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err.Error())
		return
	}
	p, err := h.Service.Catalog.AddProduct(r.Context(), inventory.ProductID(id), name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("product_id", string(p.ID)).Msg("product created")
	writeJSON(w, http.StatusCreated, ProductDTO{ID: string(p.ID), Name: p.Name})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := inventory.ProductID(chi.URLParam(r, "id"))
	if err := h.Service.Catalog.RemoveProduct(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("product_id", string(id)).Msg("product deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LOCATION HANDLERS
// =============================================================================

func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Service.Catalog.Locations(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTOs(locations))
}

func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	id, name, err := decodeEntry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err.Error())
		return
	}
	l, err := h.Service.Catalog.AddLocation(r.Context(), inventory.LocationID(id), name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("location_id", string(l.ID)).Msg("location created")
	writeJSON(w, http.StatusCreated, LocationDTO{ID: string(l.ID), Name: l.Name})
}

func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := inventory.LocationID(chi.URLParam(r, "id"))
	if err := h.Service.Catalog.RemoveLocation(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("location_id", string(id)).Msg("location deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Service.Ledger.Movements(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// AppendMovement records one receipt, issue or transfer.
func (h *Handler) AppendMovement(w http.ResponseWriter, r *http.Request) {
	dto, err := decodeMovement(r)
	if err != nil {
		h.rejectBody(w, err)
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		h.rejectBody(w, err)
		return
	}

	mv, err := h.Service.Ledger.Append(r.Context(), req)
	if err != nil {
		h.countRejection(err)
		h.writeDomainError(w, r, err)
		return
	}

	h.Metrics.MovementsAppended.WithLabelValues(mv.Kind()).Inc()
	writeJSON(w, http.StatusCreated, toMovementDTO(mv))
}

func (h *Handler) rejectBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errInvalidQuantity) {
		h.Metrics.MovementsRejected.WithLabelValues("invalid_quantity").Inc()
		writeError(w, http.StatusBadRequest, "invalid_quantity", err.Error(), map[string]string{"field": "quantity"})
		return
	}
	h.Metrics.MovementsRejected.WithLabelValues("invalid_body").Inc()
	writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err.Error())
}

func (h *Handler) countRejection(err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		h.Metrics.MovementsRejected.WithLabelValues(string(verr.Reason)).Inc()
	case errors.Is(err, inventory.ErrDuplicateIdempotencyKey):
		h.Metrics.MovementsRejected.WithLabelValues("duplicate_idempotency_key").Inc()
	}
}

// =============================================================================
// BALANCE / REPORT HANDLERS
// =============================================================================

// GetBalances returns every catalog pair, zeros included, product-major.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_as_of", err.Error(), nil)
		return
	}
	view, err := h.Service.Balances(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	entries := view.Balances.Entries(view.Snapshot.Products, view.Snapshot.Locations)
	writeJSON(w, http.StatusOK, toBalanceDTOs(entries))
}

// GetReport returns non-zero balances with names, as JSON or XLSX.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_as_of", err.Error(), nil)
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "invalid_format", "format must be json or xlsx", nil)
		return
	}

	rows, err := h.Service.Report(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if format == "xlsx" {
		data, err := reportXLSX(rows)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("report export failed")
			writeError(w, http.StatusInternalServerError, "export_failed", "Failed to build spreadsheet", nil)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+reportFilename(asOf)+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, toReportRowDTOs(rows))
}

// GetNegativeBalances lists pairs whose on-hand quantity is below zero.
func (h *Handler) GetNegativeBalances(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.NegativeBalances(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeDomainError maps inventory errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *inventory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, string(verr.Reason), verr.Message, map[string]string{"field": verr.Field})
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found", nil)
	case errors.Is(err, inventory.ErrDuplicateID):
		writeError(w, http.StatusConflict, "duplicate_id", "An entry with this id already exists", nil)
	case errors.Is(err, inventory.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "duplicate_idempotency_key", "A movement with this idempotency key was already recorded", nil)
	case errors.Is(err, inventory.ErrReferenced):
		writeError(w, http.StatusConflict, "referenced", "Entry is referenced by recorded movements", nil)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "storage_error", "Internal error", nil)
	}
}
