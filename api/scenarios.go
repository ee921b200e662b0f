/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the store with products,
	locations and movements, each showing one property of the ledger.

AVAILABLE SCENARIOS:

	basic-flow:       One product received then partly transferred
	multi-warehouse:  Several products moving across three sites
	oversold:         An issue larger than stock, leaving a negative balance
	discontinued:     History that names a location no longer in the catalog

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create products and locations through the catalog
 3. Append movements through the ledger, each with a stable
    idempotency key derived from the scenario and step

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "basic-flow"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Catalog and ledger handlers the data goes through
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/warp/stock-ledger/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-flow",
		Name:        "Basic Flow",
		Description: "Receive 10 widgets at Main, transfer 4 to Backroom",
	},
	{
		ID:          "multi-warehouse",
		Name:        "Multi-Warehouse",
		Description: "Three products across a warehouse and two stores, with receipts, transfers and sales",
	},
	{
		ID:          "oversold",
		Name:        "Oversold",
		Description: "A sale larger than stock on hand leaves a negative balance",
	},
	{
		ID:          "discontinued",
		Name:        "Discontinued Site",
		Description: "A closed store is removed from the catalog while its movements stay in the ledger",
	},
}

// scenarioNamespace seeds the per-step idempotency keys.
var scenarioNamespace = uuid.MustParse("6f1c8e2a-4b7d-4c39-9a51-2d0e8b6f7c14")

// scenarioData is what a loader writes.
type scenarioData struct {
	products  []inventory.Product
	locations []inventory.Location
	movements []inventory.MovementRequest
	// removeLocations are deleted after the movements are appended.
	removeLocations []inventory.LocationID
}

func receipt(p inventory.ProductID, to inventory.LocationID, q int64) inventory.MovementRequest {
	return inventory.MovementRequest{ProductID: p, To: to, Quantity: q}
}

func issue(p inventory.ProductID, from inventory.LocationID, q int64) inventory.MovementRequest {
	return inventory.MovementRequest{ProductID: p, From: from, Quantity: q}
}

func transfer(p inventory.ProductID, from, to inventory.LocationID, q int64) inventory.MovementRequest {
	return inventory.MovementRequest{ProductID: p, From: from, To: to, Quantity: q}
}

func scenarioByID(id string) (scenarioData, bool) {
	switch id {
	case "basic-flow":
		return scenarioData{
			products:  []inventory.Product{{ID: "P1", Name: "Widget"}},
			locations: []inventory.Location{{ID: "L1", Name: "Main"}, {ID: "L2", Name: "Backroom"}},
			movements: []inventory.MovementRequest{
				receipt("P1", "L1", 10),
				transfer("P1", "L1", "L2", 4),
			},
		}, true

	case "multi-warehouse":
		return scenarioData{
			products: []inventory.Product{
				{ID: "SKU-100", Name: "Espresso beans 1kg"},
				{ID: "SKU-200", Name: "Paper filters"},
				{ID: "SKU-300", Name: "Ceramic mug"},
			},
			locations: []inventory.Location{
				{ID: "WH", Name: "Central warehouse"},
				{ID: "ST-N", Name: "North store"},
				{ID: "ST-S", Name: "South store"},
			},
			movements: []inventory.MovementRequest{
				receipt("SKU-100", "WH", 120),
				receipt("SKU-200", "WH", 500),
				receipt("SKU-300", "WH", 48),
				transfer("SKU-100", "WH", "ST-N", 30),
				transfer("SKU-100", "WH", "ST-S", 25),
				transfer("SKU-200", "WH", "ST-N", 100),
				transfer("SKU-300", "WH", "ST-S", 12),
				issue("SKU-100", "ST-N", 18),
				issue("SKU-100", "ST-S", 9),
				issue("SKU-200", "ST-N", 40),
				issue("SKU-300", "ST-S", 12),
				transfer("SKU-100", "ST-S", "ST-N", 5),
			},
		}, true

	case "oversold":
		return scenarioData{
			products:  []inventory.Product{{ID: "P1", Name: "Widget"}, {ID: "P2", Name: "Gadget"}},
			locations: []inventory.Location{{ID: "SHOP", Name: "Shop floor"}},
			movements: []inventory.MovementRequest{
				receipt("P1", "SHOP", 3),
				issue("P1", "SHOP", 5),
				receipt("P2", "SHOP", 7),
			},
		}, true

	case "discontinued":
		return scenarioData{
			products: []inventory.Product{{ID: "P1", Name: "Widget"}},
			locations: []inventory.Location{
				{ID: "WH", Name: "Warehouse"},
				{ID: "OLD", Name: "Closed store"},
			},
			movements: []inventory.MovementRequest{
				receipt("P1", "WH", 20),
				transfer("P1", "WH", "OLD", 8),
				transfer("P1", "OLD", "WH", 3),
			},
			removeLocations: []inventory.LocationID{"OLD"},
		}, true
	}
	return scenarioData{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario wipes the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err.Error())
		return
	}
	data, ok := scenarioByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_scenario", "Unknown scenario", req.ScenarioID)
		return
	}
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "reset_unsupported", "Store does not support reset", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.resetter.Reset(ctx); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.seed(ctx, req.ScenarioID, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("scenario", req.ScenarioID).Msg("scenario load failed")
		writeError(w, http.StatusInternalServerError, "scenario_failed", fmt.Sprintf("Failed to load scenario: %v", err), nil)
		return
	}
	h.currentScenario = req.ScenarioID

	hlog.FromRequest(r).Info().
		Str("scenario", req.ScenarioID).
		Int("movements", len(data.movements)).
		Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.resetter == nil {
		writeError(w, http.StatusNotImplemented, "reset_unsupported", "Store does not support reset", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetter.Reset(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.currentScenario = ""
	hlog.FromRequest(r).Warn().Msg("store reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) seed(ctx context.Context, scenarioID string, data scenarioData) error {
	for _, p := range data.products {
		if _, err := h.Service.Catalog.AddProduct(ctx, p.ID, p.Name); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	for _, l := range data.locations {
		if _, err := h.Service.Catalog.AddLocation(ctx, l.ID, l.Name); err != nil {
			return fmt.Errorf("location %s: %w", l.ID, err)
		}
	}
	for i, req := range data.movements {
		req.IdempotencyKey = uuid.NewSHA1(scenarioNamespace, []byte(fmt.Sprintf("%s/%d", scenarioID, i))).String()
		mv, err := h.Service.Ledger.Append(ctx, req)
		if err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
		h.Metrics.MovementsAppended.WithLabelValues(mv.Kind()).Inc()
	}
	// Removed at the store level so the dangling history exists even when
	// strict deletes are on.
	for _, id := range data.removeLocations {
		if err := h.Service.Store.DeleteLocation(ctx, id); err != nil {
			return fmt.Errorf("remove location %s: %w", id, err)
		}
	}
	return nil
}
