package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/stock-ledger/inventory"
)

// =============================================================================
// CATALOG DTOs
// =============================================================================

// ProductDTO is a product in API responses and create requests.
type ProductDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LocationDTO is a location in API responses and create requests.
type LocationDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// MOVEMENT DTOs
// =============================================================================

// MovementRequestDTO is the body of POST /api/movements. Quantity accepts a
// JSON number or a numeric string and must be a whole number.
type MovementRequestDTO struct {
	ProductID      string          `json:"product_id"`
	FromLocation   string          `json:"from_location,omitempty"`
	ToLocation     string          `json:"to_location,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// MovementDTO is a stored movement.
type MovementDTO struct {
	ID             int64  `json:"id"`
	ProductID      string `json:"product_id"`
	FromLocation   string `json:"from_location,omitempty"`
	ToLocation     string `json:"to_location,omitempty"`
	Quantity       int64  `json:"quantity"`
	Kind           string `json:"kind"`
	CreatedAt      string `json:"created_at"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// =============================================================================
// BALANCE / REPORT DTOs
// =============================================================================

// BalanceDTO is one (product, location) cell, zero cells included.
type BalanceDTO struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   int64  `json:"quantity"`
}

// ReportRowDTO is one non-zero report line.
type ReportRowDTO struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	Quantity     int64  `json:"quantity"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// REQUEST DECODING
// =============================================================================

// errInvalidQuantity marks a quantity that is not a whole number in range.
var errInvalidQuantity = errors.New("quantity must be a whole number")

// isJSON reports whether the request body is JSON. Anything else is parsed
// as a form.
func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// decodeEntry reads {id, name} from JSON or form fields.
func decodeEntry(r *http.Request) (id, name string, err error) {
	if isJSON(r) {
		var dto ProductDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			return "", "", err
		}
		return dto.ID, dto.Name, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return r.PostForm.Get("id"), r.PostForm.Get("name"), nil
}

// decodeMovement reads a movement request from JSON or form fields. The
// Idempotency-Key header is used when the body carries no key.
func decodeMovement(r *http.Request) (MovementRequestDTO, error) {
	var dto MovementRequestDTO
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			return dto, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return dto, err
		}
		dto.ProductID = r.PostForm.Get("product_id")
		dto.FromLocation = r.PostForm.Get("from_location")
		dto.ToLocation = r.PostForm.Get("to_location")
		dto.IdempotencyKey = r.PostForm.Get("idempotency_key")
		if raw := strings.TrimSpace(r.PostForm.Get("quantity")); raw != "" {
			q, err := decimal.NewFromString(raw)
			if err != nil {
				return dto, fmt.Errorf("%w: %q", errInvalidQuantity, raw)
			}
			dto.Quantity = q
		}
	}
	if dto.IdempotencyKey == "" {
		dto.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	return dto, nil
}

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

// toRequest converts the DTO into a ledger request. A fractional or
// out-of-range quantity is refused here rather than truncated.
func (d MovementRequestDTO) toRequest() (inventory.MovementRequest, error) {
	q := d.Quantity
	if !q.IsInteger() || q.GreaterThan(maxQuantity) || q.LessThan(minQuantity) {
		return inventory.MovementRequest{}, fmt.Errorf("%w, got %s", errInvalidQuantity, q.String())
	}
	return inventory.MovementRequest{
		ProductID:      inventory.ProductID(strings.TrimSpace(d.ProductID)),
		From:           inventory.LocationID(strings.TrimSpace(d.FromLocation)),
		To:             inventory.LocationID(strings.TrimSpace(d.ToLocation)),
		Quantity:       q.IntPart(),
		IdempotencyKey: strings.TrimSpace(d.IdempotencyKey),
	}, nil
}

// parseAsOf reads the optional as_of query parameter. Empty means now.
func parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("as_of must be RFC 3339, got %q", raw)
	}
	return t, nil
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProductDTOs(products []inventory.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ProductDTO{ID: string(p.ID), Name: p.Name}
	}
	return dtos
}

func toLocationDTOs(locations []inventory.Location) []LocationDTO {
	dtos := make([]LocationDTO, len(locations))
	for i, l := range locations {
		dtos[i] = LocationDTO{ID: string(l.ID), Name: l.Name}
	}
	return dtos
}

func toMovementDTO(m inventory.Movement) MovementDTO {
	return MovementDTO{
		ID:             int64(m.ID),
		ProductID:      string(m.ProductID),
		FromLocation:   string(m.From),
		ToLocation:     string(m.To),
		Quantity:       m.Quantity,
		Kind:           m.Kind(),
		CreatedAt:      m.CreatedAt.Format(time.RFC3339Nano),
		IdempotencyKey: m.IdempotencyKey,
	}
}

func toMovementDTOs(movements []inventory.Movement) []MovementDTO {
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	return dtos
}

func toBalanceDTOs(entries []inventory.Entry) []BalanceDTO {
	dtos := make([]BalanceDTO, len(entries))
	for i, e := range entries {
		dtos[i] = BalanceDTO{ProductID: string(e.Product), LocationID: string(e.Location), Quantity: e.Quantity}
	}
	return dtos
}

func toReportRowDTOs(rows []inventory.ReportRow) []ReportRowDTO {
	dtos := make([]ReportRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = ReportRowDTO{
			ProductID:    string(row.ProductID),
			ProductName:  row.ProductName,
			LocationID:   string(row.LocationID),
			LocationName: row.LocationName,
			Quantity:     row.Quantity,
		}
	}
	return dtos
}
