package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementOpeningStock seeds the initial on-hand quantity.
	MovementOpeningStock MovementType = "OPENING_STOCK"
	// MovementPurchase represents inbound goods from a supplier.
	MovementPurchase MovementType = "PURCHASE"
	// MovementSale represents outbound goods sold to a customer.
	MovementSale MovementType = "SALE"
	// MovementReturn represents goods returned by a customer.
	MovementReturn MovementType = "RETURN"
	// MovementDamage represents written-off goods.
	MovementDamage MovementType = "DAMAGE"
	// MovementAdjustment overwrites the on-hand quantity with an absolute value.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementOpeningStock, MovementPurchase, MovementSale, MovementReturn, MovementDamage, MovementAdjustment:
		return true
	}
	return false
}

// Movement is one append-only stock ledger event. Movements are never
// mutated or deleted once written.
type Movement struct {
	ID        int64        `json:"id"`
	OrgID     int64        `json:"-"`
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"type"`
	Quantity  float64      `json:"quantity"`
	Reference string       `json:"reference,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Inventory is the derived on-hand projection, 1:1 with a product. Its
// quantity equals the cumulative signed effect of all movements since the
// last absolute-set event.
type Inventory struct {
	OrgID           int64      `json:"-"`
	ProductID       int64      `json:"product_id"`
	Quantity        float64    `json:"quantity"`
	ReorderLevel    float64    `json:"reorder_level"`
	ReorderQuantity float64    `json:"reorder_quantity"`
	LastRestockDate *time.Time `json:"last_restock_date,omitempty"`
}

// MovementInput describes a request to record a movement.
type MovementInput struct {
	OrgID     int64
	ActorID   int64
	ProductID int64
	Type      MovementType
	Quantity  float64
	Reference string
	Notes     string
}

// ReorderPriority orders suggestions from most to least urgent.
type ReorderPriority string

const (
	PriorityCritical ReorderPriority = "CRITICAL"
	PriorityHigh     ReorderPriority = "HIGH"
	PriorityMedium   ReorderPriority = "MEDIUM"
)

// ReorderSuggestion recommends a restock for a product below its reorder level.
type ReorderSuggestion struct {
	ProductID       int64           `json:"product_id"`
	Quantity        float64         `json:"quantity"`
	ReorderLevel    float64         `json:"reorder_level"`
	ReorderQuantity float64         `json:"reorder_quantity"`
	Priority        ReorderPriority `json:"priority"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
}

// ForecastStatus classifies projected stock against the reorder level.
type ForecastStatus string

const (
	ForecastHealthy  ForecastStatus = "HEALTHY"
	ForecastWarning  ForecastStatus = "WARNING"
	ForecastStockout ForecastStatus = "STOCKOUT"
)

// ForecastEntry projects stock for one product over the requested window.
// DaysUntilStockout is nil when the trailing sales average is zero.
type ForecastEntry struct {
	ProductID         int64          `json:"product_id"`
	Quantity          float64        `json:"quantity"`
	AvgDailySales     float64        `json:"avg_daily_sales"`
	ProjectedStock    float64        `json:"projected_stock"`
	DaysUntilStockout *float64       `json:"days_until_stockout"`
	Status            ForecastStatus `json:"status"`
}

// HealthBand maps the average product score to a qualitative rating.
type HealthBand string

const (
	HealthExcellent HealthBand = "EXCELLENT"
	HealthGood      HealthBand = "GOOD"
	HealthFair      HealthBand = "FAIR"
	HealthPoor      HealthBand = "POOR"
)

// HealthReport aggregates per-product scores for an organization.
type HealthReport struct {
	Score    float64    `json:"score"`
	Band     HealthBand `json:"band"`
	Products int        `json:"products"`
}

// StockLevel joins inventory with product pricing for report computations.
type StockLevel struct {
	ProductID       int64
	Quantity        float64
	ReorderLevel    float64
	ReorderQuantity float64
	UnitPrice       decimal.Decimal
}

var (
	// ErrInvalidQuantity rejects non-positive movement quantities.
	ErrInvalidQuantity = fmt.Errorf("stock: %w: quantity must be positive", shared.ErrValidation)
	// ErrNegativeStock rejects movements that would drive the on-hand quantity negative.
	ErrNegativeStock = fmt.Errorf("stock: %w: movement would drive quantity negative", shared.ErrValidation)
	// ErrUnknownMovementType rejects movement types outside the closed set.
	ErrUnknownMovementType = fmt.Errorf("stock: %w: unknown movement type", shared.ErrValidation)
)
