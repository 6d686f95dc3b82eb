package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolstock/stockroom/internal/apperr"
)

// DefaultLocation is where stock created from a purchase is placed unless
// another location is given.
const DefaultLocation = "Warehouse"

// DefaultLowStockThreshold is the available quantity below which an item is
// reported as low stock.
const DefaultLowStockThreshold = 5

// StockItem is a stocked item with its quantities.
//
// TotalQuantity counts everything ever acquired (minus stock-take write-offs);
// AvailableQuantity is what is on the shelf right now. Stock-outs and borrows
// reduce only the available quantity.
type StockItem struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	ItemName          string          `json:"item_name"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	Location          string          `json:"location"`
	CourseTag         string          `json:"course_tag,omitempty"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	IsPresent         *bool           `json:"is_present,omitempty"`
	LastChecked       *time.Time      `json:"last_checked,omitempty"`
	PurchaseItemID    *uuid.UUID      `json:"purchase_item_id,omitempty"`
	ImageMime         string          `json:"image_mime,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// StockLevel classifies the available quantity of a stock item.
type StockLevel string

// Stock levels.
const (
	LevelAvailable  StockLevel = "available"
	LevelLowStock   StockLevel = "low_stock"
	LevelOutOfStock StockLevel = "out_of_stock"
)

// Level returns the stock level given the low-stock threshold.
func (s *StockItem) Level(lowThreshold int) StockLevel {
	switch {
	case s.AvailableQuantity == 0:
		return LevelOutOfStock
	case s.AvailableQuantity < lowThreshold:
		return LevelLowStock
	default:
		return LevelAvailable
	}
}

// Value returns the worth of the available quantity at purchase price.
func (s *StockItem) Value() decimal.Decimal {
	return s.PurchasePrice.Mul(decimal.NewFromInt(int64(s.AvailableQuantity)))
}

// ApplyMovement applies a stock-in or stock-out of qty. On error the item is
// left unchanged.
func (s *StockItem) ApplyMovement(t TransactionType, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}

	switch t {
	case TransactionIn:
		s.AvailableQuantity += qty
		s.TotalQuantity += qty
	case TransactionOut:
		if qty > s.AvailableQuantity {
			return apperr.Newf(apperr.CodeInsufficientStock,
				"cannot take out %d of %q: only %d available", qty, s.ItemName, s.AvailableQuantity)
		}
		s.AvailableQuantity -= qty
	default:
		return apperr.Validation("type", "must be one of: in out")
	}
	return nil
}

// Reverse undoes an earlier movement of type original and quantity qty. An
// erroneous stock-in comes off both quantities; an erroneous stock-out goes
// back on the shelf.
func (s *StockItem) Reverse(original TransactionType, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}

	switch original {
	case TransactionIn:
		if qty > s.AvailableQuantity {
			return apperr.Newf(apperr.CodeInsufficientStock,
				"cannot reverse stock-in of %d for %q: only %d available", qty, s.ItemName, s.AvailableQuantity)
		}
		s.AvailableQuantity -= qty
		s.TotalQuantity -= qty
	case TransactionOut:
		if s.AvailableQuantity+qty > s.TotalQuantity {
			return apperr.Newf(apperr.CodeConflict,
				"cannot reverse stock-out of %d for %q: would exceed the total quantity of %d", qty, s.ItemName, s.TotalQuantity)
		}
		s.AvailableQuantity += qty
	default:
		return apperr.Validation("type", "must be one of: in out")
	}
	return nil
}

// Lend takes qty off the shelf for a borrow.
func (s *StockItem) Lend(qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}
	if qty > s.AvailableQuantity {
		return apperr.Newf(apperr.CodeInsufficientStock,
			"cannot lend %d of %q: only %d available", qty, s.ItemName, s.AvailableQuantity)
	}
	s.AvailableQuantity -= qty
	return nil
}

// Restore puts qty back on the shelf after a return. The available quantity
// never rises above the total; a recount while the items were out may
// already have counted them.
func (s *StockItem) Restore(qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "must be greater than 0")
	}
	s.AvailableQuantity = min(s.AvailableQuantity+qty, s.TotalQuantity)
	return nil
}

// Recount sets the available quantity to a physically counted value and
// moves the total by difference. The total never drops below the counted
// quantity, which can otherwise happen when the item moved after the
// difference was computed.
func (s *StockItem) Recount(counted, difference int) error {
	if counted < 0 {
		return apperr.Validation("counted_quantity", "must be 0 or more")
	}
	s.AvailableQuantity = counted
	s.TotalQuantity += difference
	if s.TotalQuantity < s.AvailableQuantity {
		s.TotalQuantity = s.AvailableQuantity
	}
	return nil
}

// StockInput holds the editable fields of a stock item.
type StockInput struct {
	ItemName      string `json:"item_name" validate:"required,max=100"`
	TotalQuantity int    `json:"total_quantity" validate:"gt=0,max=999999"`
	// AvailableQuantity defaults to TotalQuantity when unset.
	AvailableQuantity *int            `json:"available_quantity" validate:"omitempty,gte=0"`
	Location          string          `json:"location" validate:"required,max=100"`
	CourseTag         string          `json:"course_tag" validate:"max=50"`
	PurchasePrice     decimal.Decimal `json:"purchase_price" validate:"gte=0,lte=999999.99"`
}

// Normalize trims text fields.
func (in *StockInput) Normalize() {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Location = strings.TrimSpace(in.Location)
	in.CourseTag = strings.TrimSpace(in.CourseTag)
}

// StockUpdate holds the descriptive fields that may be edited on an existing
// stock item. Quantities only change through movements.
type StockUpdate struct {
	Version       int64           `json:"version"`
	ItemName      string          `json:"item_name" validate:"required,max=100"`
	Location      string          `json:"location" validate:"required,max=100"`
	CourseTag     string          `json:"course_tag" validate:"max=50"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0,lte=999999.99"`
}

// Normalize trims text fields.
func (in *StockUpdate) Normalize() {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Location = strings.TrimSpace(in.Location)
	in.CourseTag = strings.TrimSpace(in.CourseTag)
}

// StockFilter narrows a stock listing. Zero values match everything; Level
// is evaluated against LowThreshold.
type StockFilter struct {
	CourseTag    string
	Location     string
	Level        StockLevel
	LowThreshold int
	Search       string
}
