package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionType is the direction of a stock movement.
type TransactionType string

// Transaction types.
const (
	TransactionIn  TransactionType = "in"
	TransactionOut TransactionType = "out"
)

// Opposite returns the reverse direction.
func (t TransactionType) Opposite() TransactionType {
	if t == TransactionIn {
		return TransactionOut
	}
	return TransactionIn
}

// Ledger actors and reasons written by the system itself.
const (
	StockTakeReason    = "Stock Take Update"
	StockTakePerformer = "System - Stock Take"
)

// StockTransaction is one append-only ledger entry.
type StockTransaction struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	StockItemID uuid.UUID       `json:"stock_item_id"`
	ItemName    string          `json:"item_name"`
	Type        TransactionType `json:"type"`
	Quantity    int             `json:"quantity"`
	Reason      string          `json:"reason"`
	PerformedBy string          `json:"performed_by"`
	CorrectsID  *uuid.UUID      `json:"corrects_id,omitempty"`
	Date        time.Time       `json:"date"`
}

// TransactionInput is a requested stock movement.
//
// Version, when set, must match the stock item's current version.
type TransactionInput struct {
	Version     int64           `json:"version"`
	Type        TransactionType `json:"type" validate:"required,oneof=in out"`
	Quantity    int             `json:"quantity" validate:"gt=0,max=999999"`
	Reason      string          `json:"reason" validate:"max=500"`
	PerformedBy string          `json:"performed_by" validate:"required,max=100"`
}

// Normalize trims text fields.
func (in *TransactionInput) Normalize() {
	in.Reason = strings.TrimSpace(in.Reason)
	in.PerformedBy = strings.TrimSpace(in.PerformedBy)
}

// TransactionFilter narrows a ledger listing. Zero values match everything.
type TransactionFilter struct {
	StockItemID uuid.UUID
	Type        TransactionType
	From        time.Time
	To          time.Time
}
