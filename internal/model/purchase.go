package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus is the procurement state of a purchase item.
type PurchaseStatus string

// Purchase statuses.
const (
	PurchaseConsidering     PurchaseStatus = "considering"
	PurchaseNotConsider     PurchaseStatus = "not_consider"
	PurchaseWaitingDelivery PurchaseStatus = "waiting_delivery"
	PurchaseArrived         PurchaseStatus = "arrived"
	PurchaseStored          PurchaseStatus = "stored"
)

// purchaseTransitions lists the statuses reachable from each status.
// Re-saving the current status is always allowed and is not listed.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseConsidering:     {PurchaseNotConsider, PurchaseWaitingDelivery, PurchaseArrived, PurchaseStored},
	PurchaseNotConsider:     {PurchaseConsidering, PurchaseStored},
	PurchaseWaitingDelivery: {PurchaseArrived, PurchaseStored},
	PurchaseArrived:         {PurchaseStored},
	PurchaseStored:          nil,
}

// IsValid reports whether s is a recognized status.
func (s PurchaseStatus) IsValid() bool {
	_, ok := purchaseTransitions[s]
	return ok
}

// IsTerminal reports whether the goods have physically arrived. Terminal
// purchases are locked against further edits.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseArrived || s == PurchaseStored
}

// CanTransitionTo reports whether a purchase in status s may move to target.
func (s PurchaseStatus) CanTransitionTo(target PurchaseStatus) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if s == target {
		return true
	}
	for _, next := range purchaseTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// SpawnsStock reports whether moving from one status to another crosses the
// arrival edge, which creates the stock row for the purchase.
func SpawnsStock(from, to PurchaseStatus) bool {
	return to.IsTerminal() && !from.IsTerminal()
}

// PurchaseItem is a requested or ordered purchase.
type PurchaseItem struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	ItemName    string          `json:"item_name"`
	WhereToBuy  string          `json:"where_to_buy"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Link        string          `json:"link,omitempty"`
	Status      PurchaseStatus  `json:"status"`
	CourseTag   string          `json:"course_tag,omitempty"`
	IsPresent   *bool           `json:"is_present,omitempty"`
	LastChecked *time.Time      `json:"last_checked,omitempty"`
	StockItemID *uuid.UUID      `json:"stock_item_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PurchaseInput holds the editable fields of a purchase item.
type PurchaseInput struct {
	ItemName   string          `json:"item_name" validate:"required,max=100"`
	WhereToBuy string          `json:"where_to_buy" validate:"max=200"`
	Price      decimal.Decimal `json:"price" validate:"gte=0,lte=999999.99"`
	Quantity   int             `json:"quantity" validate:"gt=0,max=99999"`
	Link       string          `json:"link" validate:"omitempty,url"`
	Status     PurchaseStatus  `json:"status" validate:"omitempty,oneof=considering not_consider waiting_delivery arrived stored"`
	CourseTag  string          `json:"course_tag" validate:"max=50"`
}

// Normalize trims text fields and applies the default status.
func (in *PurchaseInput) Normalize() {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.WhereToBuy = strings.TrimSpace(in.WhereToBuy)
	in.Link = strings.TrimSpace(in.Link)
	in.CourseTag = strings.TrimSpace(in.CourseTag)
	if in.Status == "" {
		in.Status = PurchaseConsidering
	}
}

// PurchaseFilter narrows a purchase listing. Zero values match everything.
type PurchaseFilter struct {
	Status    PurchaseStatus
	CourseTag string
	Search    string
}
