package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BorrowStatus is the state of a borrow record.
type BorrowStatus string

// Borrow statuses.
const (
	BorrowBorrowed BorrowStatus = "borrowed"
	BorrowReturned BorrowStatus = "returned"
)

// BorrowRecord tracks items lent out from stock.
type BorrowRecord struct {
	ID                 uuid.UUID    `json:"id"`
	OwnerID            uuid.UUID    `json:"owner_id"`
	StockItemID        uuid.UUID    `json:"stock_item_id"`
	ItemName           string       `json:"item_name"`
	BorrowerName       string       `json:"borrower_name"`
	BorrowerContact    string       `json:"borrower_contact,omitempty"`
	Quantity           int          `json:"quantity"`
	BorrowDate         time.Time    `json:"borrow_date"`
	ExpectedReturnDate *time.Time   `json:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time   `json:"actual_return_date,omitempty"`
	Status             BorrowStatus `json:"status"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// IsOverdue reports whether the record is still out past its expected
// return date.
func (b *BorrowRecord) IsOverdue(now time.Time) bool {
	return b.Status == BorrowBorrowed && b.ExpectedReturnDate != nil && b.ExpectedReturnDate.Before(now)
}

// BorrowInput is a request to lend items from a stock item.
type BorrowInput struct {
	StockItemID        uuid.UUID  `json:"stock_item_id" validate:"required"`
	BorrowerName       string     `json:"borrower_name" validate:"required,max=100"`
	BorrowerContact    string     `json:"borrower_contact" validate:"max=100"`
	Quantity           int        `json:"quantity" validate:"gt=0,max=99999"`
	BorrowDate         time.Time  `json:"borrow_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"`
	Notes              string     `json:"notes" validate:"max=500"`
}

// Normalize trims text fields and defaults the borrow date to now.
func (in *BorrowInput) Normalize(now time.Time) {
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	in.BorrowerContact = strings.TrimSpace(in.BorrowerContact)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.BorrowDate.IsZero() {
		in.BorrowDate = now
	}
}

// BorrowFilter narrows a borrow listing.
type BorrowFilter struct {
	Status      BorrowStatus
	Search      string
	OverdueOnly bool
}
