package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
)

// StockTakeStatus is the state of a stock-take session.
type StockTakeStatus string

// Stock-take statuses.
const (
	StockTakeActive    StockTakeStatus = "active"
	StockTakeSubmitted StockTakeStatus = "submitted"
	StockTakeDiscarded StockTakeStatus = "discarded"
)

// StockTake is a resumable physical recount over a snapshot of all stock
// items taken when the session started.
type StockTake struct {
	ID         uuid.UUID       `json:"id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	Status     StockTakeStatus `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Lines      []StockTakeLine `json:"lines"`
}

// StockTakeLine is one snapshotted stock item in a stock-take.
type StockTakeLine struct {
	StockItemID      uuid.UUID `json:"stock_item_id"`
	ItemName         string    `json:"item_name"`
	SnapshotQuantity int       `json:"snapshot_quantity"`
	SnapshotTotal    int       `json:"snapshot_total"`
	CountedQuantity  *int      `json:"counted_quantity,omitempty"`
	IsChecked        bool      `json:"is_checked"`
}

// Difference returns counted minus snapshot quantity, or nil while unchecked.
func (l *StockTakeLine) Difference() *int {
	if !l.IsChecked || l.CountedQuantity == nil {
		return nil
	}
	d := *l.CountedQuantity - l.SnapshotQuantity
	return &d
}

// RecordCount marks the line as checked with the given count.
func (l *StockTakeLine) RecordCount(counted int) error {
	if counted < 0 {
		return apperr.Validation("counted_quantity", "must be 0 or more")
	}
	l.CountedQuantity = &counted
	l.IsChecked = true
	return nil
}

// Changes returns a report line for every checked line whose count differs
// from the snapshot, in session order.
func (st *StockTake) Changes() []ReportLine {
	var out []ReportLine
	for i := range st.Lines {
		d := st.Lines[i].Difference()
		if d == nil || *d == 0 {
			continue
		}
		out = append(out, ReportLine{
			StockItemID: st.Lines[i].StockItemID,
			ItemName:    st.Lines[i].ItemName,
			PreviousQty: st.Lines[i].SnapshotQuantity,
			CountedQty:  *st.Lines[i].CountedQuantity,
			Difference:  *d,
		})
	}
	return out
}

// Progress returns how many lines are checked out of the total.
func (st *StockTake) Progress() (checked, total int) {
	for _, l := range st.Lines {
		if l.IsChecked {
			checked++
		}
	}
	return checked, len(st.Lines)
}

// ReportLine is one changed item in a stock-take report.
type ReportLine struct {
	StockItemID uuid.UUID `json:"stock_item_id"`
	ItemName    string    `json:"item_name"`
	PreviousQty int       `json:"previous_qty"`
	CountedQty  int       `json:"counted_qty"`
	Difference  int       `json:"difference"`
}

// TransactionType returns the ledger direction that records this change.
func (r ReportLine) TransactionType() TransactionType {
	if r.Difference > 0 {
		return TransactionIn
	}
	return TransactionOut
}

// Magnitude returns the absolute difference.
func (r ReportLine) Magnitude() int {
	if r.Difference < 0 {
		return -r.Difference
	}
	return r.Difference
}

// StockTakeReport records the outcome of a submitted stock-take.
type StockTakeReport struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	StockTakeID uuid.UUID    `json:"stock_take_id"`
	Lines       []ReportLine `json:"lines"`
	ArchiveKey  string       `json:"archive_key,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
