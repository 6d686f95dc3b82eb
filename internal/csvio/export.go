// Package csvio exports records as CSV and parses CSV imports.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/schoolstock/stockroom/internal/model"
)

// Column is one exported field of T.
type Column[T any] struct {
	Header string
	Value  func(T) string
}

// Write writes a header line followed by one line per row. Values that
// contain commas, quotes or newlines are quoted.
func Write[T any](w io.Writer, cols []Column[T], rows []T) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	record := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			record[i] = c.Value(row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// PurchaseColumns are the exported purchase fields.
var PurchaseColumns = []Column[model.PurchaseItem]{
	{"Item Name", func(p model.PurchaseItem) string { return p.ItemName }},
	{"Where To Buy", func(p model.PurchaseItem) string { return p.WhereToBuy }},
	{"Price", func(p model.PurchaseItem) string { return p.Price.StringFixed(2) }},
	{"Quantity", func(p model.PurchaseItem) string { return strconv.Itoa(p.Quantity) }},
	{"Link", func(p model.PurchaseItem) string { return p.Link }},
	{"Status", func(p model.PurchaseItem) string { return string(p.Status) }},
	{"Course Tag", func(p model.PurchaseItem) string { return p.CourseTag }},
	{"Created At", func(p model.PurchaseItem) string { return formatTime(p.CreatedAt) }},
}

// StockColumns are the exported stock item fields.
var StockColumns = []Column[model.StockItem]{
	{"Item Name", func(s model.StockItem) string { return s.ItemName }},
	{"Total Quantity", func(s model.StockItem) string { return strconv.Itoa(s.TotalQuantity) }},
	{"Available Quantity", func(s model.StockItem) string { return strconv.Itoa(s.AvailableQuantity) }},
	{"Location", func(s model.StockItem) string { return s.Location }},
	{"Course Tag", func(s model.StockItem) string { return s.CourseTag }},
	{"Purchase Price", func(s model.StockItem) string { return s.PurchasePrice.StringFixed(2) }},
	{"Updated At", func(s model.StockItem) string { return formatTime(s.UpdatedAt) }},
}

// TransactionColumns are the exported ledger fields.
var TransactionColumns = []Column[model.StockTransaction]{
	{"Date", func(t model.StockTransaction) string { return formatTime(t.Date) }},
	{"Item Name", func(t model.StockTransaction) string { return t.ItemName }},
	{"Type", func(t model.StockTransaction) string { return string(t.Type) }},
	{"Quantity", func(t model.StockTransaction) string { return strconv.Itoa(t.Quantity) }},
	{"Reason", func(t model.StockTransaction) string { return t.Reason }},
	{"Performed By", func(t model.StockTransaction) string { return t.PerformedBy }},
}

// BorrowColumns are the exported borrow record fields.
var BorrowColumns = []Column[model.BorrowRecord]{
	{"Item Name", func(b model.BorrowRecord) string { return b.ItemName }},
	{"Borrower", func(b model.BorrowRecord) string { return b.BorrowerName }},
	{"Contact", func(b model.BorrowRecord) string { return b.BorrowerContact }},
	{"Quantity", func(b model.BorrowRecord) string { return strconv.Itoa(b.Quantity) }},
	{"Borrow Date", func(b model.BorrowRecord) string { return formatTime(b.BorrowDate) }},
	{"Expected Return", func(b model.BorrowRecord) string { return formatTimePtr(b.ExpectedReturnDate) }},
	{"Actual Return", func(b model.BorrowRecord) string { return formatTimePtr(b.ActualReturnDate) }},
	{"Status", func(b model.BorrowRecord) string { return string(b.Status) }},
	{"Notes", func(b model.BorrowRecord) string { return b.Notes }},
}
