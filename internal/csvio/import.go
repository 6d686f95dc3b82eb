package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schoolstock/stockroom/internal/model"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

var purchaseAliases = map[string]string{
	"itemname":   "name",
	"name":       "name",
	"wheretobuy": "where",
	"supplier":   "where",
	"price":      "price",
	"quantity":   "quantity",
	"qty":        "quantity",
	"link":       "link",
	"url":        "link",
	"status":     "status",
	"coursetag":  "course",
	"course":     "course",
}

var stockAliases = map[string]string{
	"itemname":          "name",
	"name":              "name",
	"totalquantity":     "total",
	"total":             "total",
	"availablequantity": "available",
	"available":         "available",
	"location":          "location",
	"coursetag":         "course",
	"course":            "course",
	"purchaseprice":     "price",
	"price":             "price",
}

var headerSeparators = strings.NewReplacer("_", "", "-", "")

// headerKey folds a header cell so "Item Name", "item_name" and "itemName"
// all match the same alias.
func headerKey(h string) string {
	return strings.ToLower(headerSeparators.Replace(strings.Join(strings.Fields(h), "")))
}

// readRows parses CSV text into maps keyed by canonical field name. Rows
// shorter than the header are counted as skipped.
func readRows(r io.Reader, aliases map[string]string) (rows []map[string]string, skipped int, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading csv: %w", err)
	}
	data = bytes.TrimPrefix(data, bom)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading csv header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = aliases[headerKey(h)]
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading csv: %w", err)
		}
		if len(rec) < len(header) {
			skipped++
			continue
		}
		row := make(map[string]string, len(fields))
		for i, f := range fields {
			if f != "" {
				row[f] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParsePurchases parses purchase rows. Rows without a name, supplier,
// positive price or positive quantity are skipped.
func ParsePurchases(r io.Reader) ([]model.PurchaseInput, int, error) {
	rows, skipped, err := readRows(r, purchaseAliases)
	if err != nil {
		return nil, 0, err
	}

	var out []model.PurchaseInput
	for _, row := range rows {
		in := model.PurchaseInput{
			ItemName:   row["name"],
			WhereToBuy: row["where"],
			Price:      parseDecimal(row["price"]),
			Quantity:   parseInt(row["quantity"]),
			Link:       row["link"],
			Status:     model.PurchaseStatus(row["status"]),
			CourseTag:  row["course"],
		}
		if in.ItemName == "" || in.WhereToBuy == "" || !in.Price.IsPositive() || in.Quantity <= 0 {
			skipped++
			continue
		}
		in.Normalize()
		out = append(out, in)
	}
	return out, skipped, nil
}

// ParseStock parses stock item rows. Rows without a name, positive total or
// positive available quantity are skipped.
func ParseStock(r io.Reader) ([]model.StockInput, int, error) {
	rows, skipped, err := readRows(r, stockAliases)
	if err != nil {
		return nil, 0, err
	}

	var out []model.StockInput
	for _, row := range rows {
		available := parseInt(row["available"])
		in := model.StockInput{
			ItemName:          row["name"],
			TotalQuantity:     parseInt(row["total"]),
			AvailableQuantity: &available,
			Location:          row["location"],
			CourseTag:         row["course"],
			PurchasePrice:     parseDecimal(row["price"]),
		}
		if in.ItemName == "" || in.TotalQuantity <= 0 || available <= 0 {
			skipped++
			continue
		}
		in.Normalize()
		out = append(out, in)
	}
	return out, skipped, nil
}

// Result summarizes an import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
