package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolstock/stockroom/internal/model"
)

// Dashboard summarizes a user's stockroom.
type Dashboard struct {
	TotalPurchases  int                  `json:"total_purchases"`
	PendingDelivery int                  `json:"pending_delivery"`
	ArrivedItems    int                  `json:"arrived_items"`
	TotalStockItems int                  `json:"total_stock_items"`
	LowStockCount   int                  `json:"low_stock_count"`
	OutOfStockCount int                  `json:"out_of_stock_count"`
	ActiveBorrows   int                  `json:"active_borrows"`
	OverdueBorrows  int                  `json:"overdue_borrows"`
	InventoryValue  decimal.Decimal      `json:"inventory_value"`
	RecentPurchases []model.PurchaseItem `json:"recent_purchases"`
	LowStockItems   []model.StockItem    `json:"low_stock_items"`
}

// recentPurchaseLimit is how many purchases the dashboard lists.
const recentPurchaseLimit = 5

// GetDashboard computes the dashboard. Items with fewer than lowThreshold
// available (but not zero) count as low stock.
func GetDashboard(ctx context.Context, db *sql.DB, ownerID uuid.UUID, lowThreshold int) (*Dashboard, error) {
	d := &Dashboard{
		InventoryValue:  decimal.Zero,
		RecentPurchases: []model.PurchaseItem{},
		LowStockItems:   []model.StockItem{},
	}

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'waiting_delivery'), 0),
		        COALESCE(SUM(status = 'arrived'), 0)
		 FROM purchase_items WHERE owner_id = ?`, ownerID,
	).Scan(&d.TotalPurchases, &d.PendingDelivery, &d.ArrivedItems)
	if err != nil {
		return nil, fmt.Errorf("counting purchases: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(status = 'borrowed'), 0),
		        COALESCE(SUM(status = 'borrowed' AND expected_return_date IS NOT NULL AND expected_return_date < ?), 0)
		 FROM borrow_records WHERE owner_id = ?`, now(), ownerID,
	).Scan(&d.ActiveBorrows, &d.OverdueBorrows)
	if err != nil {
		return nil, fmt.Errorf("counting borrows: %w", err)
	}

	// Prices are decimal text, so valuation and levels are computed here.
	stock, err := ListStockItems(ctx, db, ownerID, model.StockFilter{})
	if err != nil {
		return nil, err
	}
	d.TotalStockItems = len(stock)
	for i := range stock {
		s := &stock[i]
		d.InventoryValue = d.InventoryValue.Add(s.Value())
		switch s.Level(lowThreshold) {
		case model.LevelOutOfStock:
			d.OutOfStockCount++
		case model.LevelLowStock:
			d.LowStockCount++
			d.LowStockItems = append(d.LowStockItems, *s)
		}
	}
	sortByAvailable(d.LowStockItems)

	rows, err := db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchase_items WHERE owner_id = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`, ownerID, recentPurchaseLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent purchases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase item: %w", err)
		}
		d.RecentPurchases = append(d.RecentPurchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing recent purchases: %w", err)
	}

	return d, nil
}

func sortByAvailable(items []model.StockItem) {
	slices.SortStableFunc(items, func(a, b model.StockItem) int {
		return a.AvailableQuantity - b.AvailableQuantity
	})
}
