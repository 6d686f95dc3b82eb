package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/model"
)

// SearchResults holds matches across purchases and stock.
type SearchResults struct {
	Purchases  []model.PurchaseItem `json:"purchases"`
	StockItems []model.StockItem    `json:"stock_items"`
}

// Search finds purchases and stock items whose name or course tag contains
// term, ignoring case.
func Search(ctx context.Context, db *sql.DB, ownerID uuid.UUID, term string) (*SearchResults, error) {
	res := &SearchResults{Purchases: []model.PurchaseItem{}, StockItems: []model.StockItem{}}
	if term == "" {
		return res, nil
	}

	p := likePattern(term)
	rows, err := db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchase_items
		 WHERE owner_id = ? AND (lower(item_name) LIKE ? ESCAPE '\' OR lower(course_tag) LIKE ? ESCAPE '\')
		 ORDER BY item_name COLLATE NOCASE`, ownerID, p, p,
	)
	if err != nil {
		return nil, fmt.Errorf("searching purchases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase item: %w", err)
		}
		res.Purchases = append(res.Purchases, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching purchases: %w", err)
	}

	stock, err := ListStockItems(ctx, db, ownerID, model.StockFilter{Search: term})
	if err != nil {
		return nil, err
	}
	if stock != nil {
		res.StockItems = stock
	}
	return res, nil
}
