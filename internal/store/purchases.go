package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

const purchaseColumns = `id, owner_id, item_name, where_to_buy, price, quantity, link, status, course_tag,
	is_present, last_checked, stock_item_id, created_at, updated_at`

func scanPurchase(sc scanner) (*model.PurchaseItem, error) {
	p := &model.PurchaseItem{}
	var link, courseTag sql.NullString
	err := sc.Scan(&p.ID, &p.OwnerID, &p.ItemName, &p.WhereToBuy, &p.Price, &p.Quantity, &link, &p.Status, &courseTag,
		&p.IsPresent, &p.LastChecked, &p.StockItemID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Link = link.String
	p.CourseTag = courseTag.String
	return p, nil
}

func getPurchase(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.PurchaseItem, error) {
	p, err := scanPurchase(q.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchase_items WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting purchase item: %w", noRows(err, "purchase item"))
	}
	return p, nil
}

// GetPurchase returns a purchase item by ID.
func GetPurchase(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.PurchaseItem, error) {
	return getPurchase(ctx, db, ownerID, id)
}

// ListPurchases returns purchase items, newest first.
func ListPurchases(ctx context.Context, db *sql.DB, ownerID uuid.UUID, f model.PurchaseFilter) ([]model.PurchaseItem, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_items WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.CourseTag != "" {
		query += ` AND course_tag = ?`
		args = append(args, f.CourseTag)
	}
	if f.Search != "" {
		query += ` AND (lower(item_name) LIKE ? ESCAPE '\' OR lower(where_to_buy) LIKE ? ESCAPE '\' OR lower(course_tag) LIKE ? ESCAPE '\')`
		p := likePattern(f.Search)
		args = append(args, p, p, p)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing purchase items: %w", err)
	}
	defer rows.Close()

	var items []model.PurchaseItem
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase item: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// CreatePurchase creates a purchase item. A purchase with the same name
// (ignoring case) is reported as DUPLICATE unless confirmDuplicate is set.
// Creating a purchase directly as arrived or stored also creates its stock.
func CreatePurchase(ctx context.Context, db *sql.DB, ownerID uuid.UUID, in model.PurchaseInput, confirmDuplicate bool) (*model.PurchaseItem, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if !confirmDuplicate {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM purchase_items WHERE owner_id = ? AND lower(item_name) = ?`,
			ownerID, strings.ToLower(in.ItemName),
		).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("checking duplicate purchase: %w", err)
		}
		if existing > 0 {
			return nil, apperr.Newf(apperr.CodeDuplicate, "a purchase named %q already exists", in.ItemName)
		}
	}

	p := &model.PurchaseItem{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		ItemName:   in.ItemName,
		WhereToBuy: in.WhereToBuy,
		Price:      in.Price,
		Quantity:   in.Quantity,
		Link:       in.Link,
		Status:     in.Status,
		CourseTag:  in.CourseTag,
	}
	if err := insertPurchase(ctx, tx, p); err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		if _, err := stockFromPurchase(ctx, tx, p, ""); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purchase item: %w", err)
	}
	return getPurchase(ctx, db, ownerID, p.ID)
}

func insertPurchase(ctx context.Context, q queryer, p *model.PurchaseItem) error {
	ts := now()
	_, err := q.ExecContext(ctx,
		`INSERT INTO purchase_items (id, owner_id, item_name, where_to_buy, price, quantity, link, status, course_tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.ItemName, p.WhereToBuy, p.Price, p.Quantity, nullString(p.Link), p.Status, nullString(p.CourseTag), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("creating purchase item: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = ts, ts
	return nil
}

// UpdatePurchase updates the editable fields of a purchase item. The status
// only changes through SetPurchaseStatus, and purchases that have arrived
// are locked.
func UpdatePurchase(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, in model.PurchaseInput) (*model.PurchaseItem, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getPurchase(ctx, tx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if cur.Status.IsTerminal() {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "purchase %q is %s and can no longer be edited", cur.ItemName, cur.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchase_items SET item_name = ?, where_to_buy = ?, price = ?, quantity = ?, link = ?, course_tag = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		in.ItemName, in.WhereToBuy, in.Price, in.Quantity, nullString(in.Link), nullString(in.CourseTag), now(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating purchase item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purchase item: %w", err)
	}
	return getPurchase(ctx, db, ownerID, id)
}

// DeletePurchase deletes a purchase item. Stock it created is kept.
func DeletePurchase(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM purchase_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting purchase item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("purchase item")
	}
	return nil
}

// MarkPurchasePresent records whether the purchased goods were found.
func MarkPurchasePresent(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, present bool) error {
	return execOne(ctx, db, "purchase item",
		`UPDATE purchase_items SET is_present = ?, last_checked = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		present, now(), now(), id, ownerID,
	)
}

// SetPurchaseStatus moves a purchase to a new status. Crossing into arrived
// or stored from any earlier status creates exactly one stock item holding
// the purchased quantity at location (or the default location). The status
// change and the stock creation commit together or not at all.
func SetPurchaseStatus(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, status model.PurchaseStatus, location string) (*model.PurchaseItem, *model.StockItem, error) {
	if !status.IsValid() {
		return nil, nil, apperr.Validation("status", "must be one of: considering not_consider waiting_delivery arrived stored")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := getPurchase(ctx, tx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if !p.Status.CanTransitionTo(status) {
		return nil, nil, apperr.Newf(apperr.CodeInvalidTransition, "cannot move purchase from %s to %s", p.Status, status)
	}
	prev := p.Status

	_, err = tx.ExecContext(ctx,
		`UPDATE purchase_items SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		status, now(), id, ownerID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating purchase status: %w", err)
	}

	var stock *model.StockItem
	if model.SpawnsStock(prev, status) {
		stock, err = stockFromPurchase(ctx, tx, p, location)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing purchase status: %w", err)
	}

	if stock != nil {
		slog.Debug("stock created from purchase", "purchase_id", id, "stock_item_id", stock.ID, "quantity", stock.TotalQuantity)
	}

	p, err = getPurchase(ctx, db, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	return p, stock, nil
}

// stockFromPurchase creates the stock item for an arrived purchase and links
// the two.
func stockFromPurchase(ctx context.Context, tx *sql.Tx, p *model.PurchaseItem, location string) (*model.StockItem, error) {
	if location = strings.TrimSpace(location); location == "" {
		location = model.DefaultLocation
	}

	purchaseID := p.ID
	s := &model.StockItem{
		ID:                uuid.New(),
		OwnerID:           p.OwnerID,
		ItemName:          p.ItemName,
		TotalQuantity:     p.Quantity,
		AvailableQuantity: p.Quantity,
		Location:          location,
		CourseTag:         p.CourseTag,
		PurchasePrice:     p.Price,
		PurchaseItemID:    &purchaseID,
	}
	if err := insertStock(ctx, tx, s); err != nil {
		return nil, err
	}

	_, err := tx.ExecContext(ctx,
		`UPDATE purchase_items SET stock_item_id = ? WHERE id = ?`, s.ID, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("linking stock to purchase: %w", err)
	}
	return s, nil
}

// Repurchase adds a new considering purchase copied from an earlier one. A
// quantity of zero reuses the original quantity.
func Repurchase(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, quantity int) (*model.PurchaseItem, error) {
	orig, err := getPurchase(ctx, db, ownerID, id)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		quantity = orig.Quantity
	}

	return CreatePurchase(ctx, db, ownerID, model.PurchaseInput{
		ItemName:   orig.ItemName,
		WhereToBuy: orig.WhereToBuy,
		Price:      orig.Price,
		Quantity:   quantity,
		Link:       orig.Link,
		Status:     model.PurchaseConsidering,
		CourseTag:  orig.CourseTag,
	}, true)
}
