package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

const stockColumns = `id, owner_id, item_name, total_quantity, available_quantity, location, course_tag,
	purchase_price, is_present, last_checked, purchase_item_id, image_mime, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStock(sc scanner) (*model.StockItem, error) {
	s := &model.StockItem{}
	var courseTag, imageMime sql.NullString
	err := sc.Scan(&s.ID, &s.OwnerID, &s.ItemName, &s.TotalQuantity, &s.AvailableQuantity, &s.Location, &courseTag,
		&s.PurchasePrice, &s.IsPresent, &s.LastChecked, &s.PurchaseItemID, &imageMime, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.CourseTag = courseTag.String
	s.ImageMime = imageMime.String
	return s, nil
}

func getStock(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.StockItem, error) {
	s, err := scanStock(q.QueryRowContext(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting stock item: %w", noRows(err, "stock item"))
	}
	return s, nil
}

// GetStockItem returns a stock item by ID.
func GetStockItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.StockItem, error) {
	return getStock(ctx, db, ownerID, id)
}

// ListStockItems returns stock items ordered by name.
func ListStockItems(ctx context.Context, db *sql.DB, ownerID uuid.UUID, f model.StockFilter) ([]model.StockItem, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_items WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{ownerID}

	if f.CourseTag != "" {
		query += ` AND course_tag = ?`
		args = append(args, f.CourseTag)
	}
	if f.Location != "" {
		query += ` AND location = ?`
		args = append(args, f.Location)
	}
	if f.Search != "" {
		query += ` AND (lower(item_name) LIKE ? ESCAPE '\' OR lower(course_tag) LIKE ? ESCAPE '\')`
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	query += ` ORDER BY item_name COLLATE NOCASE, created_at`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stock items: %w", err)
	}
	defer rows.Close()

	var items []model.StockItem
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock item: %w", err)
		}
		if f.Level != "" && s.Level(f.LowThreshold) != f.Level {
			continue
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

// CreateStockItem adds a stock item by hand. Both quantities start at the
// given total.
func CreateStockItem(ctx context.Context, db *sql.DB, ownerID uuid.UUID, in model.StockInput) (*model.StockItem, error) {
	in.Normalize()
	if in.Location == "" {
		in.Location = model.DefaultLocation
	}
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	available := in.TotalQuantity
	if in.AvailableQuantity != nil {
		if *in.AvailableQuantity > in.TotalQuantity {
			return nil, apperr.Validation("available_quantity", "must not exceed total quantity")
		}
		available = *in.AvailableQuantity
	}

	s := &model.StockItem{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		ItemName:          in.ItemName,
		TotalQuantity:     in.TotalQuantity,
		AvailableQuantity: available,
		Location:          in.Location,
		CourseTag:         in.CourseTag,
		PurchasePrice:     in.PurchasePrice,
	}
	if err := insertStock(ctx, db, s); err != nil {
		return nil, err
	}
	return getStock(ctx, db, ownerID, s.ID)
}

func insertStock(ctx context.Context, q queryer, s *model.StockItem) error {
	ts := now()
	_, err := q.ExecContext(ctx,
		`INSERT INTO stock_items (id, owner_id, item_name, total_quantity, available_quantity, location, course_tag,
		                          purchase_price, purchase_item_id, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.ID, s.OwnerID, s.ItemName, s.TotalQuantity, s.AvailableQuantity, s.Location, nullString(s.CourseTag),
		s.PurchasePrice, s.PurchaseItemID, ts, ts,
	)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeConflict, "stock already created for this purchase")
	}
	if err != nil {
		return fmt.Errorf("creating stock item: %w", err)
	}
	s.Version = 1
	s.CreatedAt, s.UpdatedAt = ts, ts
	return nil
}

// UpdateStockItem updates the descriptive fields of a stock item. A nonzero
// in.Version must match the stored version.
func UpdateStockItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, in model.StockUpdate) (*model.StockItem, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	query := `UPDATE stock_items SET item_name = ?, location = ?, course_tag = ?, purchase_price = ?,
	                 version = version + 1, updated_at = ?
	          WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`
	args := []any{in.ItemName, in.Location, nullString(in.CourseTag), in.PurchasePrice, now(), id, ownerID}
	if in.Version > 0 {
		query += ` AND version = ?`
		args = append(args, in.Version)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating stock item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getStock(ctx, db, ownerID, id); err != nil {
			return nil, err
		}
		return nil, apperr.ErrConflict
	}
	return getStock(ctx, db, ownerID, id)
}

// MarkStockPresent records whether a stock item was physically found.
func MarkStockPresent(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, present bool) error {
	return execOne(ctx, db, "stock item",
		`UPDATE stock_items SET is_present = ?, last_checked = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		present, now(), now(), id, ownerID,
	)
}

// DeleteStockItem soft-deletes a stock item. Its ledger entries and borrow
// history are kept. Items with borrows still out cannot be deleted.
func DeleteStockItem(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getStock(ctx, tx, ownerID, id); err != nil {
		return err
	}

	var outstanding int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE stock_item_id = ? AND status = 'borrowed'`, id,
	).Scan(&outstanding)
	if err != nil {
		return fmt.Errorf("counting outstanding borrows: %w", err)
	}
	if outstanding > 0 {
		return apperr.Newf(apperr.CodeConflict, "stock item has %d outstanding borrows", outstanding)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchase_items SET stock_item_id = NULL WHERE stock_item_id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("unlinking purchase: %w", err)
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE stock_items SET deleted_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`, ts, ts, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting stock item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stock item delete: %w", err)
	}
	return nil
}

// saveQuantities writes the quantities of s back with a compare-and-swap on
// its version and bumps the version.
func saveQuantities(ctx context.Context, q queryer, s *model.StockItem) error {
	ts := now()
	res, err := q.ExecContext(ctx,
		`UPDATE stock_items SET total_quantity = ?, available_quantity = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND version = ? AND deleted_at IS NULL`,
		s.TotalQuantity, s.AvailableQuantity, ts, s.ID, s.OwnerID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("updating stock quantities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating stock quantities: %w", err)
	}
	if n == 0 {
		return apperr.Newf(apperr.CodeConflict, "stock item %q was modified concurrently", s.ItemName)
	}
	s.Version++
	s.UpdatedAt = ts
	return nil
}

// ApplyTransaction moves stock in or out and appends the ledger entry, both in
// one transaction. Stock-in raises both quantities; stock-out lowers only the
// available quantity. Every call is a new physical movement.
func ApplyTransaction(ctx context.Context, db *sql.DB, ownerID, stockItemID uuid.UUID, in model.TransactionInput) (*model.StockTransaction, error) {
	in.Normalize()
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getStock(ctx, tx, ownerID, stockItemID)
	if err != nil {
		return nil, err
	}
	if in.Version > 0 && in.Version != s.Version {
		return nil, apperr.Newf(apperr.CodeConflict,
			"stock item %q changed since version %d", s.ItemName, in.Version)
	}

	if err := s.ApplyMovement(in.Type, in.Quantity); err != nil {
		return nil, err
	}
	if err := saveQuantities(ctx, tx, s); err != nil {
		return nil, err
	}

	t := &model.StockTransaction{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		StockItemID: s.ID,
		ItemName:    s.ItemName,
		Type:        in.Type,
		Quantity:    in.Quantity,
		Reason:      in.Reason,
		PerformedBy: in.PerformedBy,
		Date:        now(),
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock transaction: %w", err)
	}
	return t, nil
}

// SetStockImage sets a stock item's photo.
func SetStockImage(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, image []byte, mime string) error {
	return execOne(ctx, db, "stock item",
		`UPDATE stock_items SET image = ?, image_mime = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		image, mime, now(), id, ownerID,
	)
}

// GetStockImage returns a stock item's photo and its MIME type. A stock item
// without a photo returns nil data.
func GetStockImage(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM stock_items WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`, id, ownerID,
	).Scan(&image, &mime)
	if err != nil {
		return nil, "", fmt.Errorf("getting stock image: %w", noRows(err, "stock item"))
	}
	return image, mime.String, nil
}
