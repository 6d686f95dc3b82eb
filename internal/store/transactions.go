package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

const transactionColumns = `id, owner_id, stock_item_id, item_name, type, quantity, reason, performed_by, corrects_id, date`

func scanTransaction(sc scanner) (*model.StockTransaction, error) {
	t := &model.StockTransaction{}
	err := sc.Scan(&t.ID, &t.OwnerID, &t.StockItemID, &t.ItemName, &t.Type, &t.Quantity,
		&t.Reason, &t.PerformedBy, &t.CorrectsID, &t.Date)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func insertTransaction(ctx context.Context, q queryer, t *model.StockTransaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO stock_transactions (id, owner_id, stock_item_id, item_name, type, quantity, reason, performed_by, corrects_id, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.StockItemID, t.ItemName, t.Type, t.Quantity, t.Reason, t.PerformedBy, t.CorrectsID, t.Date,
	)
	if isUniqueViolation(err) {
		return apperr.New(apperr.CodeConflict, "transaction has already been corrected")
	}
	if err != nil {
		return fmt.Errorf("recording stock transaction: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.StockTransaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM stock_transactions WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting stock transaction: %w", noRows(err, "transaction"))
	}
	return t, nil
}

// GetTransaction returns a ledger entry by ID.
func GetTransaction(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.StockTransaction, error) {
	return getTransaction(ctx, db, ownerID, id)
}

// ListTransactions returns ledger entries, newest first.
func ListTransactions(ctx context.Context, db *sql.DB, ownerID uuid.UUID, f model.TransactionFilter) ([]model.StockTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM stock_transactions WHERE owner_id = ?`
	args := []any{ownerID}

	if f.StockItemID != uuid.Nil {
		query += ` AND stock_item_id = ?`
		args = append(args, f.StockItemID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND date < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY date DESC, rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stock transactions: %w", err)
	}
	defer rows.Close()

	var out []model.StockTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CorrectTransaction reverses a ledger entry by appending an offsetting entry
// of the opposite type and undoing its effect on the stock item. The original
// entry is never modified. An entry can be corrected once, and corrections
// cannot themselves be corrected.
func CorrectTransaction(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, reason, performedBy string) (*model.StockTransaction, error) {
	if performedBy == "" {
		return nil, apperr.Validation("performed_by", "is required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	orig, err := getTransaction(ctx, tx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if orig.CorrectsID != nil {
		return nil, apperr.New(apperr.CodeInvalidTransition, "a correction cannot be corrected")
	}

	s, err := getStock(ctx, tx, ownerID, orig.StockItemID)
	if err != nil {
		return nil, err
	}
	if err := s.Reverse(orig.Type, orig.Quantity); err != nil {
		return nil, err
	}
	if err := saveQuantities(ctx, tx, s); err != nil {
		return nil, err
	}

	msg := "Correction of " + orig.ID.String()
	if reason != "" {
		msg += ": " + reason
	}
	t := &model.StockTransaction{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		StockItemID: s.ID,
		ItemName:    s.ItemName,
		Type:        orig.Type.Opposite(),
		Quantity:    orig.Quantity,
		Reason:      msg,
		PerformedBy: performedBy,
		CorrectsID:  &orig.ID,
		Date:        now(),
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing correction: %w", err)
	}
	return t, nil
}
