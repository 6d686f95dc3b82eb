package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

const borrowColumns = `id, owner_id, stock_item_id, item_name, borrower_name, borrower_contact, quantity, borrow_date,
	expected_return_date, actual_return_date, status, notes, created_at, updated_at`

func scanBorrow(sc scanner) (*model.BorrowRecord, error) {
	b := &model.BorrowRecord{}
	var contact, notes sql.NullString
	err := sc.Scan(&b.ID, &b.OwnerID, &b.StockItemID, &b.ItemName, &b.BorrowerName, &contact, &b.Quantity, &b.BorrowDate,
		&b.ExpectedReturnDate, &b.ActualReturnDate, &b.Status, &notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.BorrowerContact = contact.String
	b.Notes = notes.String
	return b, nil
}

func getBorrow(ctx context.Context, q queryer, ownerID, id uuid.UUID) (*model.BorrowRecord, error) {
	b, err := scanBorrow(q.QueryRowContext(ctx,
		`SELECT `+borrowColumns+` FROM borrow_records WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting borrow record: %w", noRows(err, "borrow record"))
	}
	return b, nil
}

// GetBorrow returns a borrow record by ID.
func GetBorrow(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.BorrowRecord, error) {
	return getBorrow(ctx, db, ownerID, id)
}

// ListBorrows returns borrow records, most recent borrow first.
func ListBorrows(ctx context.Context, db *sql.DB, ownerID uuid.UUID, f model.BorrowFilter) ([]model.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrow_records WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (lower(item_name) LIKE ? ESCAPE '\' OR lower(borrower_name) LIKE ? ESCAPE '\')`
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	if f.OverdueOnly {
		query += ` AND status = 'borrowed' AND expected_return_date IS NOT NULL AND expected_return_date < ?`
		args = append(args, now())
	}
	query += ` ORDER BY borrow_date DESC, rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrow records: %w", err)
	}
	defer rows.Close()

	var out []model.BorrowRecord
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow record: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Borrow lends items from a stock item. The available quantity drops by the
// borrowed quantity and a borrowed record is created, in one transaction.
func Borrow(ctx context.Context, db *sql.DB, ownerID uuid.UUID, in model.BorrowInput) (*model.BorrowRecord, error) {
	in.Normalize(now())
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := getStock(ctx, tx, ownerID, in.StockItemID)
	if err != nil {
		return nil, err
	}
	if err := s.Lend(in.Quantity); err != nil {
		return nil, err
	}
	if err := saveQuantities(ctx, tx, s); err != nil {
		return nil, err
	}

	ts := now()
	b := &model.BorrowRecord{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		StockItemID:        s.ID,
		ItemName:           s.ItemName,
		BorrowerName:       in.BorrowerName,
		BorrowerContact:    in.BorrowerContact,
		Quantity:           in.Quantity,
		BorrowDate:         in.BorrowDate.UTC(),
		ExpectedReturnDate: utcPtr(in.ExpectedReturnDate),
		Status:             model.BorrowBorrowed,
		Notes:              in.Notes,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO borrow_records (id, owner_id, stock_item_id, item_name, borrower_name, borrower_contact, quantity,
		                             borrow_date, expected_return_date, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.StockItemID, b.ItemName, b.BorrowerName, nullString(b.BorrowerContact), b.Quantity,
		b.BorrowDate, b.ExpectedReturnDate, b.Status, nullString(b.Notes), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating borrow record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrow: %w", err)
	}
	return b, nil
}

// ReturnBorrow marks a borrow record returned and puts its quantity back on
// the shelf. A record can only be returned once.
func ReturnBorrow(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.BorrowRecord, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := getBorrow(ctx, tx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BorrowBorrowed {
		return nil, apperr.Newf(apperr.CodeAlreadyReturned, "%q borrowed by %s was already returned", b.ItemName, b.BorrowerName)
	}

	ts := now()
	res, err := tx.ExecContext(ctx,
		`UPDATE borrow_records SET status = 'returned', actual_return_date = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND status = 'borrowed'`,
		ts, ts, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("returning borrow record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrAlreadyReturned
	}

	s, err := getStock(ctx, tx, ownerID, b.StockItemID)
	if err != nil {
		return nil, err
	}
	if err := s.Restore(b.Quantity); err != nil {
		return nil, err
	}
	if err := saveQuantities(ctx, tx, s); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	b.Status = model.BorrowReturned
	b.ActualReturnDate = &ts
	b.UpdatedAt = ts
	return b, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
