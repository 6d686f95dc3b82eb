package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

// StartStockTake opens a stock-take session over a snapshot of every stock
// item. Only one session per user can be active.
func StartStockTake(ctx context.Context, db *sql.DB, ownerID uuid.UUID) (*model.StockTake, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	st := &model.StockTake{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Status:    model.StockTakeActive,
		StartedAt: now(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_takes (id, owner_id, status, started_at) VALUES (?, ?, ?, ?)`,
		st.ID, ownerID, st.Status, st.StartedAt,
	)
	if isUniqueViolation(err) {
		return nil, apperr.New(apperr.CodeConflict, "a stock-take is already in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("creating stock-take: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_take_lines (stock_take_id, stock_item_id, item_name, snapshot_quantity, snapshot_total, position)
		 SELECT ?, id, item_name, available_quantity, total_quantity,
		        ROW_NUMBER() OVER (ORDER BY item_name COLLATE NOCASE, created_at)
		 FROM stock_items WHERE owner_id = ? AND deleted_at IS NULL`,
		st.ID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshotting stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock-take: %w", err)
	}
	return GetActiveStockTake(ctx, db, ownerID)
}

// GetActiveStockTake returns the user's active session with its lines.
func GetActiveStockTake(ctx context.Context, db *sql.DB, ownerID uuid.UUID) (*model.StockTake, error) {
	return activeStockTake(ctx, db, ownerID)
}

func activeStockTake(ctx context.Context, q queryer, ownerID uuid.UUID) (*model.StockTake, error) {
	st := &model.StockTake{}
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, status, started_at, finished_at FROM stock_takes WHERE owner_id = ? AND status = 'active'`,
		ownerID,
	).Scan(&st.ID, &st.OwnerID, &st.Status, &st.StartedAt, &st.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("getting active stock-take: %w", noRows(err, "active stock-take"))
	}

	rows, err := q.QueryContext(ctx,
		`SELECT stock_item_id, item_name, snapshot_quantity, snapshot_total, counted_quantity, is_checked
		 FROM stock_take_lines WHERE stock_take_id = ? ORDER BY position`, st.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock-take lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.StockTakeLine
		if err := rows.Scan(&l.StockItemID, &l.ItemName, &l.SnapshotQuantity, &l.SnapshotTotal, &l.CountedQuantity, &l.IsChecked); err != nil {
			return nil, fmt.Errorf("scanning stock-take line: %w", err)
		}
		st.Lines = append(st.Lines, l)
	}
	return st, rows.Err()
}

// RecordCount records a physical count for one item of the active session.
func RecordCount(ctx context.Context, db *sql.DB, ownerID, stockItemID uuid.UUID, counted int) (*model.StockTakeLine, error) {
	st, err := activeStockTake(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}

	var line *model.StockTakeLine
	for i := range st.Lines {
		if st.Lines[i].StockItemID == stockItemID {
			line = &st.Lines[i]
			break
		}
	}
	if line == nil {
		return nil, notFound("stock-take line")
	}
	if err := line.RecordCount(counted); err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE stock_take_lines SET counted_quantity = ?, is_checked = 1 WHERE stock_take_id = ? AND stock_item_id = ?`,
		counted, st.ID, stockItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("recording count: %w", err)
	}
	return line, nil
}

// SubmitStockTake applies every checked line whose count differs from the
// snapshot: the available quantity becomes the count, the total moves by the
// difference and a ledger entry is appended. Unchecked and unchanged lines
// are left alone. Everything commits in one transaction and the session is
// closed.
//
// If no line changed, or every changed item has since been deleted, nothing
// is written, the session stays active and the returned report is nil.
func SubmitStockTake(ctx context.Context, db *sql.DB, ownerID uuid.UUID) (*model.StockTakeReport, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := activeStockTake(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	changes := st.Changes()
	if len(changes) == 0 {
		return nil, nil
	}

	ts := now()
	applied := make([]model.ReportLine, 0, len(changes))
	for _, c := range changes {
		s, err := getStock(ctx, tx, ownerID, c.StockItemID)
		if apperr.Code(err) == apperr.CodeNotFound {
			slog.Warn("stock-take line skipped, stock item deleted", "stock_take_id", st.ID, "stock_item_id", c.StockItemID)
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.Recount(c.CountedQty, c.Difference); err != nil {
			return nil, err
		}
		if err := saveQuantities(ctx, tx, s); err != nil {
			return nil, err
		}

		err = insertTransaction(ctx, tx, &model.StockTransaction{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			StockItemID: s.ID,
			ItemName:    s.ItemName,
			Type:        c.TransactionType(),
			Quantity:    c.Magnitude(),
			Reason:      model.StockTakeReason,
			PerformedBy: model.StockTakePerformer,
			Date:        ts,
		})
		if err != nil {
			return nil, err
		}
		applied = append(applied, c)
	}
	if len(applied) == 0 {
		return nil, nil
	}

	report := &model.StockTakeReport{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		StockTakeID: st.ID,
		Lines:       applied,
		CreatedAt:   ts,
	}
	lines, err := json.Marshal(report.Lines)
	if err != nil {
		return nil, fmt.Errorf("encoding report lines: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO stock_take_reports (id, owner_id, stock_take_id, lines, created_at) VALUES (?, ?, ?, ?, ?)`,
		report.ID, ownerID, st.ID, string(lines), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating stock-take report: %w", err)
	}

	if err := closeStockTake(ctx, tx, st.ID, model.StockTakeSubmitted); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock-take: %w", err)
	}
	return report, nil
}

// DiscardStockTake closes the active session without applying anything.
func DiscardStockTake(ctx context.Context, db *sql.DB, ownerID uuid.UUID) error {
	st, err := activeStockTake(ctx, db, ownerID)
	if err != nil {
		return err
	}
	return closeStockTake(ctx, db, st.ID, model.StockTakeDiscarded)
}

func closeStockTake(ctx context.Context, q queryer, id uuid.UUID, status model.StockTakeStatus) error {
	return execOne(ctx, q, "active stock-take",
		`UPDATE stock_takes SET status = ?, finished_at = ? WHERE id = ? AND status = 'active'`,
		status, now(), id,
	)
}

const reportColumns = `id, owner_id, stock_take_id, lines, archive_key, created_at`

func scanReport(sc scanner) (*model.StockTakeReport, error) {
	r := &model.StockTakeReport{}
	var lines string
	var key sql.NullString
	if err := sc.Scan(&r.ID, &r.OwnerID, &r.StockTakeID, &lines, &key, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lines), &r.Lines); err != nil {
		return nil, fmt.Errorf("decoding report lines: %w", err)
	}
	r.ArchiveKey = key.String
	return r, nil
}

// GetStockTakeReport returns a stock-take report by ID.
func GetStockTakeReport(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID) (*model.StockTakeReport, error) {
	r, err := scanReport(db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM stock_take_reports WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting stock-take report: %w", noRows(err, "stock-take report"))
	}
	return r, nil
}

// ListStockTakeReports returns reports, newest first.
func ListStockTakeReports(ctx context.Context, db *sql.DB, ownerID uuid.UUID) ([]model.StockTakeReport, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM stock_take_reports WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock-take reports: %w", err)
	}
	defer rows.Close()

	var out []model.StockTakeReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock-take report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SetReportArchiveKey records where the rendered report was archived.
func SetReportArchiveKey(ctx context.Context, db *sql.DB, ownerID, id uuid.UUID, key string) error {
	return execOne(ctx, db, "stock-take report",
		`UPDATE stock_take_reports SET archive_key = ? WHERE id = ? AND owner_id = ?`,
		key, id, ownerID,
	)
}
