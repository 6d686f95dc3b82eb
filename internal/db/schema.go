package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Every domain table carries owner_id,
// the user partition key.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS purchase_items (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL REFERENCES users(id),
    item_name     TEXT NOT NULL,
    where_to_buy  TEXT NOT NULL DEFAULT '',
    price         TEXT NOT NULL,
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    link          TEXT,
    status        TEXT NOT NULL DEFAULT 'considering'
                  CHECK (status IN ('considering', 'not_consider', 'waiting_delivery', 'arrived', 'stored')),
    course_tag    TEXT,
    is_present    INTEGER,
    last_checked  DATETIME,
    stock_item_id TEXT,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_items_owner ON purchase_items(owner_id, updated_at);

CREATE TABLE IF NOT EXISTS stock_items (
    id                 TEXT PRIMARY KEY,
    owner_id           TEXT NOT NULL REFERENCES users(id),
    item_name          TEXT NOT NULL,
    total_quantity     INTEGER NOT NULL CHECK (total_quantity >= 0),
    available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
    location           TEXT NOT NULL,
    course_tag         TEXT,
    purchase_price     TEXT NOT NULL,
    is_present         INTEGER,
    last_checked       DATETIME,
    purchase_item_id   TEXT REFERENCES purchase_items(id) ON DELETE SET NULL,
    image              BLOB,
    image_mime         TEXT,
    version            INTEGER NOT NULL DEFAULT 1,
    created_at         DATETIME NOT NULL,
    updated_at         DATETIME NOT NULL,
    deleted_at         DATETIME,
    CHECK (available_quantity <= total_quantity)
);

CREATE INDEX IF NOT EXISTS idx_stock_items_owner ON stock_items(owner_id, item_name);

CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_items_purchase
    ON stock_items(purchase_item_id) WHERE purchase_item_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS stock_transactions (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL REFERENCES users(id),
    stock_item_id TEXT NOT NULL REFERENCES stock_items(id),
    item_name     TEXT NOT NULL,
    type          TEXT NOT NULL CHECK (type IN ('in', 'out')),
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    reason        TEXT NOT NULL DEFAULT '',
    performed_by  TEXT NOT NULL,
    corrects_id   TEXT REFERENCES stock_transactions(id),
    date          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_transactions_owner ON stock_transactions(owner_id, date);

CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_transactions_corrects
    ON stock_transactions(corrects_id) WHERE corrects_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS borrow_records (
    id                   TEXT PRIMARY KEY,
    owner_id             TEXT NOT NULL REFERENCES users(id),
    stock_item_id        TEXT NOT NULL REFERENCES stock_items(id),
    item_name            TEXT NOT NULL,
    borrower_name        TEXT NOT NULL,
    borrower_contact     TEXT,
    quantity             INTEGER NOT NULL CHECK (quantity > 0),
    borrow_date          DATETIME NOT NULL,
    expected_return_date DATETIME,
    actual_return_date   DATETIME,
    status               TEXT NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed', 'returned')),
    notes                TEXT,
    created_at           DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_borrow_records_owner ON borrow_records(owner_id, status);

CREATE TABLE IF NOT EXISTS courses (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL REFERENCES users(id),
    course_name TEXT NOT NULL,
    description TEXT,
    course_date TEXT NOT NULL,
    instructor  TEXT,
    status      TEXT NOT NULL DEFAULT 'planned'
                CHECK (status IN ('planned', 'in_progress', 'completed', 'cancelled')),
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS course_items (
    id                  TEXT PRIMARY KEY,
    owner_id            TEXT NOT NULL REFERENCES users(id),
    course_id           TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    item_name           TEXT NOT NULL,
    quantity_reserved   INTEGER NOT NULL CHECK (quantity_reserved > 0),
    quantity_returned   INTEGER NOT NULL DEFAULT 0 CHECK (quantity_returned >= 0),
    quantity_outstocked INTEGER NOT NULL DEFAULT 0 CHECK (quantity_outstocked >= 0),
    status              TEXT NOT NULL DEFAULT 'reserved'
                        CHECK (status IN ('reserved', 'returned', 'outstocked', 'partial')),
    notes               TEXT,
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL,
    CHECK (quantity_returned + quantity_outstocked <= quantity_reserved)
);

CREATE TABLE IF NOT EXISTS stock_takes (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL REFERENCES users(id),
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'submitted', 'discarded')),
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_takes_active
    ON stock_takes(owner_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS stock_take_lines (
    stock_take_id     TEXT NOT NULL REFERENCES stock_takes(id) ON DELETE CASCADE,
    stock_item_id     TEXT NOT NULL,
    item_name         TEXT NOT NULL,
    snapshot_quantity INTEGER NOT NULL,
    snapshot_total    INTEGER NOT NULL,
    counted_quantity  INTEGER,
    is_checked        INTEGER NOT NULL DEFAULT 0,
    position          INTEGER NOT NULL,
    PRIMARY KEY (stock_take_id, stock_item_id)
);

CREATE TABLE IF NOT EXISTS stock_take_reports (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL REFERENCES users(id),
    stock_take_id TEXT NOT NULL REFERENCES stock_takes(id),
    lines         TEXT NOT NULL,
    archive_key   TEXT,
    created_at    DATETIME NOT NULL
);
`

// migrations are applied in order after the schema. Each must be
// idempotent. Append new migrations at the end.
var migrations = []string{
	// 1: per-item ledger listing.
	`CREATE INDEX IF NOT EXISTS idx_stock_transactions_item
	     ON stock_transactions(stock_item_id, date)`,
	// 2: course item listing.
	`CREATE INDEX IF NOT EXISTS idx_course_items_course
	     ON course_items(course_id, created_at)`,
	// 3: borrow records per stock item, checked before a stock item is deleted.
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_stock
	     ON borrow_records(stock_item_id, status)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
