package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// variant_id columns use 0 for "no variant" so that the composite keys stay
// unique; SQLite treats NULLs as distinct inside UNIQUE constraints.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id          INTEGER PRIMARY KEY,
    sku         TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT,
    unit_price  TEXT NOT NULL DEFAULT '0',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at  DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku_active
    ON products(sku) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS product_variants (
    id         INTEGER PRIMARY KEY,
    product_id INTEGER NOT NULL REFERENCES products(id),
    sku        TEXT NOT NULL,
    name       TEXT NOT NULL,
    unit_price TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stock_levels (
    product_id INTEGER NOT NULL REFERENCES products(id),
    variant_id INTEGER NOT NULL DEFAULT 0,
    quantity   INTEGER NOT NULL CHECK (quantity > 0),
    PRIMARY KEY (product_id, variant_id)
);

CREATE TABLE IF NOT EXISTS stock_adjustments (
    id          INTEGER PRIMARY KEY,
    batch_id    TEXT NOT NULL,
    session_id  INTEGER NOT NULL,
    product_id  INTEGER NOT NULL REFERENCES products(id),
    variant_id  INTEGER NOT NULL DEFAULT 0,
    delta       INTEGER NOT NULL CHECK (delta <> 0),
    approved_by INTEGER REFERENCES users(id),
    created_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_adjustments_session_key
    ON stock_adjustments(session_id, product_id, variant_id);

CREATE TABLE IF NOT EXISTS count_sessions (
    id                  INTEGER PRIMARY KEY,
    status              TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'in_progress', 'completed', 'approved')),
    count_date          DATETIME NOT NULL,
    location_filter     TEXT,
    notes               TEXT,
    total_items_counted INTEGER NOT NULL DEFAULT 0,
    discrepancy_count   INTEGER NOT NULL DEFAULT 0,
    net_variance_value  TEXT NOT NULL DEFAULT '0',
    items_version       INTEGER NOT NULL DEFAULT 0,
    created_by          INTEGER REFERENCES users(id),
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at        DATETIME,
    approved_by         INTEGER REFERENCES users(id),
    approved_at         DATETIME
);

CREATE TABLE IF NOT EXISTS count_items (
    id                INTEGER PRIMARY KEY,
    session_id        INTEGER NOT NULL REFERENCES count_sessions(id) ON DELETE CASCADE,
    product_id        INTEGER NOT NULL REFERENCES products(id),
    variant_id        INTEGER NOT NULL DEFAULT 0,
    expected_quantity INTEGER NOT NULL,
    unit_price        TEXT NOT NULL,
    counted_quantity  INTEGER NOT NULL CHECK (counted_quantity >= 0),
    variance          INTEGER NOT NULL,
    variance_value    TEXT NOT NULL,
    counting_method   TEXT NOT NULL DEFAULT 'manual' CHECK (counting_method IN ('manual', 'scan')),
    counted_by        INTEGER REFERENCES users(id),
    counted_at        DATETIME NOT NULL,
    UNIQUE (session_id, product_id, variant_id)
);

CREATE TABLE IF NOT EXISTS count_events (
    id               INTEGER PRIMARY KEY,
    session_id       INTEGER NOT NULL REFERENCES count_sessions(id) ON DELETE CASCADE,
    item_id          INTEGER NOT NULL REFERENCES count_items(id) ON DELETE CASCADE,
    product_id       INTEGER NOT NULL,
    variant_id       INTEGER NOT NULL DEFAULT 0,
    previous_counted INTEGER,
    counted_quantity INTEGER NOT NULL,
    counting_method  TEXT NOT NULL,
    counted_by       INTEGER REFERENCES users(id),
    counted_at       DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// The applied count is tracked in PRAGMA user_version. Append new migrations
// at the end; never reorder or edit applied ones.
var migrations = []string{
	// Migration 1: session list filters by status and orders by count date.
	`CREATE INDEX IF NOT EXISTS idx_count_sessions_status_date
	     ON count_sessions(status, count_date)`,
	// Migration 2: adjustment history is read per product.
	`CREATE INDEX IF NOT EXISTS idx_stock_adjustments_product
	     ON stock_adjustments(product_id, variant_id)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}
