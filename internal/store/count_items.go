package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/popis/internal/model"
)

const countItemColumns = `ci.id, ci.session_id, ci.product_id, ci.variant_id, ci.expected_quantity,
	ci.unit_price, ci.counted_quantity, ci.variance, ci.variance_value,
	ci.counting_method, ci.counted_by, ci.counted_at`

// GetCountItemByKey returns the item for (session, product, variant), or nil.
func GetCountItemByKey(ctx context.Context, db DBTX, sessionID, productID int64, variantID *int64) (*model.CountItem, error) {
	item, err := scanCountItem(db.QueryRowContext(ctx,
		`SELECT `+countItemColumns+`, '', ''
		 FROM count_items ci
		 WHERE ci.session_id = ? AND ci.product_id = ? AND ci.variant_id = ?`,
		sessionID, productID, variantKey(variantID),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting count item: %w", err)
	}
	return item, nil
}

// InsertCountItem stores a first count and sets item.ID. A concurrent first
// count for the same key fails with an error matched by IsUniqueViolation.
func InsertCountItem(ctx context.Context, db DBTX, item *model.CountItem) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO count_items (session_id, product_id, variant_id, expected_quantity, unit_price,
		                          counted_quantity, variance, variance_value, counting_method,
		                          counted_by, counted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SessionID, item.ProductID, variantKey(item.VariantID), item.ExpectedQuantity,
		item.UnitPrice.String(), item.CountedQuantity, item.Variance, item.VarianceValue.String(),
		item.CountingMethod, item.CountedBy, item.CountedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting count item: %w", err)
	}

	item.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting count item id: %w", err)
	}
	return nil
}

// UpdateCountItem overwrites the counted fields of an existing item. The
// expected quantity and unit price snapshot are never changed.
func UpdateCountItem(ctx context.Context, db DBTX, item *model.CountItem) error {
	_, err := db.ExecContext(ctx,
		`UPDATE count_items
		 SET counted_quantity = ?, variance = ?, variance_value = ?,
		     counting_method = ?, counted_by = ?, counted_at = ?
		 WHERE id = ?`,
		item.CountedQuantity, item.Variance, item.VarianceValue.String(),
		item.CountingMethod, item.CountedBy, item.CountedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating count item: %w", err)
	}
	return nil
}

// ListCountItems returns every item of a session with product names joined.
// The result comes from a single statement and is a consistent snapshot.
func ListCountItems(ctx context.Context, db DBTX, sessionID int64) ([]model.CountItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+countItemColumns+`, p.name, p.sku
		 FROM count_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.session_id = ?
		 ORDER BY ci.id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing count items: %w", err)
	}
	defer rows.Close()

	var items []model.CountItem
	for rows.Next() {
		item, err := scanCountItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning count item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// InsertCountEvent appends one entry to the count history.
func InsertCountEvent(ctx context.Context, db DBTX, ev model.CountEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO count_events (session_id, item_id, product_id, variant_id, previous_counted,
		                           counted_quantity, counting_method, counted_by, counted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.ItemID, ev.ProductID, variantKey(ev.VariantID), ev.PreviousCounted,
		ev.CountedQuantity, ev.CountingMethod, ev.CountedBy, ev.CountedAt,
	)
	if err != nil {
		return fmt.Errorf("recording count event: %w", err)
	}
	return nil
}

// ListCountEvents returns a session's count history in recording order.
func ListCountEvents(ctx context.Context, db DBTX, sessionID int64) ([]model.CountEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, item_id, product_id, variant_id, previous_counted,
		        counted_quantity, counting_method, counted_by, counted_at
		 FROM count_events WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing count events: %w", err)
	}
	defer rows.Close()

	var events []model.CountEvent
	for rows.Next() {
		var ev model.CountEvent
		var variant int64
		var previous sql.NullInt64
		var countedBy sql.NullInt64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.ItemID, &ev.ProductID, &variant, &previous,
			&ev.CountedQuantity, &ev.CountingMethod, &countedBy, &ev.CountedAt); err != nil {
			return nil, fmt.Errorf("scanning count event: %w", err)
		}
		ev.VariantID = variantPtr(variant)
		if previous.Valid {
			p := int(previous.Int64)
			ev.PreviousCounted = &p
		}
		ev.CountedBy = nullInt64(countedBy)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func scanCountItem(row rowScanner) (*model.CountItem, error) {
	item := &model.CountItem{}
	var variant int64
	var countedBy sql.NullInt64
	err := row.Scan(&item.ID, &item.SessionID, &item.ProductID, &variant, &item.ExpectedQuantity,
		&item.UnitPrice, &item.CountedQuantity, &item.Variance, &item.VarianceValue,
		&item.CountingMethod, &countedBy, &item.CountedAt,
		&item.ProductName, &item.ProductSKU)
	if err != nil {
		return nil, err
	}
	item.VariantID = variantPtr(variant)
	item.CountedBy = nullInt64(countedBy)
	return item, nil
}

// CountSessionItems returns how many items a session holds.
func CountSessionItems(ctx context.Context, db DBTX, sessionID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM count_items WHERE session_id = ?`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting session items: %w", err)
	}
	return n, nil
}
