package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/popis/internal/model"
)

// ErrNegativeStock is returned when a delta would take a stock level below zero.
var ErrNegativeStock = errors.New("adjustment would result in negative stock")

// ListStock returns every non-zero stock level with product names joined.
func ListStock(ctx context.Context, db DBTX) ([]model.StockLevel, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT s.product_id, s.variant_id, s.quantity, p.name, p.sku, COALESCE(v.name, '')
		 FROM stock_levels s
		 JOIN products p ON p.id = s.product_id
		 LEFT JOIN product_variants v ON v.id = s.variant_id
		 ORDER BY p.name, s.variant_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var levels []model.StockLevel
	for rows.Next() {
		var l model.StockLevel
		var variant int64
		if err := rows.Scan(&l.ProductID, &variant, &l.Quantity, &l.ProductName, &l.ProductSKU, &l.VariantName); err != nil {
			return nil, fmt.Errorf("scanning stock level: %w", err)
		}
		l.VariantID = variantPtr(variant)
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// GetStockQuantity returns the current quantity; missing rows mean zero.
func GetStockQuantity(ctx context.Context, db DBTX, productID int64, variantID *int64) (int, error) {
	var quantity int
	err := db.QueryRowContext(ctx,
		`SELECT quantity FROM stock_levels WHERE product_id = ? AND variant_id = ?`,
		productID, variantKey(variantID),
	).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking stock quantity: %w", err)
	}
	return quantity, nil
}

// ReceiveStock adds received goods to a product's stock level.
func ReceiveStock(ctx context.Context, db *sql.DB, productID int64, variantID *int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = ? AND deleted_at IS NULL)`, productID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking product: %w", err)
	}
	if !exists {
		return fmt.Errorf("product not found")
	}

	if err := applyStockDelta(ctx, tx, productID, variantID, quantity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stock receipt: %w", err)
	}
	return nil
}

// applyStockDelta changes one stock level by delta inside tx. Rows that
// reach zero are deleted.
func applyStockDelta(ctx context.Context, tx DBTX, productID int64, variantID *int64, delta int) error {
	current, err := GetStockQuantity(ctx, tx, productID, variantID)
	if err != nil {
		return err
	}

	newQty := current + delta
	if newQty < 0 {
		return fmt.Errorf("%w: product %d: %d + %d = %d", ErrNegativeStock, productID, current, delta, newQty)
	}

	key := variantKey(variantID)
	switch {
	case newQty == 0:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM stock_levels WHERE product_id = ? AND variant_id = ?`,
			productID, key,
		)
	case current == 0:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stock_levels (product_id, variant_id, quantity) VALUES (?, ?, ?)`,
			productID, key, newQty,
		)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE stock_levels SET quantity = ? WHERE product_id = ? AND variant_id = ?`,
			newQty, productID, key,
		)
	}
	if err != nil {
		return fmt.Errorf("updating stock level: %w", err)
	}
	return nil
}
