package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
)

// Catalog answers product snapshot lookups from the local product, variant
// and stock tables.
type Catalog struct {
	DB DBTX
}

// ProductSnapshot returns the current stock quantity and unit price for a
// product or one of its variants. It returns nil, nil when the product is
// unknown, deleted, or the variant does not belong to it.
func (c *Catalog) ProductSnapshot(ctx context.Context, productID int64, variantID *int64) (*model.ProductSnapshot, error) {
	var (
		productPrice decimal.Decimal
		variantRowID sql.NullInt64
		variantPrice decimal.NullDecimal
		quantity     int
	)
	err := c.DB.QueryRowContext(ctx,
		`SELECT p.unit_price, v.id, v.unit_price, COALESCE(s.quantity, 0)
		 FROM products p
		 LEFT JOIN product_variants v ON v.id = ? AND v.product_id = p.id
		 LEFT JOIN stock_levels s ON s.product_id = p.id AND s.variant_id = ?
		 WHERE p.id = ? AND p.deleted_at IS NULL`,
		variantKey(variantID), variantKey(variantID), productID,
	).Scan(&productPrice, &variantRowID, &variantPrice, &quantity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up product snapshot: %w", err)
	}
	if variantID != nil && !variantRowID.Valid {
		return nil, nil
	}

	snap := &model.ProductSnapshot{
		ProductID:        productID,
		VariantID:        variantID,
		ExpectedQuantity: quantity,
		UnitPrice:        productPrice,
	}
	if variantPrice.Valid {
		snap.UnitPrice = variantPrice.Decimal
	}
	return snap, nil
}
