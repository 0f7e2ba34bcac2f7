package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
)

// CreateProduct creates a catalog product. Prices are kept at minor-unit
// (cent) precision.
func CreateProduct(ctx context.Context, db DBTX, sku, name, description string, unitPrice decimal.Decimal) (*model.Product, error) {
	if unitPrice.IsNegative() {
		return nil, fmt.Errorf("unit price must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO products (sku, name, description, unit_price) VALUES (?, ?, ?, ?)`,
		sku, name, description, unitPrice.Round(2).String(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// GetProduct returns a product with its variants, or nil if it does not exist.
func GetProduct(ctx context.Context, db DBTX, id int64) (*model.Product, error) {
	p := &model.Product{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, sku, name, description, unit_price, created_at, updated_at, deleted_at
		 FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.SKU, &p.Name, &description, &p.UnitPrice, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	p.Description = description.String

	p.Variants, err = ListVariants(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns all non-deleted products ordered by name.
func ListProducts(ctx context.Context, db DBTX) ([]model.Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, sku, name, description, unit_price, created_at, updated_at, deleted_at
		 FROM products WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &description, &p.UnitPrice, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		p.Description = description.String
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProductPrice changes a product's list price. Counts already recorded
// keep the price they snapshotted.
func UpdateProductPrice(ctx context.Context, db DBTX, id int64, unitPrice decimal.Decimal) error {
	if unitPrice.IsNegative() {
		return fmt.Errorf("unit price must not be negative")
	}
	_, err := db.ExecContext(ctx,
		`UPDATE products SET unit_price = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		unitPrice.Round(2).String(), id,
	)
	if err != nil {
		return fmt.Errorf("updating product price: %w", err)
	}
	return nil
}

// CreateVariant adds a variant to a product. A nil price inherits the
// product's price.
func CreateVariant(ctx context.Context, db DBTX, productID int64, sku, name string, unitPrice *decimal.Decimal) (*model.ProductVariant, error) {
	var price sql.NullString
	if unitPrice != nil {
		if unitPrice.IsNegative() {
			return nil, fmt.Errorf("unit price must not be negative")
		}
		price = sql.NullString{String: unitPrice.Round(2).String(), Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO product_variants (product_id, sku, name, unit_price) VALUES (?, ?, ?, ?)`,
		productID, sku, name, price,
	)
	if err != nil {
		return nil, fmt.Errorf("creating variant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting variant id: %w", err)
	}

	v := &model.ProductVariant{}
	var vp decimal.NullDecimal
	err = db.QueryRowContext(ctx,
		`SELECT id, product_id, sku, name, unit_price, created_at FROM product_variants WHERE id = ?`, id,
	).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &vp, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting variant: %w", err)
	}
	if vp.Valid {
		v.UnitPrice = &vp.Decimal
	}
	return v, nil
}

// ListVariants returns the variants of a product.
func ListVariants(ctx context.Context, db DBTX, productID int64) ([]model.ProductVariant, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, sku, name, unit_price, created_at
		 FROM product_variants WHERE product_id = ? ORDER BY id`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	defer rows.Close()

	var variants []model.ProductVariant
	for rows.Next() {
		var v model.ProductVariant
		var price decimal.NullDecimal
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &price, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		if price.Valid {
			p := price.Decimal
			v.UnitPrice = &p
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}
