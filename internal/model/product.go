package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry whose stock can be counted.
type Product struct {
	ID          int64            `json:"id"`
	SKU         string           `json:"sku"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Variants    []ProductVariant `json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
}

// ProductVariant is a sellable variation of a product (size, colour, ...).
// A nil UnitPrice means the variant is priced like its product.
type ProductVariant struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	SKU       string           `json:"sku"`
	Name      string           `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ProductSnapshot is what the catalog reports for a product at count time.
type ProductSnapshot struct {
	ProductID        int64           `json:"product_id"`
	VariantID        *int64          `json:"variant_id,omitempty"`
	ExpectedQuantity int             `json:"expected_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

// StockLevel is the ledger's current quantity for a product or variant.
type StockLevel struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`

	// Joined fields (not always populated).
	ProductName string `json:"product_name,omitempty"`
	ProductSKU  string `json:"product_sku,omitempty"`
	VariantName string `json:"variant_name,omitempty"`
}
