package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/popis/internal/model"
)

// StockLedger applies approved count adjustments to stock_levels and keeps
// the adjustment records.
type StockLedger struct{}

// ApplyAdjustments applies the whole batch inside the caller's transaction.
// Any failing record fails the batch; the caller rolls back.
func (StockLedger) ApplyAdjustments(ctx context.Context, tx *sql.Tx, batch []model.Adjustment) error {
	for _, adj := range batch {
		if adj.Delta == 0 {
			return fmt.Errorf("adjustment for product %d has zero delta", adj.ProductID)
		}
		if err := applyStockDelta(ctx, tx, adj.ProductID, adj.VariantID, adj.Delta); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stock_adjustments (batch_id, session_id, product_id, variant_id, delta, approved_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			adj.BatchID, adj.SessionID, adj.ProductID, variantKey(adj.VariantID), adj.Delta, adj.ApprovedBy, adj.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("recording adjustment for product %d: %w", adj.ProductID, err)
		}
	}
	return nil
}

// ListAdjustments returns committed adjustments, newest first.
func ListAdjustments(ctx context.Context, db DBTX, filter model.AdjustmentFilter) ([]model.Adjustment, error) {
	query := `SELECT id, batch_id, session_id, product_id, variant_id, delta, approved_by, created_at
	          FROM stock_adjustments WHERE 1=1`
	var args []any

	if filter.SessionID > 0 {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.ProductID > 0 {
		query += ` AND product_id = ?`
		args = append(args, filter.ProductID)
	}

	query += ` ORDER BY created_at DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []model.Adjustment
	for rows.Next() {
		var a model.Adjustment
		var variant int64
		var approvedBy sql.NullInt64
		if err := rows.Scan(&a.ID, &a.BatchID, &a.SessionID, &a.ProductID, &variant, &a.Delta, &approvedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning adjustment: %w", err)
		}
		a.VariantID = variantPtr(variant)
		a.ApprovedBy = approvedBy.Int64
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}
