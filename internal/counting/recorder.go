package counting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// RecordCountInput is one physical count submitted by an operator.
type RecordCountInput struct {
	SessionID       int64
	ProductID       int64
	VariantID       *int64
	CountedQuantity int
	CountingMethod  string // manual when empty
	Actor           int64
}

// ComputeVariance returns counted − expected and its value at unitPrice.
// Integer quantities times a minor-unit price need no rounding.
func ComputeVariance(expected, counted int, unitPrice decimal.Decimal) (int, decimal.Decimal) {
	variance := counted - expected
	return variance, decimal.NewFromInt(int64(variance)).Mul(unitPrice)
}

// RecordCount records a physical count for one product of a session and
// recomputes the session summary before returning.
//
// The first count of a (product, variant) key snapshots the catalog's
// expected quantity and unit price; later counts of the same key overwrite
// only the counted fields and reuse that snapshot.
//
// If the count is stored but the summary cannot be recomputed, the stored
// item is returned together with the error. The summary is then stale until
// the next Recompute; repeating the same count is safe.
func (s *Service) RecordCount(ctx context.Context, in RecordCountInput) (*model.CountItem, error) {
	const op = "record count"

	if in.CountedQuantity < 0 {
		return nil, fail(op, in.SessionID, "counted_quantity", ErrInvalidQuantity)
	}
	method := in.CountingMethod
	if method == "" {
		method = model.CountMethodManual
	}
	if !model.ValidCountMethod(method) {
		return nil, fail(op, in.SessionID, "counting_method", ErrInvalidMethod)
	}

	if err := s.checkOpen(ctx, s.db, op, in.SessionID); err != nil {
		return nil, err
	}

	existing, err := store.GetCountItemByKey(ctx, s.db, in.SessionID, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}

	// The catalog is only consulted for a key's first count, and outside the
	// write transaction.
	var snap *model.ProductSnapshot
	if existing == nil {
		snap, err = s.catalog.ProductSnapshot(ctx, in.ProductID, in.VariantID)
		if err != nil {
			return nil, fmt.Errorf("looking up product %d: %w", in.ProductID, err)
		}
		if snap == nil {
			return nil, fail(op, in.SessionID, "product_id", fmt.Errorf("%w: %d", ErrProductNotFound, in.ProductID))
		}
	}

	item, err := s.writeCount(ctx, in, method, snap)
	if err != nil {
		return nil, err
	}

	if _, err := s.Recompute(ctx, in.SessionID); err != nil {
		slog.Warn("count recorded without summary", "session", in.SessionID, "product", in.ProductID, "error", err)
		return item, err
	}

	slog.Info("count recorded", "session", in.SessionID, "product", in.ProductID,
		"counted", item.CountedQuantity, "variance", item.Variance, "actor", in.Actor)
	return item, nil
}

// writeCount upserts the item for the input's key, appends a count event and
// bumps the session's item version, all in one transaction.
func (s *Service) writeCount(ctx context.Context, in RecordCountInput, method string, snap *model.ProductSnapshot) (*model.CountItem, error) {
	const op = "record count"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-check: the session may have been approved since the first read.
	if err := s.checkOpen(ctx, tx, op, in.SessionID); err != nil {
		return nil, err
	}

	item, err := store.GetCountItemByKey(ctx, tx, in.SessionID, in.ProductID, in.VariantID)
	if err != nil {
		return nil, err
	}

	var previous *int
	if item == nil {
		if snap == nil {
			// The item seen before the transaction is gone; let the caller retry.
			return nil, fail(op, in.SessionID, "product_id", ErrCountConflict)
		}
		item = &model.CountItem{
			SessionID:        in.SessionID,
			ProductID:        in.ProductID,
			VariantID:        in.VariantID,
			ExpectedQuantity: snap.ExpectedQuantity,
			UnitPrice:        snap.UnitPrice,
		}
		s.applyCount(item, in, method)
		if err := store.InsertCountItem(ctx, tx, item); err != nil {
			if store.IsUniqueViolation(err) {
				return nil, fail(op, in.SessionID, "product_id", ErrCountConflict)
			}
			return nil, err
		}
	} else {
		prev := item.CountedQuantity
		previous = &prev
		s.applyCount(item, in, method)
		if err := store.UpdateCountItem(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	err = store.InsertCountEvent(ctx, tx, model.CountEvent{
		SessionID:       in.SessionID,
		ItemID:          item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		PreviousCounted: previous,
		CountedQuantity: item.CountedQuantity,
		CountingMethod:  item.CountingMethod,
		CountedBy:       item.CountedBy,
		CountedAt:       item.CountedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := store.BumpItemsVersion(ctx, tx, in.SessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing count: %w", err)
	}
	return item, nil
}

func (s *Service) applyCount(item *model.CountItem, in RecordCountInput, method string) {
	item.CountedQuantity = in.CountedQuantity
	item.Variance, item.VarianceValue = ComputeVariance(item.ExpectedQuantity, in.CountedQuantity, item.UnitPrice)
	item.CountingMethod = method
	item.CountedAt = s.clock()
	item.CountedBy = nil
	if in.Actor > 0 {
		actor := in.Actor
		item.CountedBy = &actor
	}
}

// checkOpen fails unless the session exists and is not approved.
func (s *Service) checkOpen(ctx context.Context, db store.DBTX, op string, sessionID int64) error {
	state, err := store.GetSessionState(ctx, db, sessionID)
	if err != nil {
		return err
	}
	if state == nil {
		return fail(op, sessionID, "", ErrSessionNotFound)
	}
	if state.Status == model.SessionStatusApproved {
		return fail(op, sessionID, "", ErrSessionClosed)
	}
	return nil
}
