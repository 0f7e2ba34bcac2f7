package counting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// BuildAdjustments derives one adjustment per discrepant item. Items counted
// exactly as expected produce nothing.
func BuildAdjustments(batchID string, sessionID, approvedBy int64, at time.Time, items []model.CountItem) []model.Adjustment {
	var batch []model.Adjustment
	for _, item := range items {
		if !item.HasDiscrepancy() {
			continue
		}
		batch = append(batch, model.Adjustment{
			BatchID:    batchID,
			SessionID:  sessionID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Delta:      item.Variance,
			ApprovedBy: approvedBy,
			CreatedAt:  at,
		})
	}
	return batch
}

// Approve commits a completed session's discrepancies to the ledger and marks
// the session approved. The batch and the status change commit together or
// not at all; a session is approved at most once.
func (s *Service) Approve(ctx context.Context, sessionID, actor int64) (*model.ApprovalResult, error) {
	const op = "approve"

	ok, err := s.authorizer.CanApprove(ctx, actor, sessionID)
	if err != nil {
		return nil, fmt.Errorf("checking approval permission: %w", err)
	}
	if !ok {
		return nil, fail(op, sessionID, "", ErrUnauthorized)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	state, err := store.GetSessionState(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fail(op, sessionID, "", ErrSessionNotFound)
	}
	switch state.Status {
	case model.SessionStatusApproved:
		return nil, fail(op, sessionID, "", ErrAlreadyApproved)
	case model.SessionStatusCompleted:
	default:
		return nil, fail(op, sessionID, "", ErrSessionNotCompleted)
	}

	items, err := store.ListCountItems(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	batchID := s.newBatchID()
	batch := BuildAdjustments(batchID, sessionID, actor, now, items)

	if len(batch) > 0 {
		if err := s.ledger.ApplyAdjustments(ctx, tx, batch); err != nil {
			slog.Warn("ledger rejected approval batch", "session", sessionID, "batch", batchID,
				"adjustments", len(batch), "error", err)
			return nil, fail(op, sessionID, "", fmt.Errorf("%w: %w", ErrLedgerCommitFailed, err))
		}
	}

	marked, err := store.MarkSessionApproved(ctx, tx, sessionID, actor, now)
	if err != nil {
		return nil, err
	}
	if !marked {
		return nil, fail(op, sessionID, "", ErrAlreadyApproved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing approval: %w", err)
	}

	session, err := store.GetSession(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}

	slog.Info("session approved", "session", sessionID, "batch", batchID,
		"adjustments", len(batch), "actor", actor)

	if batch == nil {
		batch = []model.Adjustment{}
	}
	return &model.ApprovalResult{Session: session, BatchID: batchID, Adjustments: batch}, nil
}
