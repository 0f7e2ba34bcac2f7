package counting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// Summarize derives a session summary from its complete item set.
func Summarize(sessionID int64, items []model.CountItem) model.SessionSummary {
	summary := model.SessionSummary{
		SessionID:         sessionID,
		TotalItemsCounted: len(items),
		NetVarianceValue:  decimal.Zero,
	}
	for _, item := range items {
		if item.HasDiscrepancy() {
			summary.DiscrepancyCount++
		}
		summary.NetVarianceValue = summary.NetVarianceValue.Add(item.VarianceValue)
	}
	return summary
}

// Recompute rebuilds a session's summary fields from its items. A draft
// session with at least one item advances to in_progress.
//
// The summary is written only if no item changed since the items were
// read; otherwise the read-then-write is retried. A summary built from a
// partial item set is never stored.
func (s *Service) Recompute(ctx context.Context, sessionID int64) (*model.SessionSummary, error) {
	const op = "recompute"

	for attempt := 1; attempt <= s.recomputeAttempts; attempt++ {
		summary, err := s.recomputeOnce(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if summary != nil {
			return summary, nil
		}
		slog.Debug("session items changed during recompute", "session", sessionID, "attempt", attempt)
	}
	return nil, fail(op, sessionID, "", ErrRecomputeConflict)
}

// recomputeOnce returns nil, nil when a concurrent item write won the race.
func (s *Service) recomputeOnce(ctx context.Context, sessionID int64) (*model.SessionSummary, error) {
	const op = "recompute"

	state, err := store.GetSessionState(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fail(op, sessionID, "", ErrSessionNotFound)
	}

	items, err := store.ListCountItems(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(sessionID, items)

	if s.beforeSummaryWrite != nil {
		s.beforeSummaryWrite()
	}

	written, err := store.WriteSessionSummary(ctx, s.db, summary, state.ItemsVersion)
	if err != nil {
		return nil, err
	}

	after, err := store.GetSessionState(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if after == nil {
		return nil, fail(op, sessionID, "", ErrSessionNotFound)
	}
	if !written {
		return nil, nil
	}

	summary.Status = after.Status
	return &summary, nil
}

// MarkCompleted closes counting on a session so it can be approved. Counts
// may still be corrected until approval. Completing an already completed
// session is a no-op.
func (s *Service) MarkCompleted(ctx context.Context, sessionID int64) (*model.CountSession, error) {
	const op = "mark completed"

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
		return nil, fail(op, sessionID, "", ErrSessionClosed)
	case model.SessionStatusCompleted:
		// Nothing to change.
	default:
		n, err := store.CountSessionItems(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fail(op, sessionID, "", ErrNoItemsCounted)
		}
		if _, err := store.MarkSessionCompleted(ctx, tx, sessionID, s.clock()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}

	if state.Status != model.SessionStatusCompleted {
		slog.Info("session completed", "session", sessionID)
	}
	return store.GetSession(ctx, s.db, sessionID)
}
