package counting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// CreateSessionInput describes a new count session.
type CreateSessionInput struct {
	CountDate      time.Time // today when zero
	LocationFilter string
	Notes          string
	Actor          int64
}

// CreateSession opens a new session in draft status.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*model.CountSession, error) {
	date := in.CountDate
	if date.IsZero() {
		date = s.clock()
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var createdBy *int64
	if in.Actor > 0 {
		actor := in.Actor
		createdBy = &actor
	}

	session, err := store.CreateSession(ctx, s.db, date, strings.TrimSpace(in.LocationFilter), strings.TrimSpace(in.Notes), createdBy)
	if err != nil {
		return nil, err
	}
	slog.Info("session created", "session", session.ID, "date", date.Format(time.DateOnly), "actor", in.Actor)
	return session, nil
}

// GetSession returns a session with its items.
func (s *Service) GetSession(ctx context.Context, sessionID int64) (*model.CountSession, error) {
	session, err := store.GetSession(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fail("get session", sessionID, "", ErrSessionNotFound)
	}

	session.Items, err = store.ListCountItems(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Items == nil {
		session.Items = []model.CountItem{}
	}
	return session, nil
}

// ListSessions returns sessions without items.
func (s *Service) ListSessions(ctx context.Context, filter model.SessionFilter) ([]model.CountSession, error) {
	return store.ListSessions(ctx, s.db, filter)
}

// DeleteSession discards a session that has not been approved. Approved
// sessions are part of the stock history and cannot be deleted.
func (s *Service) DeleteSession(ctx context.Context, sessionID int64) error {
	const op = "delete session"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.checkOpen(ctx, tx, op, sessionID); err != nil {
		return err
	}
	if err := store.DeleteSession(ctx, tx, sessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	slog.Info("session deleted", "session", sessionID)
	return nil
}

// CountHistory returns every count recorded in a session, including the ones
// later overwritten, oldest first.
func (s *Service) CountHistory(ctx context.Context, sessionID int64) ([]model.CountEvent, error) {
	state, err := store.GetSessionState(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fail("count history", sessionID, "", ErrSessionNotFound)
	}
	return store.ListCountEvents(ctx, s.db, sessionID)
}

// Adjustments returns the ledger records committed by approvals.
func (s *Service) Adjustments(ctx context.Context, filter model.AdjustmentFilter) ([]model.Adjustment, error) {
	return store.ListAdjustments(ctx, s.db, filter)
}
