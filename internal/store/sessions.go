package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/popis/internal/model"
)

const sessionColumns = `id, status, count_date, location_filter, notes,
	total_items_counted, discrepancy_count, net_variance_value,
	created_by, created_at, completed_at, approved_by, approved_at`

// SessionState is the part of a session the counting rules branch on.
type SessionState struct {
	Status       string
	ItemsVersion int64
}

// CreateSession creates a new count session in draft status.
func CreateSession(ctx context.Context, db DBTX, countDate time.Time, locationFilter, notes string, createdBy *int64) (*model.CountSession, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO count_sessions (status, count_date, location_filter, notes, created_by)
		 VALUES (?, ?, ?, ?, ?)`,
		model.SessionStatusDraft, countDate, locationFilter, notes, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting session id: %w", err)
	}

	return GetSession(ctx, db, id)
}

// GetSession returns a session without its items, or nil if it does not exist.
func GetSession(ctx context.Context, db DBTX, id int64) (*model.CountSession, error) {
	s, err := scanSession(db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM count_sessions WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return s, nil
}

// GetSessionState returns a session's status and item version, or nil if the
// session does not exist.
func GetSessionState(ctx context.Context, db DBTX, id int64) (*SessionState, error) {
	st := &SessionState{}
	err := db.QueryRowContext(ctx,
		`SELECT status, items_version FROM count_sessions WHERE id = ?`, id,
	).Scan(&st.Status, &st.ItemsVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session state: %w", err)
	}
	return st, nil
}

// ListSessions returns sessions matching the filter, newest count date first.
func ListSessions(ctx context.Context, db DBTX, filter model.SessionFilter) ([]model.CountSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM count_sessions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.LocationFilter != "" {
		query += ` AND location_filter = ?`
		args = append(args, filter.LocationFilter)
	}
	if filter.From != nil {
		query += ` AND count_date >= ?`
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += ` AND count_date <= ?`
		args = append(args, *filter.To)
	}

	query += ` ORDER BY count_date DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.CountSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session; its items and count events cascade.
func DeleteSession(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM count_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// BumpItemsVersion records that the session's item set changed.
func BumpItemsVersion(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE count_sessions SET items_version = items_version + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("bumping items version: %w", err)
	}
	return nil
}

// WriteSessionSummary stores derived fields only if the item set is still at
// itemsVersion. A draft session with items advances to in_progress; no other
// status is touched. It reports whether the row was written.
func WriteSessionSummary(ctx context.Context, db DBTX, summary model.SessionSummary, itemsVersion int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE count_sessions
		 SET total_items_counted = ?, discrepancy_count = ?, net_variance_value = ?,
		     status = CASE WHEN status = ? AND ? > 0 THEN ? ELSE status END
		 WHERE id = ? AND items_version = ?`,
		summary.TotalItemsCounted, summary.DiscrepancyCount, summary.NetVarianceValue.String(),
		model.SessionStatusDraft, summary.TotalItemsCounted, model.SessionStatusInProgress,
		summary.SessionID, itemsVersion,
	)
	if err != nil {
		return false, fmt.Errorf("writing session summary: %w", err)
	}
	return rowsChanged(result)
}

// MarkSessionCompleted moves a draft or in-progress session to completed.
func MarkSessionCompleted(ctx context.Context, db DBTX, id int64, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE count_sessions SET status = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.SessionStatusCompleted, at, id, model.SessionStatusDraft, model.SessionStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("completing session: %w", err)
	}
	return rowsChanged(result)
}

// MarkSessionApproved moves a completed session to approved. It reports false
// when the session was no longer completed.
func MarkSessionApproved(ctx context.Context, db DBTX, id, approvedBy int64, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE count_sessions SET status = ?, approved_by = ?, approved_at = ?
		 WHERE id = ? AND status = ?`,
		model.SessionStatusApproved, approvedBy, at, id, model.SessionStatusCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("approving session: %w", err)
	}
	return rowsChanged(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.CountSession, error) {
	s := &model.CountSession{}
	var location, notes sql.NullString
	var createdBy, approvedBy sql.NullInt64
	var completedAt, approvedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Status, &s.CountDate, &location, &notes,
		&s.TotalItemsCounted, &s.DiscrepancyCount, &s.NetVarianceValue,
		&createdBy, &s.CreatedAt, &completedAt, &approvedBy, &approvedAt)
	if err != nil {
		return nil, err
	}
	s.LocationFilter = location.String
	s.Notes = notes.String
	s.CreatedBy = nullInt64(createdBy)
	s.ApprovedBy = nullInt64(approvedBy)
	s.CompletedAt = nullTime(completedAt)
	s.ApprovedAt = nullTime(approvedAt)
	return s, nil
}

func rowsChanged(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}
