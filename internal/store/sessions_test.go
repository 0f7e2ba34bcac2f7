package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

func TestCreateAndGetSession(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s, err := CreateSession(ctx, database, date, "aisle 4", "monthly", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusDraft, s.Status)
	assert.Equal(t, "aisle 4", s.LocationFilter)
	assert.True(t, s.CountDate.Equal(date))
	assert.True(t, s.NetVarianceValue.IsZero())

	missing, err := GetSession(ctx, database, s.ID+1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	state, err := GetSessionState(ctx, database, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.ItemsVersion)
}

func TestListSessionsFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	first, err := CreateSession(ctx, database, march, "north", "", nil)
	require.NoError(t, err)
	_, err = CreateSession(ctx, database, april, "south", "", nil)
	require.NoError(t, err)
	_, err = MarkSessionCompleted(ctx, database, first.ID, april)
	require.NoError(t, err)

	all, err := ListSessions(ctx, database, model.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].CountDate.Equal(april), "newest first")

	completed, err := ListSessions(ctx, database, model.SessionFilter{Status: model.SessionStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	from := april
	later, err := ListSessions(ctx, database, model.SessionFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "south", later[0].LocationFilter)
}

func TestWriteSessionSummaryVersionGuard(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	s, err := CreateSession(ctx, database, time.Now().UTC(), "", "", nil)
	require.NoError(t, err)
	require.NoError(t, BumpItemsVersion(ctx, database, s.ID))

	summary := model.SessionSummary{SessionID: s.ID, TotalItemsCounted: 1, NetVarianceValue: decimal.RequireFromString("-1.50")}

	written, err := WriteSessionSummary(ctx, database, summary, 0)
	require.NoError(t, err)
	assert.False(t, written, "stale version must not write")

	written, err = WriteSessionSummary(ctx, database, summary, 1)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := GetSession(ctx, database, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInProgress, got.Status)
	assert.Equal(t, 1, got.TotalItemsCounted)
	assert.True(t, got.NetVarianceValue.Equal(decimal.RequireFromString("-1.50")))
}

func TestSessionStatusGuards(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s, err := CreateSession(ctx, database, now, "", "", nil)
	require.NoError(t, err)

	ok, err := MarkSessionApproved(ctx, database, s.ID, 1, now)
	require.NoError(t, err)
	assert.False(t, ok, "draft cannot be approved")

	ok, err = MarkSessionCompleted(ctx, database, s.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// A summary write never moves a completed session.
	_, err = WriteSessionSummary(ctx, database, model.SessionSummary{SessionID: s.ID, TotalItemsCounted: 2, NetVarianceValue: decimal.Zero}, 0)
	require.NoError(t, err)
	state, err := GetSessionState(ctx, database, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, state.Status)

	ok, err = MarkSessionApproved(ctx, database, s.ID, 1, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MarkSessionApproved(ctx, database, s.ID, 1, now)
	require.NoError(t, err)
	assert.False(t, ok, "second approval must not match")

	ok, err = MarkSessionCompleted(ctx, database, s.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "approved never regresses")
}
