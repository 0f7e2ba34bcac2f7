package counting

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *sql.DB
	svc      *Service
	manager  int64
	operator int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureWithLedger(t, store.StockLedger{}, opts...)
}

func newFixtureWithLedger(t *testing.T, ledger Ledger, opts ...Option) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	manager, err := store.CreateUser(ctx, database, "manager", "hash", model.RoleManager)
	require.NoError(t, err)
	operator, err := store.CreateUser(ctx, database, "operator", "hash", model.RoleUser)
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc := New(database, &store.Catalog{DB: database}, &store.RoleAuthorizer{DB: database}, ledger, opts...)

	return &fixture{t: t, ctx: ctx, db: database, svc: svc, manager: manager.ID, operator: operator.ID}
}

// product creates a product priced at price with qty units in stock.
func (f *fixture) product(sku, price string, qty int) int64 {
	f.t.Helper()
	p, err := store.CreateProduct(f.ctx, f.db, sku, sku, "", decimal.RequireFromString(price))
	require.NoError(f.t, err)
	if qty > 0 {
		require.NoError(f.t, store.ReceiveStock(f.ctx, f.db, p.ID, nil, qty))
	}
	return p.ID
}

func (f *fixture) session() int64 {
	f.t.Helper()
	s, err := f.svc.CreateSession(f.ctx, CreateSessionInput{Actor: f.manager})
	require.NoError(f.t, err)
	return s.ID
}

func (f *fixture) count(sessionID, productID int64, qty int) *model.CountItem {
	f.t.Helper()
	item, err := f.svc.RecordCount(f.ctx, RecordCountInput{
		SessionID: sessionID, ProductID: productID, CountedQuantity: qty, Actor: f.operator,
	})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) complete(sessionID int64) {
	f.t.Helper()
	_, err := f.svc.MarkCompleted(f.ctx, sessionID)
	require.NoError(f.t, err)
}

func (f *fixture) stock(productID int64) int {
	f.t.Helper()
	qty, err := store.GetStockQuantity(f.ctx, f.db, productID, nil)
	require.NoError(f.t, err)
	return qty
}

func (f *fixture) status(sessionID int64) string {
	f.t.Helper()
	state, err := store.GetSessionState(f.ctx, f.db, sessionID)
	require.NoError(f.t, err)
	require.NotNil(f.t, state)
	return state.Status
}

// countingLedger wraps another ledger and records every batch it receives.
type countingLedger struct {
	mu      sync.Mutex
	next    Ledger
	batches [][]model.Adjustment
}

func (l *countingLedger) ApplyAdjustments(ctx context.Context, tx *sql.Tx, batch []model.Adjustment) error {
	l.mu.Lock()
	l.batches = append(l.batches, batch)
	l.mu.Unlock()
	return l.next.ApplyAdjustments(ctx, tx, batch)
}

func (l *countingLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

var errLedgerDown = errors.New("ledger unavailable")

// failingLedger applies the batch and then fails, so any partial write must
// be rolled back by the caller.
type failingLedger struct{}

func (failingLedger) ApplyAdjustments(ctx context.Context, tx *sql.Tx, batch []model.Adjustment) error {
	if err := (store.StockLedger{}).ApplyAdjustments(ctx, tx, batch[:1]); err != nil {
		return err
	}
	return errLedgerDown
}
