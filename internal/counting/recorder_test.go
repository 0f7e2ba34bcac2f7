package counting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

func TestComputeVariance(t *testing.T) {
	tests := []struct {
		expected, counted int
		price             string
		variance          int
		value             string
	}{
		{10, 12, "2.50", 2, "5"},
		{10, 7, "0.99", -3, "-2.97"},
		{4, 4, "100", 0, "0"},
		{0, 3, "0", 3, "0"},
	}
	for _, tt := range tests {
		variance, value := ComputeVariance(tt.expected, tt.counted, decimal.RequireFromString(tt.price))
		assert.Equal(t, tt.variance, variance)
		assert.True(t, value.Equal(decimal.RequireFromString(tt.value)), "got %s, want %s", value, tt.value)
	}
}

func TestRecordCountSnapshotsCatalog(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "2.50", 10)
	session := f.session()

	item := f.count(session, product, 12)
	assert.Equal(t, 10, item.ExpectedQuantity)
	assert.Equal(t, 2, item.Variance)
	assert.True(t, item.VarianceValue.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, model.CountMethodManual, item.CountingMethod)
	require.NotNil(t, item.CountedBy)
	assert.Equal(t, f.operator, *item.CountedBy)

	assert.Equal(t, model.SessionStatusInProgress, f.status(session))
}

func TestRecordCountOverwritesSameKey(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "1.00", 5)
	session := f.session()

	first := f.count(session, product, 3)
	second := f.count(session, product, 5)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0, second.Variance)

	got, err := f.svc.GetSession(f.ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalItemsCounted)
	assert.Equal(t, 0, got.DiscrepancyCount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 5, got.Items[0].CountedQuantity)

	history, err := f.svc.CountHistory(f.ctx, session)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousCounted)
	require.NotNil(t, history[1].PreviousCounted)
	assert.Equal(t, 3, *history[1].PreviousCounted)
}

func TestRecordCountKeepsSnapshotAfterCatalogChange(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "2.00", 10)
	session := f.session()

	f.count(session, product, 8)

	require.NoError(t, store.UpdateProductPrice(f.ctx, f.db, product, decimal.RequireFromString("9.00")))
	require.NoError(t, store.ReceiveStock(f.ctx, f.db, product, nil, 5))

	item := f.count(session, product, 9)
	assert.Equal(t, 10, item.ExpectedQuantity)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("2.00")))
	assert.Equal(t, -1, item.Variance)
	assert.True(t, item.VarianceValue.Equal(decimal.RequireFromString("-2")))
}

func TestRecordCountDistinctVariants(t *testing.T) {
	f := newFixture(t)
	product := f.product("V", "3.00", 0)
	variant, err := store.CreateVariant(f.ctx, f.db, product, "V-red", "Red", nil)
	require.NoError(t, err)
	session := f.session()

	f.count(session, product, 1)
	_, err = f.svc.RecordCount(f.ctx, RecordCountInput{
		SessionID: session, ProductID: product, VariantID: &variant.ID, CountedQuantity: 2,
		CountingMethod: model.CountMethodScan,
	})
	require.NoError(t, err)

	got, err := f.svc.GetSession(f.ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalItemsCounted)
	assert.Equal(t, 2, got.DiscrepancyCount)
	assert.True(t, got.NetVarianceValue.Equal(decimal.RequireFromString("9")))
}

func TestRecordCountValidation(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "1.00", 1)
	session := f.session()

	_, err := f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountedQuantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.True(t, IsValidation(err))

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "counted_quantity", cerr.Field)

	_, err = f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountingMethod: "guess"})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: 999})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: 999, ProductID: product})
	require.ErrorIs(t, err, ErrSessionNotFound)

	got, err := f.svc.GetSession(f.ctx, session)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, model.SessionStatusDraft, got.Status)
}

func TestRecordCountOnCompletedSession(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "1.00", 4)
	session := f.session()

	f.count(session, product, 2)
	f.complete(session)

	// Corrections are allowed until approval and do not reopen the session.
	item := f.count(session, product, 4)
	assert.Equal(t, 0, item.Variance)
	assert.Equal(t, model.SessionStatusCompleted, f.status(session))
}

func TestRecordCountOnApprovedSession(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "1.00", 4)
	session := f.session()

	f.count(session, product, 4)
	f.complete(session)
	_, err := f.svc.Approve(f.ctx, session, f.manager)
	require.NoError(t, err)

	_, err = f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountedQuantity: 1})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestRecordCountConcurrent(t *testing.T) {
	f := newFixture(t, WithRecomputeAttempts(50))
	session := f.session()

	const writers = 20
	distinct := make([]int64, writers)
	for i := range distinct {
		distinct[i] = f.product(fmt.Sprintf("D%02d", i), "1.00", 5)
	}
	shared := f.product("S", "2.00", 10)

	// A lost first-count race stores nothing and is retried. A summary
	// conflict means the count itself was stored.
	var stored atomic.Int64
	record := func(productID int64, qty int) error {
		for {
			item, err := f.svc.RecordCount(f.ctx, RecordCountInput{
				SessionID: session, ProductID: productID, CountedQuantity: qty, Actor: f.operator,
			})
			switch {
			case err == nil:
				stored.Add(1)
				return nil
			case errors.Is(err, ErrCountConflict):
				continue
			case errors.Is(err, ErrRecomputeConflict) && item != nil:
				stored.Add(1)
				return nil
			default:
				return err
			}
		}
	}

	var g errgroup.Group
	for i, productID := range distinct {
		g.Go(func() error { return record(productID, i%5+3) })
		g.Go(func() error { return record(shared, i) })
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 2*writers, stored.Load())

	items, err := store.ListCountItems(f.ctx, f.db, session)
	require.NoError(t, err)
	require.Len(t, items, writers+1, "one item per product")

	seen := make(map[int64]bool)
	for _, item := range items {
		assert.False(t, seen[item.ProductID], "duplicate item for product %d", item.ProductID)
		seen[item.ProductID] = true
		if item.ProductID == shared {
			assert.Equal(t, 10, item.ExpectedQuantity)
			assert.Equal(t, item.CountedQuantity-10, item.Variance)
		}
	}

	summary, err := f.svc.Recompute(f.ctx, session)
	require.NoError(t, err)
	want := Summarize(session, items)
	assert.Equal(t, want.TotalItemsCounted, summary.TotalItemsCounted)
	assert.Equal(t, want.DiscrepancyCount, summary.DiscrepancyCount)
	assert.True(t, want.NetVarianceValue.Equal(summary.NetVarianceValue))

	events, err := store.ListCountEvents(f.ctx, f.db, session)
	require.NoError(t, err)
	assert.Len(t, events, 2*writers, "every stored write has an event")

	var firsts int
	for _, e := range events {
		if e.ProductID == shared && e.PreviousCounted == nil {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts, "exactly one first count of the shared product")
}

// racingCatalog records a competing first count of the same key while the
// catalog lookup for the original one is in flight.
type racingCatalog struct {
	next  Catalog
	race  func()
	raced bool
}

func (c *racingCatalog) ProductSnapshot(ctx context.Context, productID int64, variantID *int64) (*model.ProductSnapshot, error) {
	if !c.raced {
		c.raced = true
		c.race()
	}
	return c.next.ProductSnapshot(ctx, productID, variantID)
}

func TestRecordCountInterleavedFirstCounts(t *testing.T) {
	f := newFixture(t)
	product := f.product("A", "1.00", 4)
	session := f.session()

	catalog := &racingCatalog{next: &store.Catalog{DB: f.db}}
	svc := New(f.db, catalog, &store.RoleAuthorizer{DB: f.db}, store.StockLedger{}, WithClock(func() time.Time { return testNow }))
	catalog.race = func() {
		_, err := svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountedQuantity: 2})
		require.NoError(t, err)
	}

	item, err := svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountedQuantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, item.CountedQuantity)
	assert.Equal(t, 3, item.Variance)

	got, err := svc.GetSession(f.ctx, session)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 7, got.Items[0].CountedQuantity)
	assert.Equal(t, 1, got.DiscrepancyCount)

	history, err := svc.CountHistory(f.ctx, session)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousCounted)
	require.NotNil(t, history[1].PreviousCounted)
	assert.Equal(t, 2, *history[1].PreviousCounted)
}

func TestRecordCountStoredWhenSummaryConflicts(t *testing.T) {
	f := newFixture(t, WithRecomputeAttempts(2))
	product := f.product("A", "1.00", 4)
	session := f.session()

	f.svc.beforeSummaryWrite = func() {
		require.NoError(t, store.BumpItemsVersion(f.ctx, f.db, session))
	}

	item, err := f.svc.RecordCount(f.ctx, RecordCountInput{SessionID: session, ProductID: product, CountedQuantity: 6})
	require.ErrorIs(t, err, ErrRecomputeConflict)
	require.NotNil(t, item, "the stored item is returned with the error")
	assert.Equal(t, 6, item.CountedQuantity)

	f.svc.beforeSummaryWrite = nil
	summary, err := f.svc.Recompute(f.ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalItemsCounted)
	assert.Equal(t, 1, summary.DiscrepancyCount)
}
