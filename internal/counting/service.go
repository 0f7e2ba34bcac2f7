// Package counting implements cycle-count reconciliation: recording physical
// counts into a session, keeping the session summary consistent with its
// items, and approving a completed session into one atomic batch of stock
// adjustments.
package counting

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/popis/internal/model"
)

// DefaultRecomputeAttempts bounds the read-then-write retries of Recompute.
const DefaultRecomputeAttempts = 5

// Catalog resolves the expected quantity and unit price of a product at the
// moment of its first count. A nil snapshot means the product is unknown.
type Catalog interface {
	ProductSnapshot(ctx context.Context, productID int64, variantID *int64) (*model.ProductSnapshot, error)
}

// Authorizer decides who may approve a session.
type Authorizer interface {
	CanApprove(ctx context.Context, actor, sessionID int64) (bool, error)
}

// Ledger applies an approval batch. It runs inside the approval transaction,
// so an error rolls back the batch together with the status change.
type Ledger interface {
	ApplyAdjustments(ctx context.Context, tx *sql.Tx, batch []model.Adjustment) error
}

// Service coordinates the item recorder, the session aggregator and the
// approval committer over one database.
type Service struct {
	db                *sql.DB
	catalog           Catalog
	authorizer        Authorizer
	ledger            Ledger
	now               func() time.Time
	newBatchID        func() string
	recomputeAttempts int

	// beforeSummaryWrite runs between reading items and writing the summary.
	beforeSummaryWrite func()
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBatchIDs replaces the UUID v7 batch identifier generator.
func WithBatchIDs(gen func() string) Option {
	return func(s *Service) { s.newBatchID = gen }
}

// WithRecomputeAttempts sets how often Recompute retries after a concurrent
// item write. Values below 1 are ignored.
func WithRecomputeAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recomputeAttempts = n
		}
	}
}

// New returns a Service using the given collaborators.
func New(db *sql.DB, catalog Catalog, authorizer Authorizer, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		db:                db,
		catalog:           catalog,
		authorizer:        authorizer,
		ledger:            ledger,
		now:               time.Now,
		newBatchID:        func() string { return uuid.Must(uuid.NewV7()).String() },
		recomputeAttempts: DefaultRecomputeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
