package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session statuses. Transitions only move forward:
// draft → in_progress → completed → approved.
const (
	SessionStatusDraft      = "draft"
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusApproved   = "approved"
)

// Counting methods.
const (
	CountMethodManual = "manual"
	CountMethodScan   = "scan"
)

// ValidCountMethod reports whether method is a known counting method.
func ValidCountMethod(method string) bool {
	return method == CountMethodManual || method == CountMethodScan
}

// StatusRank orders session statuses; unknown statuses rank 0.
func StatusRank(status string) int {
	switch status {
	case SessionStatusDraft:
		return 1
	case SessionStatusInProgress:
		return 2
	case SessionStatusCompleted:
		return 3
	case SessionStatusApproved:
		return 4
	}
	return 0
}

// CountSession is one physical-inventory exercise.
//
// TotalItemsCounted, DiscrepancyCount and NetVarianceValue are a cache of the
// session's items, written only by the session aggregator.
type CountSession struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	CountDate         time.Time       `json:"count_date"`
	LocationFilter    string          `json:"location_filter,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	TotalItemsCounted int             `json:"total_items_counted"`
	DiscrepancyCount  int             `json:"discrepancy_count"`
	NetVarianceValue  decimal.Decimal `json:"net_variance_value"`
	CreatedBy         *int64          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	ApprovedBy        *int64          `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`

	// Populated by GetSession only.
	Items []CountItem `json:"items,omitempty"`
}

// CountItem is one physical count of one product (optionally one variant)
// within a session. ExpectedQuantity and UnitPrice are snapshotted at the
// first count and never refreshed from the catalog.
type CountItem struct {
	ID               int64           `json:"id"`
	SessionID        int64           `json:"session_id"`
	ProductID        int64           `json:"product_id"`
	VariantID        *int64          `json:"variant_id,omitempty"`
	ExpectedQuantity int             `json:"expected_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CountedQuantity  int             `json:"counted_quantity"`
	Variance         int             `json:"variance"`
	VarianceValue    decimal.Decimal `json:"variance_value"`
	CountingMethod   string          `json:"counting_method"`
	CountedBy        *int64          `json:"counted_by,omitempty"`
	CountedAt        time.Time       `json:"counted_at"`

	// Joined fields (not always populated).
	ProductName string `json:"product_name,omitempty"`
	ProductSKU  string `json:"product_sku,omitempty"`
}

// HasDiscrepancy reports whether the count differs from the expected quantity.
func (i CountItem) HasDiscrepancy() bool {
	return i.Variance != 0
}

// SessionSummary is the aggregate view of a session's items.
type SessionSummary struct {
	SessionID         int64           `json:"session_id"`
	Status            string          `json:"status"`
	TotalItemsCounted int             `json:"total_items_counted"`
	DiscrepancyCount  int             `json:"discrepancy_count"`
	NetVarianceValue  decimal.Decimal `json:"net_variance_value"`
}

// SessionFilter narrows ListSessions. Zero values match everything.
type SessionFilter struct {
	Status         string
	LocationFilter string
	From           *time.Time
	To             *time.Time
}

// CountEvent is an append-only record of one recorded count, kept so that
// overwritten counts remain auditable.
type CountEvent struct {
	ID              int64     `json:"id"`
	SessionID       int64     `json:"session_id"`
	ItemID          int64     `json:"item_id"`
	ProductID       int64     `json:"product_id"`
	VariantID       *int64    `json:"variant_id,omitempty"`
	PreviousCounted *int      `json:"previous_counted,omitempty"`
	CountedQuantity int       `json:"counted_quantity"`
	CountingMethod  string    `json:"counting_method"`
	CountedBy       *int64    `json:"counted_by,omitempty"`
	CountedAt       time.Time `json:"counted_at"`
}
