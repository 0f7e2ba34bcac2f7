package model

import "time"

// Adjustment is a ledger correction derived from one discrepant count item
// at approval time. Once committed it belongs to the stock ledger.
type Adjustment struct {
	ID         int64     `json:"id,omitempty"`
	BatchID    string    `json:"batch_id"`
	SessionID  int64     `json:"session_id"`
	ProductID  int64     `json:"product_id"`
	VariantID  *int64    `json:"variant_id,omitempty"`
	Delta      int       `json:"delta"`
	ApprovedBy int64     `json:"approved_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalResult is returned by a successful approval.
type ApprovalResult struct {
	Session     *CountSession `json:"session"`
	BatchID     string        `json:"batch_id"`
	Adjustments []Adjustment  `json:"adjustments"`
}

// AdjustmentFilter narrows ListAdjustments. Zero values match everything.
type AdjustmentFilter struct {
	SessionID int64
	ProductID int64
}
