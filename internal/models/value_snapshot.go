package models

import (
	"time"
)

// BinderValueSnapshot stores the daily value of a binder for historical tracking
type BinderValueSnapshot struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BinderID        string    `json:"binder_id" gorm:"not null;uniqueIndex:idx_binder_snapshot_date"`
	SnapshotDate    time.Time `json:"snapshot_date" gorm:"not null;uniqueIndex:idx_binder_snapshot_date"`
	TotalCards      int       `json:"total_cards"`
	UniqueCards     int       `json:"unique_cards"`
	TotalValue      float64   `json:"total_value"`
	PurchaseValue   float64   `json:"purchase_value"`
	UnresolvedCards int       `json:"unresolved_cards"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []BinderValueSnapshot `json:"snapshots"`
	Period    string                `json:"period"` // "week", "month", "3month", "year", "all"
	// Latest is the newest snapshot even when it falls outside Period
	Latest *BinderValueSnapshot `json:"latest,omitempty"`
}
