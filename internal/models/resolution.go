package models

import (
	"time"
)

// ManualResolution is one field conflict awaiting a human decision.
// Removed once a reviewer submits a choice; the outcome is recorded in
// resolution_logs.
type ManualResolution struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LocalOrderID  uint      `gorm:"not null;index:idx_manual_key" json:"local_order_id"`
	RemoteOrderID int64     `gorm:"not null;index:idx_manual_key" json:"remote_order_id"`
	Field         string    `gorm:"type:varchar(100);not null" json:"field"`
	LocalValue    JSONB     `gorm:"type:jsonb" json:"local_value"`
	RemoteValue   JSONB     `gorm:"type:jsonb" json:"remote_value"`
	Reason        string    `gorm:"type:text" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name
func (ManualResolution) TableName() string {
	return "manual_resolutions"
}

// ResolutionLog is the per-order audit trail of every resolution decision,
// automatic or human, independent of state transitions.
type ResolutionLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LocalOrderID  uint      `gorm:"not null;index:idx_resolution_key" json:"local_order_id"`
	RemoteOrderID int64     `gorm:"not null;index:idx_resolution_key" json:"remote_order_id"`
	Field         string    `gorm:"type:varchar(100);not null" json:"field"`
	Strategy      string    `gorm:"type:varchar(30);not null" json:"strategy"`
	Winner        string    `gorm:"type:varchar(10)" json:"winner"` // local, remote, manual, deferred
	ChosenValue   JSONB     `gorm:"type:jsonb" json:"chosen_value"`
	Reason        string    `gorm:"type:text" json:"reason"`
	ResolvedBy    *string   `gorm:"type:varchar(255)" json:"resolved_by,omitempty"`
	Notes         string    `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name
func (ResolutionLog) TableName() string {
	return "resolution_logs"
}
