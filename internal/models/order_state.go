package models

import (
	"time"
)

// OrderSyncState is the single current lifecycle state of one synchronized
// order. Exactly one row exists per (local_order_id, remote_order_id) pair;
// prior states live in order_sync_history.
type OrderSyncState struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LocalOrderID  uint      `gorm:"not null;uniqueIndex:idx_order_key" json:"local_order_id"`
	RemoteOrderID int64     `gorm:"not null;uniqueIndex:idx_order_key" json:"remote_order_id"`
	State         string    `gorm:"type:varchar(20);not null;index" json:"state"`
	Metadata      JSONB     `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name
func (OrderSyncState) TableName() string {
	return "order_sync_states"
}

// OrderSyncHistory is the append-only archive of superseded states. A row is
// written here before the current row is overwritten; history never contains
// the current state.
type OrderSyncHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LocalOrderID  uint      `gorm:"not null;index:idx_history_key" json:"local_order_id"`
	RemoteOrderID int64     `gorm:"not null;index:idx_history_key" json:"remote_order_id"`
	State         string    `gorm:"type:varchar(20);not null" json:"state"`
	Metadata      JSONB     `gorm:"type:jsonb" json:"metadata"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	ArchivedAt    time.Time `gorm:"not null" json:"archived_at"`
}

// TableName specifies the table name
func (OrderSyncHistory) TableName() string {
	return "order_sync_history"
}
