package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncJobStatus defines possible bulk job statuses
type SyncJobStatus string

const (
	SyncJobProcessing SyncJobStatus = "processing"
	SyncJobCompleted  SyncJobStatus = "completed"
	SyncJobCancelled  SyncJobStatus = "cancelled"
)

// SyncJob is one bulk synchronization run over a date range. Owned
// exclusively by the batch runner; the candidate order list lives in
// sync_job_orders so a single row never grows unbounded.
type SyncJob struct {
	ID              string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Status          SyncJobStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	StartDate       time.Time      `gorm:"not null" json:"start_date"`
	EndDate         time.Time      `gorm:"not null" json:"end_date"`
	BatchSize       int            `gorm:"not null" json:"batch_size"`
	IncludePending  bool           `gorm:"default:false" json:"include_pending"`
	TotalOrders     int            `gorm:"default:0" json:"total_orders"`
	ProcessedOrders int            `gorm:"default:0" json:"processed_orders"`
	FailedOrders    datatypes.JSON `json:"failed_orders"` // array of {remote_order_id, error}
	LastProcessedID int64          `gorm:"default:0" json:"last_processed_id"`
	StartTime       time.Time      `gorm:"not null" json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName specifies the table name
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// SyncJobOrder is one candidate order inside a bulk job. Rows are claimed in
// id order, one batch slice per tick.
type SyncJobOrder struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	JobID         string     `gorm:"type:varchar(36);not null;index:idx_job_pending" json:"job_id"`
	RemoteOrderID int64      `gorm:"not null" json:"remote_order_id"`
	LocalOrderID  uint       `gorm:"default:0" json:"local_order_id"`
	Processed     bool       `gorm:"default:false;index:idx_job_pending" json:"processed"`
	Succeeded     bool       `gorm:"default:false" json:"succeeded"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName specifies the table name
func (SyncJobOrder) TableName() string {
	return "sync_job_orders"
}
