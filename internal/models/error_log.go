package models

import (
	"time"
)

// ErrorLog is a persisted structured error record. Category and severity come
// from the errlog taxonomy; context carries whatever the caller attached
// (order key, states, job id).
type ErrorLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Category  string    `gorm:"type:varchar(20);not null;index" json:"category"`
	Severity  string    `gorm:"type:varchar(20);not null;index" json:"severity"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Context   JSONB     `gorm:"type:jsonb" json:"context"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name
func (ErrorLog) TableName() string {
	return "error_logs"
}
