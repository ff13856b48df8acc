package sync

import (
	"fmt"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/models"
)

// SyncStats is the admin-facing aggregate view of the engine
type SyncStats struct {
	ByState      map[string]int64 `json:"by_state"`
	TotalOrders  int64            `json:"total_orders"`
	SuccessRate  float64          `json:"success_rate"` // SYNCED share of all tracked orders
	LastSyncedAt *time.Time       `json:"last_synced_at,omitempty"`
}

// GetSyncStats computes per-state counts, the overall success rate and the
// most recent successful sync timestamp from the current-state table.
func (s *StateStore) GetSyncStats() (*SyncStats, error) {
	type stateCount struct {
		State string
		Count int64
	}

	var counts []stateCount
	err := s.db.Model(&models.OrderSyncState{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("sync stats: %w", err)
	}

	stats := &SyncStats{ByState: make(map[string]int64, len(counts))}
	for _, c := range counts {
		stats.ByState[c.State] = c.Count
		stats.TotalOrders += c.Count
	}
	if stats.TotalOrders > 0 {
		stats.SuccessRate = float64(stats.ByState[string(StateSynced)]) / float64(stats.TotalOrders)
	}

	var last models.OrderSyncState
	err = s.db.Where("state = ?", string(StateSynced)).
		Order("created_at DESC").
		First(&last).Error
	if err == nil {
		stats.LastSyncedAt = &last.CreatedAt
	}

	return stats, nil
}
