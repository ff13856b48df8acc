package sync

import (
	"errors"
	"fmt"

	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/gorm"
)

// ManualQueue is the durable list of field conflicts awaiting a human.
// Applying a decision records the outcome and removes the entry; it does not
// re-trigger the sync — the reviewer does that separately.
type ManualQueue struct {
	db    *database.DB
	local LocalOrderStore
}

// NewManualQueue creates the queue. local receives the audit-note side
// effects of enqueue/apply.
func NewManualQueue(db *database.DB, local LocalOrderStore) *ManualQueue {
	return &ManualQueue{db: db, local: local}
}

// Enqueue appends one pending conflict and an audit note on the order
func (q *ManualQueue) Enqueue(key OrderKey, field string, localValue, remoteValue interface{}, reason string) error {
	entry := models.ManualResolution{
		LocalOrderID:  key.LocalOrderID,
		RemoteOrderID: key.RemoteOrderID,
		Field:         field,
		LocalValue:    models.JSONB{"value": localValue},
		RemoteValue:   models.JSONB{"value": remoteValue},
		Reason:        reason,
	}
	if err := q.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("enqueue manual conflict %s/%s: %w", key, field, err)
	}

	if q.local != nil {
		note := fmt.Sprintf("field %q needs manual resolution: %s", field, reason)
		if err := q.local.AddAuditNote(key.LocalOrderID, note); err != nil {
			return fmt.Errorf("audit note for manual conflict %s/%s: %w", key, field, err)
		}
	}
	return nil
}

// ListPending returns every order with a non-empty queue, entries oldest
// first within each order.
func (q *ManualQueue) ListPending() (map[OrderKey][]models.ManualResolution, error) {
	var rows []models.ManualResolution
	err := q.db.Order("created_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending manual conflicts: %w", err)
	}

	pending := make(map[OrderKey][]models.ManualResolution)
	for _, row := range rows {
		key := OrderKey{LocalOrderID: row.LocalOrderID, RemoteOrderID: row.RemoteOrderID}
		pending[key] = append(pending[key], row)
	}
	return pending, nil
}

// Apply records the reviewer's choice for one queued field: removes the
// entry, writes the outcome to the resolution log and notes the order.
func (q *ManualQueue) Apply(key OrderKey, field string, chosenValue interface{}, resolvedBy, notes string) error {
	var entry models.ManualResolution
	err := q.db.Where("local_order_id = ? AND remote_order_id = ? AND field = ?",
		key.LocalOrderID, key.RemoteOrderID, field).
		Order("created_at ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: no pending conflict for %s field %q", ErrNotFound, key, field)
	}
	if err != nil {
		return fmt.Errorf("load manual conflict %s/%s: %w", key, field, err)
	}

	outcome := models.ResolutionLog{
		LocalOrderID:  key.LocalOrderID,
		RemoteOrderID: key.RemoteOrderID,
		Field:         field,
		Strategy:      string(StrategyManual),
		Winner:        "manual",
		ChosenValue:   models.JSONB{"value": chosenValue},
		Reason:        entry.Reason,
		Notes:         notes,
	}
	if resolvedBy != "" {
		outcome.ResolvedBy = &resolvedBy
	}

	err = q.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&outcome).Error; err != nil {
			return fmt.Errorf("record manual outcome: %w", err)
		}
		if err := tx.Delete(&models.ManualResolution{}, entry.ID).Error; err != nil {
			return fmt.Errorf("dequeue manual conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply manual resolution %s/%s: %w", key, field, err)
	}

	if q.local != nil {
		note := fmt.Sprintf("field %q resolved manually by %s", field, displayName(resolvedBy))
		if err := q.local.AddAuditNote(key.LocalOrderID, note); err != nil {
			return fmt.Errorf("audit note for manual resolution %s/%s: %w", key, field, err)
		}
	}
	return nil
}

func displayName(resolvedBy string) string {
	if resolvedBy == "" {
		return "reviewer"
	}
	return resolvedBy
}
