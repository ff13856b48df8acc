package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/gorm"
)

// StateStore is the durable record of every order's sync lifecycle: one
// current row per order key plus an append-only history. All transitions go
// through SetState, which validates against the state machine and uses a
// compare-and-swap update so concurrent writers cannot silently overwrite
// each other.
type StateStore struct {
	db      *database.DB
	machine *StateMachine
	errors  ErrorReporter

	maxRetries int
	retryDelay time.Duration
}

// NewStateStore creates a state store. maxRetries/retryDelay bound the
// recovery helpers; zero values fall back to the package defaults.
func NewStateStore(db *database.DB, machine *StateMachine, reporter ErrorReporter, maxRetries int, retryDelay time.Duration) *StateStore {
	if maxRetries <= 0 {
		maxRetries = MaxRetryAttempts
	}
	if retryDelay <= 0 {
		retryDelay = RetryDelay
	}
	return &StateStore{
		db:         db,
		machine:    machine,
		errors:     reporter,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// GetState returns the current state row for the key
func (s *StateStore) GetState(key OrderKey) (*models.OrderSyncState, error) {
	var cur models.OrderSyncState
	err := s.db.Where("local_order_id = ? AND remote_order_id = ?", key.LocalOrderID, key.RemoteOrderID).
		First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}
	return &cur, nil
}

// SetState transitions the order to a new state. A fresh key only accepts the
// machine's initial state. For existing keys the prior row is archived into
// history and the current row is updated with a CAS on its previous state;
// a losing concurrent writer gets ErrStaleWrite, an illegal edge gets
// ErrInvalidTransition.
func (s *StateStore) SetState(key OrderKey, to OrderState, metadata models.JSONB) error {
	now := time.Now().UTC()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cur models.OrderSyncState
		err := tx.Where("local_order_id = ? AND remote_order_id = ?", key.LocalOrderID, key.RemoteOrderID).
			First(&cur).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if to != s.machine.InitialState() {
				s.logInvalidTransition(key, "", to)
				return fmt.Errorf("%w: fresh key %s must start in %s, got %s",
					ErrInvalidTransition, key, s.machine.InitialState(), to)
			}
			created := models.OrderSyncState{
				LocalOrderID:  key.LocalOrderID,
				RemoteOrderID: key.RemoteOrderID,
				State:         string(to),
				Metadata:      metadata,
				CreatedAt:     now,
			}
			if err := tx.Create(&created).Error; err != nil {
				// Unique index on the order key: a concurrent writer won
				return fmt.Errorf("%w: %v", ErrStaleWrite, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read current state: %w", err)
		}

		if !s.machine.IsValidTransition(OrderState(cur.State), to) {
			s.logInvalidTransition(key, OrderState(cur.State), to)
			return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, cur.State, to, key)
		}

		// Archive the row being superseded before touching current
		history := models.OrderSyncHistory{
			LocalOrderID:  cur.LocalOrderID,
			RemoteOrderID: cur.RemoteOrderID,
			State:         cur.State,
			Metadata:      cur.Metadata,
			CreatedAt:     cur.CreatedAt,
			ArchivedAt:    now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("archive state: %w", err)
		}

		// CAS on the state we just read; RowsAffected 0 means someone else
		// transitioned this order between our read and write
		res := tx.Model(&models.OrderSyncState{}).
			Where("id = ? AND state = ?", cur.ID, cur.State).
			Updates(map[string]interface{}{
				"state":      string(to),
				"metadata":   metadata,
				"created_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update state: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrStaleWrite, key)
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrStaleWrite) {
			s.errors.Log(errlog.CategoryDatabase, errlog.SeverityHigh,
				fmt.Sprintf("set_state failed for %s: %v", key, err),
				models.JSONB{"order_key": key.String(), "target_state": string(to)})
		}
		return err
	}
	return nil
}

// GetHistory returns the archived states for the key, newest first. The
// current row is never part of the result.
func (s *StateStore) GetHistory(key OrderKey) ([]models.OrderSyncHistory, error) {
	var rows []models.OrderSyncHistory
	err := s.db.Where("local_order_id = ? AND remote_order_id = ?", key.LocalOrderID, key.RemoteOrderID).
		Order("archived_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", key, err)
	}
	return rows, nil
}

// BulkSetState transitions many orders at once. The two ID slices are paired
// positionally; a length mismatch is a precondition failure and writes
// nothing. Per-key failures are reported in the result map, they do not stop
// the remaining keys.
func (s *StateStore) BulkSetState(localIDs []uint, remoteIDs []int64, to OrderState, metadata models.JSONB) (map[OrderKey]error, error) {
	if len(localIDs) != len(remoteIDs) {
		return nil, fmt.Errorf("%w: %d local ids vs %d remote ids", ErrInvalidInput, len(localIDs), len(remoteIDs))
	}

	results := make(map[OrderKey]error, len(localIDs))
	for i := range localIDs {
		key := OrderKey{LocalOrderID: localIDs[i], RemoteOrderID: remoteIDs[i]}
		results[key] = s.SetState(key, to, metadata)
	}
	return results, nil
}

// GetOrdersInState returns every order key currently in the given state
func (s *StateStore) GetOrdersInState(state OrderState) ([]OrderKey, error) {
	var rows []models.OrderSyncState
	err := s.db.Where("state = ?", string(state)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("orders in state %s: %w", state, err)
	}

	keys := make([]OrderKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, OrderKey{LocalOrderID: row.LocalOrderID, RemoteOrderID: row.RemoteOrderID})
	}
	return keys, nil
}

// CleanupHistory deletes history rows older than the retention window.
// Current-state rows are never touched.
func (s *StateStore) CleanupHistory(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", ErrInvalidInput)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	res := s.db.Where("archived_at < ?", cutoff).Delete(&models.OrderSyncHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *StateStore) logInvalidTransition(key OrderKey, from, to OrderState) {
	s.errors.Log(errlog.CategoryValidation, errlog.SeverityHigh,
		fmt.Sprintf("invalid state transition for %s", key),
		models.JSONB{
			"order_key":  key.String(),
			"from_state": string(from),
			"to_state":   string(to),
		})
}
