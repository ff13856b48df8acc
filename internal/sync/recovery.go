package sync

import (
	"fmt"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// Recovery bounds. Eligibility is evaluated lazily from persisted metadata;
// there are no timers.
const (
	MaxRetryAttempts = 3
	RetryDelay       = 300 * time.Second
)

// Metadata keys used by the recovery bookkeeping
const (
	metaRetryCount    = "retry_count"
	metaLastRetry     = "last_retry"
	metaFailureReason = "failure_reason"
)

// retryMeta is the parsed recovery bookkeeping of one order
type retryMeta struct {
	Count     int
	LastRetry time.Time
}

// parseRetryMeta reads the retry counters out of a state metadata blob.
// JSONB round-trips numbers as float64 and timestamps as RFC3339 strings.
func parseRetryMeta(meta models.JSONB) retryMeta {
	var rm retryMeta
	if meta == nil {
		return rm
	}

	switch v := meta[metaRetryCount].(type) {
	case float64:
		rm.Count = int(v)
	case int:
		rm.Count = v
	}

	if raw, ok := meta[metaLastRetry].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			rm.LastRetry = ts
		}
	}
	return rm
}

// retryEligible decides whether another recovery attempt is allowed right
// now. Returns the blocking reason when it is not.
func retryEligible(rm retryMeta, now time.Time, maxRetries int, delay time.Duration) (bool, string) {
	if rm.Count >= maxRetries {
		return false, "maximum retry attempts reached"
	}
	if !rm.LastRetry.IsZero() && now.Sub(rm.LastRetry) < delay {
		return false, "retry delay not elapsed"
	}
	return true, ""
}

// AttemptRecovery moves a FAILED order to RECOVERED if its retry budget
// allows. Returns false without touching state when the order is not FAILED,
// the attempt count is exhausted, or the inter-attempt delay has not elapsed.
func (s *StateStore) AttemptRecovery(key OrderKey, failureReason string) (bool, error) {
	return attemptRecovery(s, s.errors, key, failureReason, s.maxRetries, s.retryDelay, time.Now().UTC())
}

// attemptRecovery works against the repository interface so the decision
// logic is testable without a database behind it.
func attemptRecovery(states StateRepository, reporter ErrorReporter, key OrderKey, failureReason string, maxRetries int, delay time.Duration, now time.Time) (bool, error) {
	cur, err := states.GetState(key)
	if err != nil {
		return false, err
	}
	if OrderState(cur.State) != StateFailed {
		return false, nil
	}

	rm := parseRetryMeta(cur.Metadata)

	ok, blocked := retryEligible(rm, now, maxRetries, delay)
	if !ok {
		if blocked == "maximum retry attempts reached" {
			reporter.Log(errlog.CategorySync, errlog.SeverityHigh,
				fmt.Sprintf("maximum retry attempts reached for %s", key),
				models.JSONB{"order_key": key.String(), "retry_count": rm.Count})
		}
		return false, nil
	}

	metadata := models.JSONB{
		metaRetryCount:    rm.Count + 1,
		metaLastRetry:     now.Format(time.RFC3339),
		metaFailureReason: failureReason,
	}
	if err := states.SetState(key, StateRecovered, metadata); err != nil {
		return false, err
	}
	return true, nil
}

// ForceRecovery bypasses the retry budget, but only from FAILED or CONFLICT
func (s *StateStore) ForceRecovery(key OrderKey, reason string) (bool, error) {
	cur, err := s.GetState(key)
	if err != nil {
		return false, err
	}
	state := OrderState(cur.State)
	if state != StateFailed && state != StateConflict {
		return false, nil
	}

	metadata := models.JSONB{
		"forced":        true,
		"forced_reason": reason,
		metaLastRetry:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.SetState(key, StateRecovered, metadata); err != nil {
		return false, err
	}
	return true, nil
}

// GetRecoverableOrders returns up to limit FAILED orders whose retry
// metadata makes them eligible for another attempt, oldest first.
func (s *StateStore) GetRecoverableOrders(limit int) ([]OrderKey, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.OrderSyncState
	err := s.db.Where("state = ?", string(StateFailed)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recoverable orders: %w", err)
	}

	now := time.Now().UTC()
	keys := make([]OrderKey, 0, limit)
	for _, row := range rows {
		if ok, _ := retryEligible(parseRetryMeta(row.Metadata), now, s.maxRetries, s.retryDelay); ok {
			keys = append(keys, OrderKey{LocalOrderID: row.LocalOrderID, RemoteOrderID: row.RemoteOrderID})
			if len(keys) == limit {
				break
			}
		}
	}
	return keys, nil
}

// ResetRetryCount clears the retry bookkeeping without changing state. Not a
// transition, so no history row is written.
func (s *StateStore) ResetRetryCount(key OrderKey) error {
	cur, err := s.GetState(key)
	if err != nil {
		return err
	}

	metadata := models.JSONB{}
	for k, v := range cur.Metadata {
		if k == metaRetryCount || k == metaLastRetry {
			continue
		}
		metadata[k] = v
	}

	res := s.db.Model(&models.OrderSyncState{}).
		Where("id = ? AND state = ?", cur.ID, cur.State).
		Update("metadata", metadata)
	if res.Error != nil {
		return fmt.Errorf("reset retry count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrStaleWrite, key)
	}
	return nil
}
