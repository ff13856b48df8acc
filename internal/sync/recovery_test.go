package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/models"
)

func TestParseRetryMeta(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// JSONB round-trips numbers as float64 and timestamps as strings
	rm := parseRetryMeta(models.JSONB{
		"retry_count": float64(2),
		"last_retry":  ts.Format(time.RFC3339),
	})
	if rm.Count != 2 {
		t.Errorf("expected count 2, got %d", rm.Count)
	}
	if !rm.LastRetry.Equal(ts) {
		t.Errorf("expected last retry %v, got %v", ts, rm.LastRetry)
	}

	// Freshly written metadata may still hold a Go int
	rm = parseRetryMeta(models.JSONB{"retry_count": 1})
	if rm.Count != 1 {
		t.Errorf("expected count 1, got %d", rm.Count)
	}

	rm = parseRetryMeta(nil)
	if rm.Count != 0 || !rm.LastRetry.IsZero() {
		t.Errorf("nil metadata should parse to zero values, got %+v", rm)
	}

	rm = parseRetryMeta(models.JSONB{"last_retry": "not a timestamp"})
	if !rm.LastRetry.IsZero() {
		t.Errorf("unparseable timestamp should be ignored, got %v", rm.LastRetry)
	}
}

// seedFailedState drives a key through the legal edges into FAILED
func seedFailedState(t *testing.T, states *memStates, key OrderKey, meta models.JSONB) {
	t.Helper()
	for _, step := range []OrderState{StatePending, StateSyncing} {
		if err := states.SetState(key, step, nil); err != nil {
			t.Fatalf("seed %s: %v", step, err)
		}
	}
	if err := states.SetState(key, StateFailed, meta); err != nil {
		t.Fatalf("seed FAILED: %v", err)
	}
}

func TestAttemptRecovery_ExhaustedBudgetLeavesStateUntouched(t *testing.T) {
	states := newMemStates()
	reporter := &fakeReporter{}
	key := OrderKey{LocalOrderID: 7, RemoteOrderID: 7007}
	seedFailedState(t, states, key, models.JSONB{"retry_count": float64(MaxRetryAttempts)})

	ok, err := attemptRecovery(states, reporter, key, "still failing",
		MaxRetryAttempts, RetryDelay, time.Now().UTC())
	if err != nil {
		t.Fatalf("a blocked attempt is not an error: %v", err)
	}
	if ok {
		t.Fatal("an exhausted retry budget must block recovery")
	}

	cur, _ := states.GetState(key)
	if cur.State != string(StateFailed) {
		t.Errorf("state must stay FAILED, got %s", cur.State)
	}
	if cur.Metadata["retry_count"] != float64(MaxRetryAttempts) {
		t.Errorf("retry metadata must be untouched, got %v", cur.Metadata)
	}

	if len(reporter.logged) != 1 {
		t.Fatalf("the blocked attempt should be logged once, got %d entries", len(reporter.logged))
	}
	if !strings.Contains(reporter.logged[0], "SYNC/HIGH") ||
		!strings.Contains(reporter.logged[0], "maximum retry attempts reached") {
		t.Errorf("unexpected log entry %q", reporter.logged[0])
	}
}

func TestAttemptRecovery_EligibleOrderMovesToRecovered(t *testing.T) {
	states := newMemStates()
	reporter := &fakeReporter{}
	key := OrderKey{LocalOrderID: 7, RemoteOrderID: 7007}
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedFailedState(t, states, key, models.JSONB{
		"retry_count": float64(1),
		"last_retry":  now.Add(-2 * RetryDelay).Format(time.RFC3339),
	})

	ok, err := attemptRecovery(states, reporter, key, "connection refused",
		MaxRetryAttempts, RetryDelay, now)
	if err != nil {
		t.Fatalf("AttemptRecovery failed: %v", err)
	}
	if !ok {
		t.Fatal("an order under the retry budget should recover")
	}

	cur, _ := states.GetState(key)
	if cur.State != string(StateRecovered) {
		t.Errorf("expected RECOVERED, got %s", cur.State)
	}
	if cur.Metadata["retry_count"] != 2 {
		t.Errorf("retry count should increment, got %v", cur.Metadata["retry_count"])
	}
	if cur.Metadata["failure_reason"] != "connection refused" {
		t.Errorf("the failure reason should be recorded, got %v", cur.Metadata["failure_reason"])
	}
	if len(reporter.logged) != 0 {
		t.Errorf("a successful attempt logs nothing, got %v", reporter.logged)
	}
}

func TestAttemptRecovery_IgnoresOrdersNotFailed(t *testing.T) {
	states := newMemStates()
	key := OrderKey{LocalOrderID: 7, RemoteOrderID: 7007}
	if err := states.SetState(key, StatePending, nil); err != nil {
		t.Fatalf("seed PENDING: %v", err)
	}

	ok, err := attemptRecovery(states, &fakeReporter{}, key, "whatever",
		MaxRetryAttempts, RetryDelay, time.Now().UTC())
	if err != nil || ok {
		t.Fatalf("non-FAILED orders are skipped silently, got ok=%v err=%v", ok, err)
	}
	cur, _ := states.GetState(key)
	if cur.State != string(StatePending) {
		t.Errorf("state must be untouched, got %s", cur.State)
	}
}

func TestRetryEligible(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// Never retried: eligible
	if ok, _ := retryEligible(retryMeta{}, now, MaxRetryAttempts, RetryDelay); !ok {
		t.Error("order with no retry history should be eligible")
	}

	// Budget exhausted
	ok, reason := retryEligible(retryMeta{Count: MaxRetryAttempts}, now, MaxRetryAttempts, RetryDelay)
	if ok {
		t.Error("order at the retry limit must not be eligible")
	}
	if reason != "maximum retry attempts reached" {
		t.Errorf("unexpected blocking reason %q", reason)
	}

	// Over the budget stays blocked
	if ok, _ := retryEligible(retryMeta{Count: MaxRetryAttempts + 1}, now, MaxRetryAttempts, RetryDelay); ok {
		t.Error("order over the retry limit must not be eligible")
	}

	// Delay not elapsed
	recent := retryMeta{Count: 1, LastRetry: now.Add(-RetryDelay + time.Second)}
	ok, reason = retryEligible(recent, now, MaxRetryAttempts, RetryDelay)
	if ok {
		t.Error("retry before the delay elapsed must not be eligible")
	}
	if reason != "retry delay not elapsed" {
		t.Errorf("unexpected blocking reason %q", reason)
	}

	// Delay elapsed exactly
	due := retryMeta{Count: 1, LastRetry: now.Add(-RetryDelay)}
	if ok, _ := retryEligible(due, now, MaxRetryAttempts, RetryDelay); !ok {
		t.Error("retry after the delay elapsed should be eligible")
	}
}
