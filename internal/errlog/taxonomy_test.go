package errlog

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Category
	}{
		{"invalid or expired token", CategoryAuth},
		{"dial tcp 10.0.0.5:8069: connection refused", CategoryNetwork},
		{"request timeout while fetching orders", CategoryNetwork},
		{"pq: duplicate key value violates unique constraint", CategoryDatabase},
		{"gorm: record not found", CategoryDatabase},
		{"xmlrpc fault: object not found", CategoryAPI},
		{"marketplace returned status code 502", CategoryAPI},
		{"missing required field total_amount", CategoryValidation},
		{"invalid state transition for 1/5001", CategoryValidation},
		{"sync aborted mid batch", CategorySync},
		{"something unexpected happened", CategorySystem},
	}

	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}

	if got := Classify(nil); got != CategorySystem {
		t.Errorf("Classify(nil) = %s, want SYSTEM", got)
	}
}

func TestSeverityFor(t *testing.T) {
	// Category defaults
	if got := SeverityFor(CategoryDatabase, "duplicate key"); got != SeverityHigh {
		t.Errorf("DATABASE default should be HIGH, got %s", got)
	}
	if got := SeverityFor(CategorySync, "orders diverged"); got != SeverityMedium {
		t.Errorf("SYNC default should be MEDIUM, got %s", got)
	}

	// Database connection problems escalate
	if got := SeverityFor(CategoryDatabase, "connection reset by peer"); got != SeverityCritical {
		t.Errorf("DATABASE connection errors should be CRITICAL, got %s", got)
	}
	if got := SeverityFor(CategoryDatabase, "index corrupt after restart"); got != SeverityCritical {
		t.Errorf("DATABASE corruption should be CRITICAL, got %s", got)
	}

	// The connection escalation is database-specific
	if got := SeverityFor(CategoryNetwork, "connection refused"); got != SeverityMedium {
		t.Errorf("NETWORK connection errors keep their default, got %s", got)
	}

	// Fatal text escalates regardless of category
	if got := SeverityFor(CategorySync, "fatal: lost job state"); got != SeverityCritical {
		t.Errorf("fatal messages should be CRITICAL, got %s", got)
	}
}
