package errlog

import (
	"strings"
)

// Category classifies where a failure originated
type Category string

const (
	CategoryAPI        Category = "API"
	CategoryDatabase   Category = "DATABASE"
	CategoryValidation Category = "VALIDATION"
	CategorySync       Category = "SYNC"
	CategoryAuth       Category = "AUTH"
	CategoryNetwork    Category = "NETWORK"
	CategorySystem     Category = "SYSTEM"
)

// Severity ranks how loudly a failure should surface
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityDebug    Severity = "DEBUG"
)

// baseSeverity is the default severity per category, before message overrides
var baseSeverity = map[Category]Severity{
	CategoryAPI:        SeverityHigh,
	CategoryDatabase:   SeverityHigh,
	CategoryValidation: SeverityMedium,
	CategorySync:       SeverityMedium,
	CategoryAuth:       SeverityHigh,
	CategoryNetwork:    SeverityMedium,
	CategorySystem:     SeverityHigh,
}

// Classify infers the failure category from the error message. Used when the
// caller does not state a category explicitly.
func Classify(err error) Category {
	if err == nil {
		return CategorySystem
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "unauthorized", "forbidden", "token", "credential", "authentication", "auth failed"):
		return CategoryAuth
	case containsAny(msg, "connection refused", "no such host", "dial tcp", "timeout", "network", "broken pipe"):
		return CategoryNetwork
	case containsAny(msg, "sql", "database", "pq:", "gorm", "constraint", "deadlock"):
		return CategoryDatabase
	case containsAny(msg, "xmlrpc", "xml-rpc", "marketplace", "status code", "http"):
		return CategoryAPI
	case containsAny(msg, "invalid", "required", "missing", "validation", "malformed"):
		return CategoryValidation
	case containsAny(msg, "sync", "conflict", "transition", "state"):
		return CategorySync
	default:
		return CategorySystem
	}
}

// SeverityFor derives a severity from the category plus message-pattern
// overrides. Any connection/corruption text in a DATABASE error escalates to
// CRITICAL regardless of the category default.
func SeverityFor(cat Category, msg string) Severity {
	lower := strings.ToLower(msg)

	if cat == CategoryDatabase && containsAny(lower, "connection", "corrupt") {
		return SeverityCritical
	}
	if containsAny(lower, "fatal", "panic") {
		return SeverityCritical
	}

	if sev, ok := baseSeverity[cat]; ok {
		return sev
	}
	return SeverityMedium
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
