package errlog

import (
	"log"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/database"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"github.com/xelth-com/ordsyncgo/internal/notify"
)

// Logger persists structured error records and routes notifications by
// severity. CRITICAL pages immediately, HIGH goes to the alerts channel,
// everything below is log-only.
type Logger struct {
	db       *database.DB
	notifier notify.Notifier
}

// New creates an error logger. notifier may be nil for log-only operation.
func New(db *database.DB, notifier notify.Notifier) *Logger {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Logger{db: db, notifier: notifier}
}

// Log records one classified error
func (l *Logger) Log(cat Category, sev Severity, msg string, ctx models.JSONB) {
	log.Printf("🔴 [%s/%s] %s", cat, sev, msg)

	record := models.ErrorLog{
		Category:  string(cat),
		Severity:  string(sev),
		Message:   msg,
		Context:   ctx,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.db.Create(&record).Error; err != nil {
		// Error logging must never cascade; console is the last resort
		log.Printf("⚠️  Failed to persist error log: %v", err)
	}

	l.dispatch(cat, sev, msg, ctx)
}

// LogError classifies err and records it; returns the derived classification
func (l *Logger) LogError(err error, ctx models.JSONB) (Category, Severity) {
	cat := Classify(err)
	sev := SeverityFor(cat, err.Error())
	l.Log(cat, sev, err.Error(), ctx)
	return cat, sev
}

// dispatch routes the record to a notification channel per severity
func (l *Logger) dispatch(cat Category, sev Severity, msg string, ctx models.JSONB) {
	var channel string
	switch sev {
	case SeverityCritical:
		channel = notify.ChannelCritical
	case SeverityHigh:
		channel = notify.ChannelAlerts
	default:
		// MEDIUM and below are log-only
		return
	}

	payload := map[string]interface{}{
		"category": string(cat),
		"severity": string(sev),
		"message":  msg,
	}
	for k, v := range ctx {
		payload[k] = v
	}
	l.notifier.Notify(channel, payload)
}

// Recent returns the newest error records, optionally filtered
func (l *Logger) Recent(category, severity string, limit int) ([]models.ErrorLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := l.db.Model(&models.ErrorLog{}).Order("created_at DESC").Limit(limit)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}

	var records []models.ErrorLog
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
