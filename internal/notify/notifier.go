package notify

import (
	"log"
)

// Channel names used by the severity routing in errlog
const (
	ChannelCritical = "critical"
	ChannelAlerts   = "alerts"
	ChannelEvents   = "events"
)

// Notifier delivers fire-and-forget alerts. Implementations must never block
// the caller for long and must swallow their own delivery failures — a dead
// notification channel must not fail a sync operation.
type Notifier interface {
	Notify(channel string, payload map[string]interface{})
}

// LogNotifier writes notifications to the process log. Used as the fallback
// sink and for LOW/DEBUG severities.
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(channel string, payload map[string]interface{}) {
	log.Printf("🔔 [%s] %v", channel, payload)
}

// Multi fans one notification out to several sinks
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(channel string, payload map[string]interface{}) {
	for _, n := range m {
		n.Notify(channel, payload)
	}
}
