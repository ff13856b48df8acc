package sync

import (
	"fmt"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// OrderKey identifies one logical order across both systems
type OrderKey struct {
	LocalOrderID  uint
	RemoteOrderID int64
}

// String renders the key for logs and audit notes
func (k OrderKey) String() string {
	return fmt.Sprintf("%d/%d", k.LocalOrderID, k.RemoteOrderID)
}

// FieldDiff is one field whose normalized local and remote values differ.
// Raw values are carried for resolution and audit; equality was decided on
// the normalized forms.
type FieldDiff struct {
	Local  interface{} `json:"local"`
	Remote interface{} `json:"remote"`
}

// RemoteOrderSource is the marketplace side of the reconciliation.
// marketplace.Service is the production implementation.
type RemoteOrderSource interface {
	FetchOrder(remoteID int64) (*marketplace.RemoteOrder, error)
	ListOrders(from, to time.Time) ([]marketplace.RemoteOrder, error)
}

// LocalOrderStore is the storefront side of the reconciliation
type LocalOrderStore interface {
	GetOrder(id uint) (*models.StoreOrder, error)
	GetOrderByRemoteID(remoteID int64) (*models.StoreOrder, error)
	Persist(order *models.StoreOrder) error
	AddAuditNote(orderID uint, note string) error
}

// StateRepository is the slice of the state store the orchestrator needs
type StateRepository interface {
	GetState(key OrderKey) (*models.OrderSyncState, error)
	SetState(key OrderKey, to OrderState, metadata models.JSONB) error
	GetHistory(key OrderKey) ([]models.OrderSyncHistory, error)
}

// ErrorReporter classifies and records failures. errlog.Logger is the
// production implementation.
type ErrorReporter interface {
	Log(cat errlog.Category, sev errlog.Severity, msg string, ctx models.JSONB)
	LogError(err error, ctx models.JSONB) (errlog.Category, errlog.Severity)
}

// ManualQueuer enqueues field conflicts for human review
type ManualQueuer interface {
	Enqueue(key OrderKey, field string, localValue, remoteValue interface{}, reason string) error
}

// ResolutionRecorder appends to the per-order resolution audit trail
type ResolutionRecorder interface {
	RecordResolution(key OrderKey, field, strategy, winner, reason string, value interface{}) error
}

// EventBroadcaster pushes lifecycle events to listeners (admin UIs).
// The websocket hub satisfies this; nil-safe in the orchestrator.
type EventBroadcaster interface {
	Broadcast(event string, data interface{})
}

// Scheduler defers a task. The batch runner uses it to chain ticks; the
// in-process default is TimerScheduler.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, taskID string, task func())
	Cancel(taskID string)
}
