package sync

import (
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// PolicyExtension customizes the orchestrator at its defined seams. Register
// implementations at startup; the orchestrator consults them in registration
// order at every seam. Embed BaseExtension and override what you need.
type PolicyExtension interface {
	// Name identifies the extension in logs
	Name() string

	// ShouldSync vetoes a sync before any state is touched
	ShouldSync(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool

	// OverrideInitialState may substitute the state used for the in-flight
	// transition (default SYNCING). Returning proposed keeps it.
	OverrideInitialState(key OrderKey, proposed OrderState) OrderState

	// EnrichMetadata may add keys to the metadata persisted with a
	// transition. Return the (possibly same) map.
	EnrichMetadata(key OrderKey, to OrderState, metadata models.JSONB) models.JSONB

	// OverrideComparison may drop or add field differences before resolution
	OverrideComparison(key OrderKey, diffs map[string]FieldDiff) map[string]FieldDiff

	// HandleConflict is consulted when manual conflicts remain. Returning
	// true claims ownership: the orchestrator still transitions to CONFLICT
	// but skips enqueueing to the manual queue.
	HandleConflict(key OrderKey, manual map[string]ManualConflict) bool

	// OverrideSuccessState / OverrideErrorState may remap the terminal
	// transition of a sync attempt (defaults SYNCED / FAILED)
	OverrideSuccessState(key OrderKey, proposed OrderState) OrderState
	OverrideErrorState(key OrderKey, err error, proposed OrderState) OrderState

	// OnSuccess / OnError are post-transition notification events
	OnSuccess(key OrderKey, state OrderState)
	OnError(key OrderKey, err error)
}

// BaseExtension is a no-op PolicyExtension for embedding
type BaseExtension struct{}

func (BaseExtension) Name() string { return "base" }
func (BaseExtension) ShouldSync(*models.StoreOrder, *marketplace.RemoteOrder) bool {
	return true
}
func (BaseExtension) OverrideInitialState(_ OrderKey, proposed OrderState) OrderState {
	return proposed
}
func (BaseExtension) EnrichMetadata(_ OrderKey, _ OrderState, metadata models.JSONB) models.JSONB {
	return metadata
}
func (BaseExtension) OverrideComparison(_ OrderKey, diffs map[string]FieldDiff) map[string]FieldDiff {
	return diffs
}
func (BaseExtension) HandleConflict(OrderKey, map[string]ManualConflict) bool { return false }
func (BaseExtension) OverrideSuccessState(_ OrderKey, proposed OrderState) OrderState {
	return proposed
}
func (BaseExtension) OverrideErrorState(_ OrderKey, _ error, proposed OrderState) OrderState {
	return proposed
}
func (BaseExtension) OnSuccess(OrderKey, OrderState) {}
func (BaseExtension) OnError(OrderKey, error)        {}

// ExtensionRegistry is the ordered list of registered extensions. Register
// during wiring, before the orchestrator serves traffic; reads are not
// locked.
type ExtensionRegistry struct {
	extensions []PolicyExtension
}

// NewExtensionRegistry creates an empty registry
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{}
}

// Register appends an extension. Order of registration is order of
// consultation.
func (r *ExtensionRegistry) Register(ext PolicyExtension) {
	r.extensions = append(r.extensions, ext)
}

// All returns the registered extensions in order
func (r *ExtensionRegistry) All() []PolicyExtension {
	return r.extensions
}
