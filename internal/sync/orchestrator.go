package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
	"gorm.io/datatypes"
)

// Orchestrator drives one order through fetch, compare, resolve and
// transition. Every failure is caught at this boundary, classified, logged
// and converted into a FAILED transition plus an audit note; nothing
// propagates to the event trigger.
type Orchestrator struct {
	remote      RemoteOrderSource
	local       LocalOrderStore
	states      StateRepository
	resolver    *Resolver
	errors      ErrorReporter
	manual      ManualQueuer
	resolutions ResolutionRecorder
	events      EventBroadcaster // optional
	extensions  *ExtensionRegistry
}

// NewOrchestrator wires the engine. events may be nil; a nil registry gets an
// empty one.
func NewOrchestrator(
	remote RemoteOrderSource,
	local LocalOrderStore,
	states StateRepository,
	resolver *Resolver,
	errors ErrorReporter,
	manual ManualQueuer,
	resolutions ResolutionRecorder,
	events EventBroadcaster,
	extensions *ExtensionRegistry,
) *Orchestrator {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if extensions == nil {
		extensions = NewExtensionRegistry()
	}
	return &Orchestrator{
		remote:      remote,
		local:       local,
		states:      states,
		resolver:    resolver,
		errors:      errors,
		manual:      manual,
		resolutions: resolutions,
		events:      events,
		extensions:  extensions,
	}
}

// SyncOrder is the single-order entry point used by event handlers and admin
// triggers. Returns true when the order ends the call in SYNCED.
func (o *Orchestrator) SyncOrder(localOrderID uint) (bool, error) {
	local, err := o.local.GetOrder(localOrderID)
	if err != nil {
		o.errors.LogError(fmt.Errorf("load local order %d: %w", localOrderID, err), models.JSONB{"local_order_id": localOrderID})
		return false, err
	}
	if local.RemoteOrderID == 0 {
		return false, fmt.Errorf("%w: order %d is not linked to a marketplace order", ErrInvalidInput, localOrderID)
	}

	remote, err := o.remote.FetchOrder(local.RemoteOrderID)
	if err != nil {
		return o.fail(OrderKey{LocalOrderID: local.ID, RemoteOrderID: local.RemoteOrderID}, local.ID,
			fmt.Errorf("fetch remote order %d: %w", local.RemoteOrderID, err))
	}
	return o.syncPair(local, remote)
}

// SyncRemote syncs by marketplace order id; the batch runner's per-order
// entry point.
func (o *Orchestrator) SyncRemote(remoteID int64) (bool, error) {
	remote, err := o.remote.FetchOrder(remoteID)
	if err != nil {
		o.errors.LogError(fmt.Errorf("fetch remote order %d: %w", remoteID, err), models.JSONB{"remote_order_id": remoteID})
		return false, err
	}

	local, err := o.local.GetOrderByRemoteID(remoteID)
	if err != nil {
		o.errors.LogError(fmt.Errorf("no local order for marketplace order %d: %w", remoteID, err), models.JSONB{"remote_order_id": remoteID})
		return false, err
	}
	return o.syncPair(local, remote)
}

func (o *Orchestrator) syncPair(local *models.StoreOrder, remote *marketplace.RemoteOrder) (ok bool, err error) {
	key := OrderKey{LocalOrderID: local.ID, RemoteOrderID: remote.ID}

	defer func() {
		if r := recover(); r != nil {
			ok, err = o.fail(key, local.ID, fmt.Errorf("panic during sync of %s: %v", key, r))
		}
	}()

	for _, ext := range o.extensions.All() {
		if !ext.ShouldSync(local, remote) {
			log.Printf("⏭️ sync of %s vetoed by extension %s", key, ext.Name())
			o.broadcast("sync:skipped", models.JSONB{"order_key": key.String(), "extension": ext.Name()})
			return false, nil
		}
	}

	diffs, err := Compare(local, remote)
	if err != nil {
		return o.fail(key, local.ID, err)
	}
	for _, ext := range o.extensions.All() {
		diffs = ext.OverrideComparison(key, diffs)
	}

	// Idempotence: an order already SYNCED with no new differences is
	// re-confirmed without touching state or history.
	cur, err := o.states.GetState(key)
	if err == nil && OrderState(cur.State) == StateSynced && len(diffs) == 0 {
		o.broadcast("sync:confirmed", models.JSONB{"order_key": key.String(), "state": string(StateSynced)})
		return true, nil
	}

	proceed, err := o.ensureReady(key, cur, err, len(diffs))
	if err != nil {
		return o.fail(key, local.ID, err)
	}
	if !proceed {
		return false, nil
	}

	inFlight := StateSyncing
	for _, ext := range o.extensions.All() {
		inFlight = ext.OverrideInitialState(key, inFlight)
	}
	if err := o.transition(key, inFlight, models.JSONB{"started_at": time.Now().UTC().Format(time.RFC3339)}); err != nil {
		return o.fail(key, local.ID, err)
	}

	if len(diffs) == 0 {
		return o.succeed(key, local.ID, nil)
	}

	res := o.resolver.Resolve(local, remote, diffs)

	if len(res.Manual) > 0 {
		return o.conflict(key, local.ID, res)
	}

	for field, rf := range res.Resolved {
		if err := applyField(local, field, rf.Value); err != nil {
			return o.fail(key, local.ID, fmt.Errorf("apply resolved %s: %w", field, err))
		}
		o.record(key, field, rf.Strategy, rf.Winner, rf.Reason, rf.Value)
	}
	if err := o.local.Persist(local); err != nil {
		return o.fail(key, local.ID, fmt.Errorf("persist local order: %w", err))
	}

	fields := make([]string, 0, len(res.Resolved))
	for field := range res.Resolved {
		fields = append(fields, field)
	}
	return o.succeed(key, local.ID, fields)
}

// ensureReady drives the key into PENDING so the SYNCING transition is
// legal. Returns false (no error) when the order must be skipped: terminal
// state, or another writer is mid-flight.
func (o *Orchestrator) ensureReady(key OrderKey, cur *models.OrderSyncState, getErr error, diffCount int) (bool, error) {
	if getErr != nil {
		if !errors.Is(getErr, ErrNotFound) {
			return false, getErr
		}
		return true, o.transition(key, StatePending, nil)
	}

	switch OrderState(cur.State) {
	case StatePending:
		return true, nil
	case StateSyncing:
		// Another trigger is mid-flight; the CAS would reject us anyway
		return false, nil
	case StateExcluded, StateCancelled:
		return false, nil
	case StateSynced:
		// New remote drift on a settled order: re-open through RECOVERED
		if err := o.transition(key, StateRecovered, models.JSONB{"reason": "remote drift detected", "diff_count": diffCount}); err != nil {
			return false, err
		}
		return true, o.transition(key, StatePending, nil)
	default: // FAILED, CONFLICT, RECOVERED
		return true, o.transition(key, StatePending, nil)
	}
}

func (o *Orchestrator) succeed(key OrderKey, localOrderID uint, resolvedFields []string) (bool, error) {
	target := StateSynced
	for _, ext := range o.extensions.All() {
		target = ext.OverrideSuccessState(key, target)
	}

	metadata := models.JSONB{"synced_at": time.Now().UTC().Format(time.RFC3339)}
	if len(resolvedFields) > 0 {
		metadata["resolved_fields"] = resolvedFields
	}
	if err := o.transition(key, target, metadata); err != nil {
		return o.fail(key, localOrderID, err)
	}

	log.Printf("✅ order %s synced", key)
	o.broadcast("sync:completed", models.JSONB{"order_key": key.String(), "state": string(target)})
	for _, ext := range o.extensions.All() {
		ext.OnSuccess(key, target)
	}
	return true, nil
}

// conflict routes an order with manual fields to CONFLICT. Not an error: an
// expected, modeled outcome. No automatic resolutions are applied alongside
// it, but every decision still lands in the resolution log: deferred fields
// with a "deferred" winner, co-resolved fields with their computed outcome.
func (o *Orchestrator) conflict(key OrderKey, localOrderID uint, res Resolution) (bool, error) {
	handled := false
	for _, ext := range o.extensions.All() {
		if ext.HandleConflict(key, res.Manual) {
			handled = true
		}
	}

	fields := make([]string, 0, len(res.Manual))
	for field, mc := range res.Manual {
		fields = append(fields, field)
		if !handled && o.manual != nil {
			if err := o.manual.Enqueue(key, field, mc.Local, mc.Remote, mc.Reason); err != nil {
				log.Printf("⚠️ manual queue enqueue failed for %s/%s: %v", key, field, err)
			}
		}
		o.record(key, field, string(StrategyManual), "deferred", mc.Reason, mc.Local)
	}
	for field, rf := range res.Resolved {
		o.record(key, field, rf.Strategy, rf.Winner, rf.Reason, rf.Value)
	}

	metadata := models.JSONB{
		"conflict_fields": fields,
		"conflict_count":  len(fields),
		"detected_at":     time.Now().UTC().Format(time.RFC3339),
	}
	if err := o.transition(key, StateConflict, metadata); err != nil {
		return o.fail(key, localOrderID, err)
	}

	if err := o.local.AddAuditNote(localOrderID, fmt.Sprintf("sync conflict on %d field(s), queued for manual review", len(fields))); err != nil {
		log.Printf("⚠️ audit note failed for order %d: %v", localOrderID, err)
	}

	log.Printf("⚠️ order %s in conflict: %d field(s) need review", key, len(fields))
	o.broadcast("sync:conflict", models.JSONB{"order_key": key.String(), "fields": fields})
	return false, nil
}

// fail is the single failure boundary: classify, log, transition to FAILED
// (best effort; the order may not be in a state that allows it), audit,
// notify extensions.
func (o *Orchestrator) fail(key OrderKey, localOrderID uint, cause error) (bool, error) {
	cat, _ := o.errors.LogError(cause, models.JSONB{"order_key": key.String()})

	target := StateFailed
	for _, ext := range o.extensions.All() {
		target = ext.OverrideErrorState(key, cause, target)
	}

	metadata := models.JSONB{
		"error":     cause.Error(),
		"code":      string(cat),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for _, ext := range o.extensions.All() {
		metadata = ext.EnrichMetadata(key, target, metadata)
	}
	if err := o.states.SetState(key, target, metadata); err != nil {
		// Leave state unresolved; recovery or the next trigger retries
		log.Printf("🛑 could not mark %s as %s: %v", key, target, err)
	}

	if localOrderID != 0 {
		if err := o.local.AddAuditNote(localOrderID, fmt.Sprintf("sync failed: %v", cause)); err != nil {
			log.Printf("⚠️ audit note failed for order %d: %v", localOrderID, err)
		}
	}

	o.broadcast("sync:failed", models.JSONB{"order_key": key.String(), "error": cause.Error()})
	for _, ext := range o.extensions.All() {
		ext.OnError(key, cause)
	}
	return false, cause
}

// transition funnels every state write through the extension metadata seam
func (o *Orchestrator) transition(key OrderKey, to OrderState, metadata models.JSONB) error {
	if metadata == nil {
		metadata = models.JSONB{}
	}
	for _, ext := range o.extensions.All() {
		metadata = ext.EnrichMetadata(key, to, metadata)
	}
	if err := o.states.SetState(key, to, metadata); err != nil {
		return err
	}
	o.broadcast("sync:state", models.JSONB{"order_key": key.String(), "state": string(to)})
	return nil
}

// record appends one decision to the resolution audit trail; a write failure
// never interrupts the sync.
func (o *Orchestrator) record(key OrderKey, field, strategy, winner, reason string, value interface{}) {
	if o.resolutions == nil {
		return
	}
	if err := o.resolutions.RecordResolution(key, field, strategy, winner, reason, value); err != nil {
		log.Printf("⚠️ resolution log write failed for %s/%s: %v", key, field, err)
	}
}

func (o *Orchestrator) broadcast(event string, data models.JSONB) {
	if o.events != nil {
		o.events.Broadcast(event, data)
	}
}

// applyField writes one resolved value back onto the local order. The setter
// table mirrors the comparator's field table.
func applyField(order *models.StoreOrder, field string, value interface{}) error {
	switch field {
	case FieldStatus:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: status value %T", ErrInvalidInput, value)
		}
		order.Status = models.OrderStatus(NormalizeRemoteStatus(s))

	case FieldTotalAmount, FieldShippingAmount, FieldTaxAmount, FieldDiscountAmount:
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("%w: %s value %T", ErrInvalidInput, field, value)
		}
		switch field {
		case FieldTotalAmount:
			order.TotalAmount = f
		case FieldShippingAmount:
			order.ShippingAmount = f
		case FieldTaxAmount:
			order.TaxAmount = f
		case FieldDiscountAmount:
			order.DiscountAmount = f
		}

	case FieldBillingAddress, FieldShippingAddress:
		m, err := asJSONB(value)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if field == FieldBillingAddress {
			order.BillingAddress = m
		} else {
			order.ShippingAddress = m
		}

	case FieldLineItems:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode line items: %w", err)
		}
		order.LineItems = datatypes.JSON(data)

	case FieldPaymentMethod:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: payment method value %T", ErrInvalidInput, value)
		}
		order.PaymentMethod = s

	case FieldCustomerNote:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: customer note value %T", ErrInvalidInput, value)
		}
		order.CustomerNote = s

	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asJSONB(v interface{}) (models.JSONB, error) {
	switch m := v.(type) {
	case nil:
		return models.JSONB{}, nil
	case models.JSONB:
		return m, nil
	case map[string]interface{}:
		return models.JSONB(m), nil
	default:
		return nil, fmt.Errorf("%w: address value %T", ErrInvalidInput, v)
	}
}
