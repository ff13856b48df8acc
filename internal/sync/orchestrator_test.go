package sync

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/errlog"
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// ---- in-memory fakes for the orchestrator's collaborators ----

type fakeRemote struct {
	orders  map[int64]*marketplace.RemoteOrder
	listed  []marketplace.RemoteOrder
	listErr error
}

func (f *fakeRemote) FetchOrder(remoteID int64) (*marketplace.RemoteOrder, error) {
	o, ok := f.orders[remoteID]
	if !ok {
		return nil, marketplace.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeRemote) ListOrders(from, to time.Time) ([]marketplace.RemoteOrder, error) {
	return f.listed, f.listErr
}

type fakeLocal struct {
	orders     map[uint]*models.StoreOrder
	notes      []string
	persisted  int
	persistErr error
}

func (f *fakeLocal) GetOrder(id uint) (*models.StoreOrder, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return o, nil
}

func (f *fakeLocal) GetOrderByRemoteID(remoteID int64) (*models.StoreOrder, error) {
	for _, o := range f.orders {
		if o.RemoteOrderID == remoteID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: no order linked to %d", ErrNotFound, remoteID)
}

func (f *fakeLocal) Persist(order *models.StoreOrder) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted++
	f.orders[order.ID] = order
	return nil
}

func (f *fakeLocal) AddAuditNote(orderID uint, note string) error {
	f.notes = append(f.notes, note)
	return nil
}

// memStates is an in-memory StateRepository enforcing the same transition
// rules as the durable store
type memStates struct {
	machine *StateMachine
	current map[OrderKey]*models.OrderSyncState
	history map[OrderKey][]models.OrderSyncHistory
}

func newMemStates() *memStates {
	return &memStates{
		machine: NewStateMachine(),
		current: make(map[OrderKey]*models.OrderSyncState),
		history: make(map[OrderKey][]models.OrderSyncHistory),
	}
}

func (m *memStates) GetState(key OrderKey) (*models.OrderSyncState, error) {
	cur, ok := m.current[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cur, nil
}

func (m *memStates) SetState(key OrderKey, to OrderState, metadata models.JSONB) error {
	cur, ok := m.current[key]
	if !ok {
		if to != m.machine.InitialState() {
			return fmt.Errorf("%w: fresh key must start in %s", ErrInvalidTransition, m.machine.InitialState())
		}
		m.current[key] = &models.OrderSyncState{
			LocalOrderID:  key.LocalOrderID,
			RemoteOrderID: key.RemoteOrderID,
			State:         string(to),
			Metadata:      metadata,
			CreatedAt:     time.Now().UTC(),
		}
		return nil
	}

	if !m.machine.IsValidTransition(OrderState(cur.State), to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.State, to)
	}
	m.history[key] = append(m.history[key], models.OrderSyncHistory{
		LocalOrderID:  cur.LocalOrderID,
		RemoteOrderID: cur.RemoteOrderID,
		State:         cur.State,
		Metadata:      cur.Metadata,
		CreatedAt:     cur.CreatedAt,
		ArchivedAt:    time.Now().UTC(),
	})
	cur.State = string(to)
	cur.Metadata = metadata
	return nil
}

func (m *memStates) GetHistory(key OrderKey) ([]models.OrderSyncHistory, error) {
	return m.history[key], nil
}

type fakeReporter struct {
	logged []string
}

func (f *fakeReporter) Log(cat errlog.Category, sev errlog.Severity, msg string, ctx models.JSONB) {
	f.logged = append(f.logged, fmt.Sprintf("%s/%s: %s", cat, sev, msg))
}

func (f *fakeReporter) LogError(err error, ctx models.JSONB) (errlog.Category, errlog.Severity) {
	cat := errlog.Classify(err)
	sev := errlog.SeverityFor(cat, err.Error())
	f.Log(cat, sev, err.Error(), ctx)
	return cat, sev
}

type queuedConflict struct {
	key    OrderKey
	field  string
	reason string
}

type fakeManualQueue struct {
	entries []queuedConflict
}

func (f *fakeManualQueue) Enqueue(key OrderKey, field string, localValue, remoteValue interface{}, reason string) error {
	f.entries = append(f.entries, queuedConflict{key: key, field: field, reason: reason})
	return nil
}

type recordedResolution struct {
	field    string
	strategy string
	winner   string
}

type fakeResolutionLog struct {
	rows []recordedResolution
}

func (f *fakeResolutionLog) RecordResolution(key OrderKey, field, strategy, winner, reason string, value interface{}) error {
	f.rows = append(f.rows, recordedResolution{field: field, strategy: strategy, winner: winner})
	return nil
}

type testHarness struct {
	remote      *fakeRemote
	local       *fakeLocal
	states      *memStates
	reporter    *fakeReporter
	manual      *fakeManualQueue
	resolutions *fakeResolutionLog
	orch        *Orchestrator
}

func newHarness(t *testing.T, extensions *ExtensionRegistry) *testHarness {
	t.Helper()
	localOrder, remoteOrder := testPair(t)

	h := &testHarness{
		remote:      &fakeRemote{orders: map[int64]*marketplace.RemoteOrder{remoteOrder.ID: remoteOrder}},
		local:       &fakeLocal{orders: map[uint]*models.StoreOrder{localOrder.ID: localOrder}},
		states:      newMemStates(),
		reporter:    &fakeReporter{},
		manual:      &fakeManualQueue{},
		resolutions: &fakeResolutionLog{},
	}
	h.orch = NewOrchestrator(h.remote, h.local, h.states,
		NewResolver(DefaultPolicy(1.00)), h.reporter, h.manual, h.resolutions, nil, extensions)
	return h
}

func (h *testHarness) stateOf(t *testing.T, key OrderKey) string {
	t.Helper()
	cur, err := h.states.GetState(key)
	if err != nil {
		t.Fatalf("no state for %s: %v", key, err)
	}
	return cur.State
}

var testKey = OrderKey{LocalOrderID: 1, RemoteOrderID: 5001}

// ---- tests ----

func TestOrchestrator_CleanOrderSyncs(t *testing.T) {
	h := newHarness(t, nil)

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("SyncOrder failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the order to sync")
	}
	if got := h.stateOf(t, testKey); got != string(StateSynced) {
		t.Errorf("expected SYNCED, got %s", got)
	}

	// PENDING and SYNCING were archived on the way
	history, _ := h.states.GetHistory(testKey)
	if len(history) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(history))
	}
}

func TestOrchestrator_SecondCallIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.orch.SyncOrder(1); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	before, _ := h.states.GetHistory(testKey)

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if !ok {
		t.Fatal("re-confirming a SYNCED order should report success")
	}

	after, _ := h.states.GetHistory(testKey)
	if len(after) != len(before) {
		t.Errorf("re-confirmation must not write history: %d -> %d rows", len(before), len(after))
	}
	if got := h.stateOf(t, testKey); got != string(StateSynced) {
		t.Errorf("expected SYNCED, got %s", got)
	}
}

func TestOrchestrator_ManualConflictStopsTheSync(t *testing.T) {
	h := newHarness(t, nil)
	h.local.orders[1].TotalAmount = 100.00
	h.remote.orders[5001].TotalAmount = 105.00

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("conflicts are modeled outcomes, not errors: %v", err)
	}
	if ok {
		t.Fatal("a conflicted order must not report success")
	}
	if got := h.stateOf(t, testKey); got != string(StateConflict) {
		t.Errorf("expected CONFLICT, got %s", got)
	}

	if len(h.manual.entries) != 1 || h.manual.entries[0].field != FieldTotalAmount {
		t.Errorf("expected the total to be queued for review, got %v", h.manual.entries)
	}

	// No partial application: the local order is untouched
	if h.local.persisted != 0 {
		t.Error("conflicted orders must not be persisted")
	}
	if h.local.orders[1].TotalAmount != 100.00 {
		t.Errorf("local total must keep its prior value, got %v", h.local.orders[1].TotalAmount)
	}
	if len(h.local.notes) == 0 {
		t.Error("a conflict should leave an audit note on the order")
	}

	// The deferral itself is part of the audit trail
	if len(h.resolutions.rows) != 1 {
		t.Fatalf("expected one resolution log row, got %d", len(h.resolutions.rows))
	}
	row := h.resolutions.rows[0]
	if row.field != FieldTotalAmount || row.strategy != string(StrategyManual) || row.winner != "deferred" {
		t.Errorf("unexpected resolution row %+v", row)
	}
}

func TestOrchestrator_ConflictPathLogsCoResolvedFields(t *testing.T) {
	h := newHarness(t, nil)
	h.local.orders[1].TotalAmount = 100.00
	h.remote.orders[5001].TotalAmount = 105.00 // over the threshold, deferred
	h.remote.orders[5001].CustomerNote = "call before delivery"

	ok, err := h.orch.SyncOrder(1)
	if err != nil || ok {
		t.Fatalf("expected a conflict outcome, got ok=%v err=%v", ok, err)
	}
	if got := h.stateOf(t, testKey); got != string(StateConflict) {
		t.Fatalf("expected CONFLICT, got %s", got)
	}

	// Nothing was applied, but both decisions are on record
	if h.local.persisted != 0 {
		t.Error("conflicted orders must not be persisted")
	}
	if len(h.resolutions.rows) != 2 {
		t.Fatalf("expected 2 resolution log rows, got %d", len(h.resolutions.rows))
	}
	byField := make(map[string]recordedResolution)
	for _, row := range h.resolutions.rows {
		byField[row.field] = row
	}
	if row := byField[FieldTotalAmount]; row.strategy != string(StrategyManual) || row.winner != "deferred" {
		t.Errorf("unexpected total_amount row %+v", row)
	}
	if row := byField[FieldCustomerNote]; row.strategy != string(StrategyNewerWins) || row.winner != "remote" {
		t.Errorf("unexpected customer_note row %+v", row)
	}
	if h.local.orders[1].CustomerNote == "call before delivery" {
		t.Error("a co-resolved field must not be applied while the order is in conflict")
	}
}

func TestOrchestrator_AutomaticResolutionApplies(t *testing.T) {
	h := newHarness(t, nil)
	h.local.orders[1].TotalAmount = 100.00
	h.remote.orders[5001].TotalAmount = 100.40 // under the 1.00 threshold

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("SyncOrder failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the order to sync")
	}

	if h.local.orders[1].TotalAmount != 100.40 {
		t.Errorf("remote total should be applied, got %v", h.local.orders[1].TotalAmount)
	}
	if h.local.persisted != 1 {
		t.Errorf("expected exactly one persist, got %d", h.local.persisted)
	}

	if len(h.resolutions.rows) != 1 {
		t.Fatalf("expected one resolution log row, got %d", len(h.resolutions.rows))
	}
	row := h.resolutions.rows[0]
	if row.field != FieldTotalAmount || row.strategy != string(StrategyRemoteWins) || row.winner != "remote" {
		t.Errorf("unexpected resolution row %+v", row)
	}
}

func TestOrchestrator_PersistFailureMarksFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.local.orders[1].TotalAmount = 100.00
	h.remote.orders[5001].TotalAmount = 100.40
	h.local.persistErr = errors.New("database connection lost")

	ok, err := h.orch.SyncOrder(1)
	if err == nil {
		t.Fatal("expected the persist failure to surface")
	}
	if ok {
		t.Fatal("a failed sync must not report success")
	}

	if got := h.stateOf(t, testKey); got != string(StateFailed) {
		t.Errorf("expected FAILED, got %s", got)
	}
	cur, _ := h.states.GetState(testKey)
	if cur.Metadata["error"] == nil || cur.Metadata["code"] == nil || cur.Metadata["timestamp"] == nil {
		t.Errorf("FAILED metadata must carry error, code and timestamp, got %v", cur.Metadata)
	}
	if len(h.reporter.logged) == 0 {
		t.Error("the failure should be classified and logged")
	}
}

type vetoExtension struct {
	BaseExtension
}

func (vetoExtension) Name() string { return "veto" }
func (vetoExtension) ShouldSync(*models.StoreOrder, *marketplace.RemoteOrder) bool {
	return false
}

func TestOrchestrator_ExtensionVetoSkipsWithoutState(t *testing.T) {
	reg := NewExtensionRegistry()
	reg.Register(vetoExtension{})
	h := newHarness(t, reg)

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("a veto is not an error: %v", err)
	}
	if ok {
		t.Fatal("a vetoed order must not report success")
	}
	if _, err := h.states.GetState(testKey); !errors.Is(err, ErrNotFound) {
		t.Error("a vetoed order should leave no state behind")
	}
}

func TestOrchestrator_RemoteDriftReopensSyncedOrder(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.orch.SyncOrder(1); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The marketplace later edits the note
	h.remote.orders[5001].CustomerNote = "updated instructions"
	h.remote.orders[5001].UpdatedAt = time.Now().UTC()

	ok, err := h.orch.SyncOrder(1)
	if err != nil {
		t.Fatalf("re-sync failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the drifted order to sync again")
	}

	if got := h.stateOf(t, testKey); got != string(StateSynced) {
		t.Errorf("expected SYNCED, got %s", got)
	}
	if h.local.orders[1].CustomerNote != "updated instructions" {
		t.Errorf("remote note should be applied, got %q", h.local.orders[1].CustomerNote)
	}

	// The reopening went through RECOVERED and PENDING
	history, _ := h.states.GetHistory(testKey)
	var sawRecovered bool
	for _, row := range history {
		if row.State == string(StateRecovered) {
			sawRecovered = true
		}
	}
	if !sawRecovered {
		t.Error("reopening a SYNCED order should pass through RECOVERED")
	}
}

func TestBulkSetState_LengthMismatchWritesNothing(t *testing.T) {
	store := NewStateStore(nil, NewStateMachine(), &fakeReporter{}, 0, 0)

	_, err := store.BulkSetState([]uint{1, 2, 3}, []int64{10, 20}, StateCancelled, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for paired-ID mismatch, got %v", err)
	}
}
