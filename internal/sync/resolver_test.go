package sync

import (
	"reflect"
	"testing"
	"time"

	"github.com/xelth-com/ordsyncgo/internal/models"
)

func TestResolver_LocalCompletedBeatsRemoteProcessing(t *testing.T) {
	local, remote := testPair(t)
	local.Status = "completed"
	remote.Status = "processing"

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(diffs) != 1 {
		t.Fatalf("expected only the status difference, got %v", diffs)
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)

	if len(res.Manual) != 0 {
		t.Fatalf("expected no manual entries, got %v", res.Manual)
	}
	rf, ok := res.Resolved[FieldStatus]
	if !ok {
		t.Fatal("status should be resolved")
	}
	if rf.Value != "completed" {
		t.Errorf("expected local completed to win, got %v", rf.Value)
	}
	if rf.Strategy != string(StrategyLocalWins) {
		t.Errorf("expected LOCAL_WINS, got %s", rf.Strategy)
	}
}

func TestResolver_LargeTotalGapGoesToManual(t *testing.T) {
	local, remote := testPair(t)
	local.TotalAmount = 100.00
	remote.TotalAmount = 105.00

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)

	mc, ok := res.Manual[FieldTotalAmount]
	if !ok {
		t.Fatal("total_amount should be routed to manual review")
	}
	if mc.Local != 100.00 || mc.Remote != 105.00 {
		t.Errorf("manual entry should carry both raw values, got %v / %v", mc.Local, mc.Remote)
	}
	if _, ok := res.Resolved[FieldTotalAmount]; ok {
		t.Error("a manual field must not also be auto-resolved")
	}
}

func TestResolver_SmallTotalGapResolvesAutomatically(t *testing.T) {
	local, remote := testPair(t)
	local.TotalAmount = 100.00
	remote.TotalAmount = 100.50

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)

	if len(res.Manual) != 0 {
		t.Fatalf("gap under threshold should not need review, got %v", res.Manual)
	}
	rf := res.Resolved[FieldTotalAmount]
	if rf.Value != 100.50 {
		t.Errorf("remote total should win by default, got %v", rf.Value)
	}
}

func TestResolver_KeepCompletePicksCompleteAddress(t *testing.T) {
	local, remote := testPair(t)
	incomplete := testAddress()
	incomplete["city"] = ""
	local.BillingAddress = models.JSONB(incomplete)

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if _, ok := diffs[FieldBillingAddress]; !ok {
		t.Fatal("expected a billing address difference")
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)

	rf, ok := res.Resolved[FieldBillingAddress]
	if !ok {
		t.Fatal("billing address should resolve automatically")
	}
	if rf.Strategy != string(StrategyKeepComplete) {
		t.Errorf("expected KEEP_COMPLETE, got %s", rf.Strategy)
	}
	if rf.Winner != "remote" {
		t.Errorf("the complete remote address should win, got %s", rf.Winner)
	}
}

func TestResolver_LocalCancelledNeedsReview(t *testing.T) {
	local, remote := testPair(t)
	local.Status = "cancelled"
	remote.Status = "processing"

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)
	if _, ok := res.Manual[FieldStatus]; !ok {
		t.Error("status divergence on a cancelled order must go to manual review")
	}
}

func TestResolver_RemoteQuantityExcessNeedsReview(t *testing.T) {
	local, remote := testPair(t)
	remote.Items[0].Quantity = 5

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)
	if _, ok := res.Manual[FieldLineItems]; !ok {
		t.Error("remote quantity above local allocation must go to manual review")
	}
}

func TestResolver_NewerWinsFallsBackToLocalWithoutRemoteTimestamp(t *testing.T) {
	local, remote := testPair(t)
	local.CustomerNote = "ring twice"
	remote.CustomerNote = "leave at gate"
	remote.UpdatedAt = remote.UpdatedAt.AddDate(-10, 0, 0) // older than local

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	res := NewResolver(DefaultPolicy(1.00)).Resolve(local, remote, diffs)
	if rf := res.Resolved[FieldCustomerNote]; rf.Winner != "local" {
		t.Errorf("older remote note should lose, got winner %s", rf.Winner)
	}

	// A remote record with no timestamp at all cannot prove it is newer
	local2, remote2 := testPair(t)
	local2.CustomerNote = "ring twice"
	remote2.CustomerNote = "leave at gate"
	remote2.UpdatedAt = time.Time{}

	diffs2, err := Compare(local2, remote2)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	res2 := NewResolver(DefaultPolicy(1.00)).Resolve(local2, remote2, diffs2)
	if rf := res2.Resolved[FieldCustomerNote]; rf.Winner != "local" {
		t.Errorf("remote without timestamp should lose, got winner %s", rf.Winner)
	}
}

func TestResolver_Deterministic(t *testing.T) {
	local, remote := testPair(t)
	local.Status = "cancelled"
	local.TotalAmount = 100.00
	remote.TotalAmount = 107.00
	remote.CustomerNote = "changed"

	diffs, err := Compare(local, remote)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	resolver := NewResolver(DefaultPolicy(1.00))
	first := resolver.Resolve(local, remote, diffs)
	for i := 0; i < 10; i++ {
		again := resolver.Resolve(local, remote, diffs)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("resolution is not deterministic: %v vs %v", first, again)
		}
	}
}

func TestResolver_UnknownFieldDefaultsToRemote(t *testing.T) {
	local, remote := testPair(t)
	diffs := map[string]FieldDiff{
		"gift_wrap": {Local: false, Remote: true},
	}

	res := NewResolver(NewPolicy()).Resolve(local, remote, diffs)
	rf, ok := res.Resolved["gift_wrap"]
	if !ok {
		t.Fatal("unknown field should still resolve")
	}
	if rf.Winner != "remote" || rf.Reason != "default source of truth" {
		t.Errorf("unknown field should fall back to remote as source of truth, got %+v", rf)
	}
}
