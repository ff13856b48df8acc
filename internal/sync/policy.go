package sync

import (
	"github.com/shopspring/decimal"
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// StrategyKind selects how a differing field is resolved
type StrategyKind string

const (
	StrategyRemoteWins   StrategyKind = "REMOTE_WINS"
	StrategyLocalWins    StrategyKind = "LOCAL_WINS"
	StrategyNewerWins    StrategyKind = "NEWER_WINS"
	StrategyKeepComplete StrategyKind = "KEEP_COMPLETE"
	StrategyManual       StrategyKind = "MANUAL"
)

// DefaultTotalThreshold is the maximum total-amount divergence (in currency
// units) resolved automatically; larger gaps go to a human.
const DefaultTotalThreshold = 1.00

// Predicate is one override condition. It sees both full order records so it
// can reason across fields, not just the differing one.
type Predicate func(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool

// Override is a conditional strategy replacement. Overrides are evaluated in
// declared order; the first matching predicate wins.
type Override struct {
	Name     string
	When     Predicate
	Strategy StrategyKind
	Reason   string
}

// FieldStrategy is the policy table entry for one field
type FieldStrategy struct {
	Default   StrategyKind
	Reason    string
	Overrides []Override
}

// Policy is the declarative strategy table. Built once at startup and read
// concurrently by the resolver; mutate only during wiring.
type Policy struct {
	fields map[string]FieldStrategy
}

// NewPolicy returns an empty table. Every lookup on it falls back to
// REMOTE_WINS.
func NewPolicy() *Policy {
	return &Policy{fields: make(map[string]FieldStrategy)}
}

// SetFieldStrategy installs or replaces the table entry for a field
func (p *Policy) SetFieldStrategy(field string, fs FieldStrategy) {
	p.fields[field] = fs
}

// StrategyFor decides the strategy for one differing field: table default,
// then overrides in order. Fields without an entry default to REMOTE_WINS —
// the marketplace is the default source of truth.
func (p *Policy) StrategyFor(field string, local *models.StoreOrder, remote *marketplace.RemoteOrder) (StrategyKind, string) {
	fs, ok := p.fields[field]
	if !ok {
		return StrategyRemoteWins, "default source of truth"
	}

	strategy, reason := fs.Default, fs.Reason
	for _, ov := range fs.Overrides {
		if ov.When(local, remote) {
			return ov.Strategy, ov.Reason
		}
	}
	return strategy, reason
}

// requiredAddressFields are the subfields an address must carry to count as
// complete for the KEEP_COMPLETE override.
var requiredAddressFields = []string{"first_name", "last_name", "address_1", "city", "country"}

// DefaultPolicy builds the shipped strategy table. totalThreshold bounds the
// total-amount gap resolved automatically; <= 0 falls back to
// DefaultTotalThreshold.
func DefaultPolicy(totalThreshold float64) *Policy {
	if totalThreshold <= 0 {
		totalThreshold = DefaultTotalThreshold
	}

	p := NewPolicy()

	p.SetFieldStrategy(FieldStatus, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace drives order lifecycle",
		Overrides: []Override{
			{
				Name:     "local_completed_remote_processing",
				When:     localCompletedRemoteProcessing,
				Strategy: StrategyLocalWins,
				Reason:   "local fulfilment already finished, let it stand",
			},
			{
				Name:     "local_cancelled",
				When:     localCancelled,
				Strategy: StrategyManual,
				Reason:   "locally cancelled order diverged, needs review",
			},
		},
	})

	p.SetFieldStrategy(FieldTotalAmount, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace invoices the order",
		Overrides: []Override{
			{
				Name:     "total_gap_exceeds_threshold",
				When:     totalGapExceeds(totalThreshold),
				Strategy: StrategyManual,
				Reason:   "total difference exceeds threshold",
			},
		},
	})

	p.SetFieldStrategy(FieldShippingAmount, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace invoices the order",
	})
	p.SetFieldStrategy(FieldTaxAmount, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace invoices the order",
	})
	p.SetFieldStrategy(FieldDiscountAmount, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace invoices the order",
	})

	addressOverride := func(pick func(*models.StoreOrder) models.JSONB, pickRemote func(*marketplace.RemoteOrder) map[string]interface{}) Predicate {
		return func(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool {
			return addressIncomplete(map[string]interface{}(pick(local))) ||
				addressIncomplete(pickRemote(remote))
		}
	}

	p.SetFieldStrategy(FieldBillingAddress, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace holds the buyer record",
		Overrides: []Override{
			{
				Name: "billing_address_incomplete",
				When: addressOverride(
					func(o *models.StoreOrder) models.JSONB { return o.BillingAddress },
					func(r *marketplace.RemoteOrder) map[string]interface{} { return r.BillingAddress },
				),
				Strategy: StrategyKeepComplete,
				Reason:   "one side is missing required address fields",
			},
		},
	})

	p.SetFieldStrategy(FieldShippingAddress, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace holds the buyer record",
		Overrides: []Override{
			{
				Name: "shipping_address_incomplete",
				When: addressOverride(
					func(o *models.StoreOrder) models.JSONB { return o.ShippingAddress },
					func(r *marketplace.RemoteOrder) map[string]interface{} { return r.ShippingAddress },
				),
				Strategy: StrategyKeepComplete,
				Reason:   "one side is missing required address fields",
			},
		},
	})

	p.SetFieldStrategy(FieldLineItems, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace owns the order contents",
		Overrides: []Override{
			{
				Name:     "remote_quantity_exceeds_local",
				When:     remoteQuantityExceedsLocal,
				Strategy: StrategyManual,
				Reason:   "remote quantity exceeds local stock allocation",
			},
		},
	})

	p.SetFieldStrategy(FieldPaymentMethod, FieldStrategy{
		Default: StrategyRemoteWins,
		Reason:  "marketplace processed the payment",
	})

	p.SetFieldStrategy(FieldCustomerNote, FieldStrategy{
		Default: StrategyNewerWins,
		Reason:  "latest edit wins for free-text notes",
	})

	return p
}

func localCompletedRemoteProcessing(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool {
	return NormalizeLocalStatus(local.Status) == "completed" &&
		NormalizeRemoteStatus(remote.Status) == "processing"
}

func localCancelled(local *models.StoreOrder, _ *marketplace.RemoteOrder) bool {
	return NormalizeLocalStatus(local.Status) == "cancelled"
}

// totalGapExceeds compares totals in decimal space so the threshold check is
// exact at 2 decimal places.
func totalGapExceeds(threshold float64) Predicate {
	limit := decimal.NewFromFloat(threshold)
	return func(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool {
		gap := decimal.NewFromFloat(local.TotalAmount).
			Sub(decimal.NewFromFloat(remote.TotalAmount)).
			Abs().Round(2)
		return gap.GreaterThan(limit)
	}
}

func addressIncomplete(addr map[string]interface{}) bool {
	if len(addr) == 0 {
		return true
	}
	for _, field := range requiredAddressFields {
		v, ok := addr[field]
		if !ok {
			return true
		}
		if s, isStr := v.(string); !isStr || s == "" {
			return true
		}
	}
	return false
}

// remoteQuantityExceedsLocal flags orders where the marketplace claims more
// units of a product than the local order allocated.
func remoteQuantityExceedsLocal(local *models.StoreOrder, remote *marketplace.RemoteOrder) bool {
	localQty := make(map[int64]float64)
	for _, line := range LocalLineItems(local) {
		pid, _ := line["product_id"].(float64)
		qty, _ := line["quantity"].(float64)
		localQty[int64(pid)] += qty
	}

	for _, item := range remote.Items {
		if float64(item.Quantity) > localQty[item.ProductID] {
			return true
		}
	}
	return false
}
