package sync

import (
	"github.com/xelth-com/ordsyncgo/internal/marketplace"
	"github.com/xelth-com/ordsyncgo/internal/models"
)

// FieldOutcome is the tagged result of resolving one field. Either the field
// resolved automatically (Value carries the winner) or it needs a human
// (NeedsManual set, Value holds the prior local value as a placeholder).
type FieldOutcome struct {
	NeedsManual bool
	Value       interface{}
	Strategy    StrategyKind
	Winner      string // local, remote
	Reason      string
}

// ResolvedField is one automatically resolved field in a Resolution
type ResolvedField struct {
	Value    interface{} `json:"value"`
	Strategy string      `json:"strategy"`
	Winner   string      `json:"winner"`
	Reason   string      `json:"reason"`
}

// ManualConflict is one field deferred to human review
type ManualConflict struct {
	Local  interface{} `json:"local"`
	Remote interface{} `json:"remote"`
	Reason string      `json:"reason"`
}

// Resolution is the resolved/manual split for one order's differences
type Resolution struct {
	Resolved map[string]ResolvedField
	Manual   map[string]ManualConflict
}

// Resolver applies a Policy to a comparator diff. Pure and deterministic:
// identical inputs always produce an identical resolved/manual split.
type Resolver struct {
	policy *Policy
}

// NewResolver creates a resolver; a nil policy gets the shipped defaults
func NewResolver(policy *Policy) *Resolver {
	if policy == nil {
		policy = DefaultPolicy(DefaultTotalThreshold)
	}
	return &Resolver{policy: policy}
}

// Resolve decides every differing field. No side effects: enqueueing manual
// conflicts and writing resolution-log rows is the orchestrator's job.
func (r *Resolver) Resolve(local *models.StoreOrder, remote *marketplace.RemoteOrder, diffs map[string]FieldDiff) Resolution {
	res := Resolution{
		Resolved: make(map[string]ResolvedField),
		Manual:   make(map[string]ManualConflict),
	}

	for field, diff := range diffs {
		outcome := r.resolveField(field, diff, local, remote)
		if outcome.NeedsManual {
			res.Manual[field] = ManualConflict{
				Local:  diff.Local,
				Remote: diff.Remote,
				Reason: outcome.Reason,
			}
			continue
		}
		res.Resolved[field] = ResolvedField{
			Value:    outcome.Value,
			Strategy: string(outcome.Strategy),
			Winner:   outcome.Winner,
			Reason:   outcome.Reason,
		}
	}
	return res
}

func (r *Resolver) resolveField(field string, diff FieldDiff, local *models.StoreOrder, remote *marketplace.RemoteOrder) FieldOutcome {
	strategy, reason := r.policy.StrategyFor(field, local, remote)
	return applyStrategy(strategy, reason, diff, local, remote)
}

func applyStrategy(strategy StrategyKind, reason string, diff FieldDiff, local *models.StoreOrder, remote *marketplace.RemoteOrder) FieldOutcome {
	switch strategy {
	case StrategyRemoteWins:
		return FieldOutcome{Value: diff.Remote, Strategy: strategy, Winner: "remote", Reason: reason}

	case StrategyLocalWins:
		return FieldOutcome{Value: diff.Local, Strategy: strategy, Winner: "local", Reason: reason}

	case StrategyNewerWins:
		return newerWins(strategy, reason, diff, local, remote)

	case StrategyKeepComplete:
		return keepComplete(reason, diff, local, remote)

	case StrategyManual:
		// Prior local value stays in place until a human decides
		return FieldOutcome{NeedsManual: true, Value: diff.Local, Strategy: strategy, Reason: reason}

	default:
		return FieldOutcome{Value: diff.Remote, Strategy: StrategyRemoteWins, Winner: "remote", Reason: "default source of truth"}
	}
}

// newerWins compares last-modified timestamps. A remote record without a
// timestamp cannot prove it is newer, so the local side wins.
func newerWins(strategy StrategyKind, reason string, diff FieldDiff, local *models.StoreOrder, remote *marketplace.RemoteOrder) FieldOutcome {
	if remote.UpdatedAt.IsZero() || !remote.UpdatedAt.After(local.UpdatedAt) {
		return FieldOutcome{Value: diff.Local, Strategy: strategy, Winner: "local", Reason: reason}
	}
	return FieldOutcome{Value: diff.Remote, Strategy: strategy, Winner: "remote", Reason: reason}
}

// keepComplete picks whichever side has no empty-or-zero-like sub-values.
// Both or neither complete falls back to the newer side.
func keepComplete(reason string, diff FieldDiff, local *models.StoreOrder, remote *marketplace.RemoteOrder) FieldOutcome {
	localComplete := isComplete(diff.Local)
	remoteComplete := isComplete(diff.Remote)

	switch {
	case localComplete && !remoteComplete:
		return FieldOutcome{Value: diff.Local, Strategy: StrategyKeepComplete, Winner: "local", Reason: reason}
	case remoteComplete && !localComplete:
		return FieldOutcome{Value: diff.Remote, Strategy: StrategyKeepComplete, Winner: "remote", Reason: reason}
	default:
		out := newerWins(StrategyKeepComplete, reason, diff, local, remote)
		out.Strategy = StrategyKeepComplete
		return out
	}
}

// isComplete walks a value recursively: a composite is complete when it is
// non-empty and every sub-value is complete; scalars are complete when they
// are not the zero value of their kind.
func isComplete(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case bool:
		return true
	case map[string]interface{}:
		if len(val) == 0 {
			return false
		}
		for _, sub := range val {
			if !isComplete(sub) {
				return false
			}
		}
		return true
	case models.JSONB:
		return isComplete(map[string]interface{}(val))
	case []interface{}:
		if len(val) == 0 {
			return false
		}
		for _, sub := range val {
			if !isComplete(sub) {
				return false
			}
		}
		return true
	case []map[string]interface{}:
		if len(val) == 0 {
			return false
		}
		for _, sub := range val {
			if !isComplete(sub) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
