package executor

import "github.com/sentinelops/sentinel/pkg/types"

// actionTransitions encodes the one-directional action lifecycle, §4.11:
// pending_approval -> approved -> executing -> {succeeded, failed,
// rolled_back}, with skipped reachable from pending_approval, approved or
// executing when rollback isn't applicable.
var actionTransitions = map[types.ActionStatus]map[types.ActionStatus]bool{
	types.ActionStatusPendingApproval: {
		types.ActionStatusApproved: true,
		types.ActionStatusSkipped:  true,
	},
	types.ActionStatusApproved: {
		types.ActionStatusExecuting: true,
		types.ActionStatusSkipped:   true,
	},
	types.ActionStatusExecuting: {
		types.ActionStatusSucceeded:  true,
		types.ActionStatusFailed:     true,
		types.ActionStatusRolledBack: true,
		types.ActionStatusSkipped:    true,
	},
}

// CanTransitionAction reports whether moving an action from `from` to `to`
// is allowed by the state machine.
func CanTransitionAction(from, to types.ActionStatus) bool {
	if from == to {
		return false
	}
	allowed, ok := actionTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// IsActionTerminal reports whether status is a terminal action state.
func IsActionTerminal(status types.ActionStatus) bool {
	switch status {
	case types.ActionStatusSucceeded, types.ActionStatusFailed, types.ActionStatusRolledBack, types.ActionStatusSkipped:
		return true
	default:
		return false
	}
}
