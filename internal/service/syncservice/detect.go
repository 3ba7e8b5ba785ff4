package syncservice

import "github.com/taskmesh/taskmesh-api/internal/vclock"

// Outcome classifies an incoming change against stored server state.
type Outcome int

const (
	// OutcomeDrop means the incoming change is causally older and is
	// silently discarded.
	OutcomeDrop Outcome = iota
	// OutcomeNoop means the clocks are equal; nothing new to apply
	// beyond refreshed attribution.
	OutcomeNoop
	// OutcomeAccept means the incoming change supersedes the stored
	// state and overwrites it.
	OutcomeAccept
	// OutcomeConflict means the edits are concurrent; the resolver
	// decides between auto-merge and manual resolution.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDrop:
		return "drop"
	case OutcomeNoop:
		return "noop"
	case OutcomeAccept:
		return "accept"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// DetectConflict maps the causal relation between an incoming clock and
// the stored clock onto the push decision.
func DetectConflict(incoming, server vclock.Clock) Outcome {
	switch incoming.Compare(server) {
	case vclock.Before:
		return OutcomeDrop
	case vclock.Equal:
		return OutcomeNoop
	case vclock.After:
		return OutcomeAccept
	default:
		return OutcomeConflict
	}
}
