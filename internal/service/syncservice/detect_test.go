package syncservice

import (
	"testing"

	"github.com/taskmesh/taskmesh-api/internal/vclock"
)

func TestDetectConflict(t *testing.T) {
	tests := []struct {
		name     string
		incoming vclock.Clock
		server   vclock.Clock
		want     Outcome
	}{
		{
			name:     "equal clocks noop",
			incoming: vclock.Clock{"A": 1},
			server:   vclock.Clock{"A": 1},
			want:     OutcomeNoop,
		},
		{
			name:     "client behind drops",
			incoming: vclock.Clock{"A": 1},
			server:   vclock.Clock{"A": 2},
			want:     OutcomeDrop,
		},
		{
			name:     "client ahead accepts",
			incoming: vclock.Clock{"A": 2, "B": 1},
			server:   vclock.Clock{"A": 1},
			want:     OutcomeAccept,
		},
		{
			name:     "concurrent conflicts",
			incoming: vclock.Clock{"D": 3},
			server:   vclock.Clock{"S": 5},
			want:     OutcomeConflict,
		},
		{
			name:     "empty incoming against state drops",
			incoming: vclock.Clock{},
			server:   vclock.Clock{"A": 1},
			want:     OutcomeDrop,
		},
		{
			name:     "both empty noop",
			incoming: vclock.Clock{},
			server:   vclock.Clock{},
			want:     OutcomeNoop,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectConflict(tt.incoming, tt.server); got != tt.want {
				t.Errorf("DetectConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
