// Package vclock implements the vector-clock algebra used for causality
// tracking across devices. A clock maps a device ID to a monotonic
// counter; missing keys are treated as zero. All operations are pure:
// they never mutate their receivers or arguments.
package vclock

// Relation is the causal ordering between two clocks.
type Relation int

const (
	// Equal means both clocks have identical components.
	Equal Relation = iota
	// Before means the receiver is causally older (dominated).
	Before
	// After means the receiver causally supersedes the other clock.
	After
	// Concurrent means neither clock dominates the other.
	Concurrent
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// Clock is a vector clock keyed by device ID. A nil Clock is a valid
// empty clock; every operation accepts nil on either side.
type Clock map[string]int64

// Get returns the counter for device, with missing keys as zero.
func (c Clock) Get(device string) int64 {
	return c[device]
}

// Copy returns an independent copy of the clock. Copying a nil or
// empty clock returns an empty, non-nil clock.
func (c Clock) Copy() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Compare reports the causal relation of c to other. Keys absent on
// either side count as zero, so {A:1} and {A:1, B:0} are Equal.
func (c Clock) Compare(other Clock) Relation {
	var cAhead, otherAhead bool
	for k, v := range c {
		switch o := other[k]; {
		case v > o:
			cAhead = true
		case v < o:
			otherAhead = true
		}
	}
	for k, o := range other {
		if _, seen := c[k]; seen {
			continue
		}
		switch {
		case o > 0:
			otherAhead = true
		case o < 0:
			cAhead = true
		}
	}
	switch {
	case cAhead && otherAhead:
		return Concurrent
	case cAhead:
		return After
	case otherAhead:
		return Before
	default:
		return Equal
	}
}

// Merge returns a new clock with every key from either side bound to
// the pairwise maximum.
func (c Clock) Merge(other Clock) Clock {
	out := make(Clock, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// Increment returns a copy of the clock with the device's component
// advanced by one.
func (c Clock) Increment(device string) Clock {
	out := c.Copy()
	out[device]++
	return out
}

// FromAny coerces a decoded JSON value into a Clock. Anything that is
// not an object, and any component that is not numeric, is ignored;
// a non-object input yields an empty clock. This is the boundary rule
// for malformed client payloads.
func FromAny(v any) Clock {
	m, ok := v.(map[string]any)
	if !ok {
		return Clock{}
	}
	out := make(Clock, len(m))
	for k, raw := range m {
		switch n := raw.(type) {
		case float64:
			out[k] = int64(n)
		case int64:
			out[k] = n
		case int:
			out[k] = int64(n)
		}
	}
	return out
}
