package vclock

import (
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    Clock
		b    Clock
		want Relation
	}{
		{
			name: "both empty",
			a:    Clock{},
			b:    Clock{},
			want: Equal,
		},
		{
			name: "both nil",
			a:    nil,
			b:    nil,
			want: Equal,
		},
		{
			name: "identical single component",
			a:    Clock{"A": 1},
			b:    Clock{"A": 1},
			want: Equal,
		},
		{
			name: "zero component equals missing key",
			a:    Clock{"A": 1},
			b:    Clock{"A": 1, "B": 0},
			want: Equal,
		},
		{
			name: "receiver behind on one component",
			a:    Clock{"A": 1},
			b:    Clock{"A": 2},
			want: Before,
		},
		{
			name: "receiver ahead on one component",
			a:    Clock{"A": 2},
			b:    Clock{"A": 1},
			want: After,
		},
		{
			name: "receiver ahead with extra device",
			a:    Clock{"A": 2, "B": 1},
			b:    Clock{"A": 1},
			want: After,
		},
		{
			name: "receiver behind against superset",
			a:    Clock{"A": 1},
			b:    Clock{"A": 1, "B": 3},
			want: Before,
		},
		{
			name: "concurrent on disjoint devices",
			a:    Clock{"A": 1},
			b:    Clock{"B": 1},
			want: Concurrent,
		},
		{
			name: "concurrent with crossing components",
			a:    Clock{"A": 2, "B": 1},
			b:    Clock{"A": 1, "B": 2},
			want: Concurrent,
		},
		{
			name: "empty before any non-empty",
			a:    Clock{},
			b:    Clock{"A": 1},
			want: Before,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestCompare_Antisymmetry checks that After and Before are mirror
// images and that Equal and Concurrent are symmetric.
func TestCompare_Antisymmetry(t *testing.T) {
	pairs := []struct {
		a, b Clock
	}{
		{Clock{"A": 1}, Clock{"A": 2}},
		{Clock{"A": 2, "B": 1}, Clock{"A": 1}},
		{Clock{"A": 1}, Clock{"B": 1}},
		{Clock{"A": 5, "B": 5}, Clock{"A": 5, "B": 5}},
		{Clock{}, Clock{"X": 3}},
	}

	mirror := map[Relation]Relation{
		Equal:      Equal,
		Before:     After,
		After:      Before,
		Concurrent: Concurrent,
	}

	for _, p := range pairs {
		ab := p.a.Compare(p.b)
		ba := p.b.Compare(p.a)
		if ba != mirror[ab] {
			t.Errorf("Compare(%v, %v) = %v but Compare(%v, %v) = %v, want %v",
				p.a, p.b, ab, p.b, p.a, ba, mirror[ab])
		}
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a    Clock
		b    Clock
		want Clock
	}{
		{
			name: "disjoint devices union",
			a:    Clock{"A": 1},
			b:    Clock{"B": 2},
			want: Clock{"A": 1, "B": 2},
		},
		{
			name: "pairwise maximum",
			a:    Clock{"A": 3, "B": 1},
			b:    Clock{"A": 1, "B": 4},
			want: Clock{"A": 3, "B": 4},
		},
		{
			name: "merge with empty",
			a:    Clock{"A": 2},
			b:    Clock{},
			want: Clock{"A": 2},
		},
		{
			name: "merge with nil",
			a:    Clock{"A": 2},
			b:    nil,
			want: Clock{"A": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Merge(tt.b)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}

			// Commutativity.
			rev := tt.b.Merge(tt.a)
			if !reflect.DeepEqual(rev, tt.want) {
				t.Errorf("Merge(%v, %v) = %v, want %v (commutativity)", tt.b, tt.a, rev, tt.want)
			}

			// The merge dominates or equals both inputs.
			if rel := got.Compare(tt.a); rel != After && rel != Equal {
				t.Errorf("Compare(Merge(a,b), a) = %v, want After or Equal", rel)
			}
			if rel := got.Compare(tt.b); rel != After && rel != Equal {
				t.Errorf("Compare(Merge(a,b), b) = %v, want After or Equal", rel)
			}
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := Clock{"A": 1}
	b := Clock{"A": 5, "B": 2}

	a.Merge(b)

	if a["A"] != 1 || len(a) != 1 {
		t.Errorf("Merge mutated receiver: %v", a)
	}
	if b["A"] != 5 || b["B"] != 2 || len(b) != 2 {
		t.Errorf("Merge mutated argument: %v", b)
	}
}

func TestIncrement(t *testing.T) {
	c := Clock{"A": 1, "B": 7}

	got := c.Increment("A")
	if got["A"] != 2 {
		t.Errorf("Increment(A)[A] = %d, want 2", got["A"])
	}
	if got["B"] != 7 {
		t.Errorf("Increment(A)[B] = %d, want 7 (other components unchanged)", got["B"])
	}
	if c["A"] != 1 {
		t.Errorf("Increment mutated input: %v", c)
	}

	// New device starts at 1.
	got = c.Increment("C")
	if got["C"] != 1 {
		t.Errorf("Increment(C)[C] = %d, want 1", got["C"])
	}

	// Incrementing a nil clock is valid.
	var empty Clock
	got = empty.Increment("D")
	if got["D"] != 1 {
		t.Errorf("Increment on nil clock = %v, want {D:1}", got)
	}
}

func TestCopy_Independent(t *testing.T) {
	a := Clock{"A": 1}
	b := a.Copy()
	b["A"] = 9
	b["B"] = 1

	if a["A"] != 1 || len(a) != 1 {
		t.Errorf("Copy is not independent: original = %v", a)
	}

	var empty Clock
	if c := empty.Copy(); c == nil || len(c) != 0 {
		t.Errorf("Copy of nil clock = %v, want empty non-nil", c)
	}
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Clock
	}{
		{
			name: "decoded JSON object",
			in:   map[string]any{"A": float64(3), "B": float64(1)},
			want: Clock{"A": 3, "B": 1},
		},
		{
			name: "non-object coerced to empty",
			in:   "not a clock",
			want: Clock{},
		},
		{
			name: "nil coerced to empty",
			in:   nil,
			want: Clock{},
		},
		{
			name: "array coerced to empty",
			in:   []any{1, 2},
			want: Clock{},
		},
		{
			name: "non-numeric components dropped",
			in:   map[string]any{"A": float64(2), "B": "bogus"},
			want: Clock{"A": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromAny(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FromAny(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRelationString(t *testing.T) {
	tests := []struct {
		r    Relation
		want string
	}{
		{Equal, "equal"},
		{Before, "before"},
		{After, "after"},
		{Concurrent, "concurrent"},
		{Relation(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("Relation(%d).String() = %q, want %q", tt.r, got, tt.want)
		}
	}
}
