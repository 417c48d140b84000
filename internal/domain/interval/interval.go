// Package interval implements the half-open/closed/unbounded time
// interval algebra over system-time instants used by the metadata chain
// and the transform derivation algorithm.
//
// Every canonical interval produced by this package has a closed (or
// unbounded) right edge: the forms in play are the empty interval, a
// singleton, [a,b], (a,b], (-inf,b], (a,+inf), and (-inf,+inf). No
// operation here ever needs an open right edge, which keeps Intersect
// and RightComplement simple comparisons instead of a general allen's-
// algebra implementation.
package interval

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonTimeLayout is the canonical wire format for engine IPC timestamps
// RFC3339 with millisecond precision and a literal UTC "Z".
const jsonTimeLayout = "2006-01-02T15:04:05.000Z"

// Interval is a canonical time interval. A nil Left means "-infinity";
// a nil Right means "+infinity". Right, when present, is always
// inclusive. Left is inclusive unless LeftOpen is set (LeftOpen is
// meaningless when Left is nil).
type Interval struct {
	Left     *time.Time
	Right    *time.Time
	LeftOpen bool
	empty    bool
}

// Empty returns the canonical empty interval.
func Empty() Interval {
	return Interval{empty: true}
}

// Singleton returns the canonical [t,t] interval.
func Singleton(t time.Time) Interval {
	return Interval{Left: &t, Right: &t}
}

// UnboundedClosedRight returns the canonical (-inf, t] interval.
func UnboundedClosedRight(t time.Time) Interval {
	return Interval{Right: &t}
}

// ClosedOpenLeft returns the canonical (a, b] interval. Callers must
// ensure a is strictly before b for a non-empty result; if a == b or
// a is after b, the result collapses to Empty.
func ClosedOpenLeft(after time.Time, upTo time.Time) Interval {
	if !after.Before(upTo) {
		return Empty()
	}

	return Interval{Left: &after, LeftOpen: true, Right: &upTo}
}

// UnboundedAfter returns the canonical (a, +inf) interval.
func UnboundedAfter(after time.Time) Interval {
	return Interval{Left: &after, LeftOpen: true}
}

// Unbounded returns the canonical (-inf, +inf) interval.
func Unbounded() Interval {
	return Interval{}
}

// IsEmpty reports whether iv is the canonical empty interval.
func (iv Interval) IsEmpty() bool {
	return iv.empty
}

// ContainsPoint reports whether t falls within iv.
func (iv Interval) ContainsPoint(t time.Time) bool {
	if iv.empty {
		return false
	}

	if iv.Left != nil {
		if iv.LeftOpen {
			if !t.After(*iv.Left) {
				return false
			}
		} else if t.Before(*iv.Left) {
			return false
		}
	}

	if iv.Right != nil && t.After(*iv.Right) {
		return false
	}

	return true
}

// Intersect returns the canonical intersection of a and b. Intersect is
// commutative: Intersect(a, b) == Intersect(b, a).
func Intersect(a, b Interval) Interval {
	if a.empty || b.empty {
		return Empty()
	}

	left, leftOpen := maxLeft(a.Left, a.LeftOpen, b.Left, b.LeftOpen)
	right := minRight(a.Right, b.Right)

	if left != nil && right != nil {
		if left.After(*right) {
			return Empty()
		}

		if left.Equal(*right) && leftOpen {
			return Empty()
		}
	}

	return Interval{Left: left, LeftOpen: leftOpen, Right: right}
}

// RightComplement returns everything strictly to the right of iv's
// right edge: (-inf,+inf) if iv is empty, empty if iv's right edge is
// unbounded, otherwise (iv.Right, +inf).
func RightComplement(iv Interval) Interval {
	if iv.empty {
		return Unbounded()
	}

	if iv.Right == nil {
		return Empty()
	}

	return UnboundedAfter(*iv.Right)
}

// jsonInterval is the wire shape of Interval for engine IPC: the empty
// interval marshals as {"empty":true}; every other canonical form
// marshals its concrete bounds and omits the rest.
type jsonInterval struct {
	Empty    bool    `json:"empty,omitempty"`
	Left     *string `json:"left,omitempty"`
	LeftOpen bool    `json:"leftOpen,omitempty"`
	Right    *string `json:"right,omitempty"`
}

// MarshalJSON implements the canonical engine-IPC wire format.
func (iv Interval) MarshalJSON() ([]byte, error) {
	if iv.empty {
		return json.Marshal(jsonInterval{Empty: true})
	}

	out := jsonInterval{LeftOpen: iv.LeftOpen}

	if iv.Left != nil {
		s := iv.Left.UTC().Format(jsonTimeLayout)
		out.Left = &s
	}

	if iv.Right != nil {
		s := iv.Right.UTC().Format(jsonTimeLayout)
		out.Right = &s
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements the canonical engine-IPC wire format.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var in jsonInterval
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("interval: unmarshal: %w", err)
	}

	if in.Empty {
		*iv = Empty()

		return nil
	}

	result := Interval{LeftOpen: in.LeftOpen}

	if in.Left != nil {
		t, err := time.Parse(jsonTimeLayout, *in.Left)
		if err != nil {
			return fmt.Errorf("interval: parse left bound: %w", err)
		}

		result.Left = &t
	}

	if in.Right != nil {
		t, err := time.Parse(jsonTimeLayout, *in.Right)
		if err != nil {
			return fmt.Errorf("interval: parse right bound: %w", err)
		}

		result.Right = &t
	}

	*iv = result

	return nil
}

// maxLeft picks the tighter (later, or open over closed at equal
// instants) of two left bounds. A nil bound is -infinity and loses to
// any concrete bound.
func maxLeft(a *time.Time, aOpen bool, b *time.Time, bOpen bool) (*time.Time, bool) {
	switch {
	case a == nil:
		return b, bOpen
	case b == nil:
		return a, aOpen
	case a.After(*b):
		return a, aOpen
	case b.After(*a):
		return b, bOpen
	default:
		return a, aOpen || bOpen
	}
}

// minRight picks the tighter (earlier) of two right bounds. A nil
// bound is +infinity and loses to any concrete bound.
func minRight(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
