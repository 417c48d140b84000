package interval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
)

func TestEmpty_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Empty().IsEmpty())
	assert.False(t, Unbounded().IsEmpty())
}

func TestRightComplement_Roundtrip(t *testing.T) {
	t.Parallel()

	cases := []Interval{
		Empty(),
		Singleton(t0),
		UnboundedClosedRight(t1),
		ClosedOpenLeft(t0, t1),
		UnboundedAfter(t0),
		Unbounded(),
	}

	for _, x := range cases {
		complement := RightComplement(x)
		assert.True(t, Intersect(complement, x).IsEmpty(),
			"right_complement(X) ∩ X must be empty for %+v", x)
	}
}

func TestRightComplement_OfEmptyIsUnbounded(t *testing.T) {
	t.Parallel()

	got := RightComplement(Empty())
	assert.True(t, got.ContainsPoint(t0))
	assert.True(t, got.ContainsPoint(t2))
}

func TestRightComplement_OfUnboundedRightIsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, RightComplement(UnboundedAfter(t0)).IsEmpty())
	assert.True(t, RightComplement(Unbounded()).IsEmpty())
}

func TestIntersect_Commutative(t *testing.T) {
	t.Parallel()

	a := UnboundedClosedRight(t1)
	b := UnboundedAfter(t0)

	assert.Equal(t, Intersect(a, b), Intersect(b, a))
}

func TestIntersect_ProducesClosedOpenLeft(t *testing.T) {
	t.Parallel()

	processed := UnboundedClosedRight(t0)
	unprocessed := RightComplement(processed)
	available := UnboundedClosedRight(t1)

	got := Intersect(available, unprocessed)

	assert.False(t, got.ContainsPoint(t0))
	assert.True(t, got.ContainsPoint(t1))
	assert.False(t, got.ContainsPoint(t2))
}

func TestIntersect_DisjointIsEmpty(t *testing.T) {
	t.Parallel()

	a := ClosedOpenLeft(t0, t1)
	b := UnboundedAfter(t1)

	assert.True(t, Intersect(a, b).IsEmpty())
}

func TestContainsPoint_Singleton(t *testing.T) {
	t.Parallel()

	s := Singleton(t1)
	assert.True(t, s.ContainsPoint(t1))
	assert.False(t, s.ContainsPoint(t0))
	assert.False(t, s.ContainsPoint(t2))
}

func TestContainsPoint_Unbounded(t *testing.T) {
	t.Parallel()

	u := Unbounded()
	assert.True(t, u.ContainsPoint(t0))
	assert.True(t, u.ContainsPoint(t2))
}

func TestClosedOpenLeft_CollapsesWhenNotStrictlyBefore(t *testing.T) {
	t.Parallel()

	assert.True(t, ClosedOpenLeft(t1, t1).IsEmpty())
	assert.True(t, ClosedOpenLeft(t2, t1).IsEmpty())
}

func TestJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Interval{Empty(), Singleton(t0), ClosedOpenLeft(t0, t1), UnboundedAfter(t0), Unbounded()}

	for _, iv := range cases {
		data, err := json.Marshal(iv)
		require.NoError(t, err)

		var got Interval

		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, iv.IsEmpty(), got.IsEmpty())
		assert.True(t, Intersect(iv, got).ContainsPoint(t0) == iv.ContainsPoint(t0))
	}
}

func TestJSON_EmptyMarshalsAsEmptyTrue(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Empty())
	require.NoError(t, err)
	assert.JSONEq(t, `{"empty":true}`, string(data))
}
