package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededSourceIsDeterministic(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	stamps := []time.Time{t0, t0, t0.Add(time.Hour), t0.Add(time.Hour)}

	a, b := NewSource(42), NewSource(42)
	for _, ts := range stamps {
		assert.Equal(t, a.At(ts), b.At(ts))
	}

	c := NewSource(7)
	assert.NotEqual(t, NewSource(42).At(t0), c.At(t0))
}

func TestIDsAreSortableAndStamped(t *testing.T) {
	t.Parallel()

	s := NewSource(1)
	t0 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	first := s.At(t0)
	second := s.At(t0)
	third := s.At(t0.Add(time.Second))

	assert.Less(t, first, second)
	assert.Less(t, second, third)

	parsed, err := ulid.Parse(third)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(t0.Add(time.Second)), parsed.Time())
}

func TestNew(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestAtClampsOutOfRangeTimes(t *testing.T) {
	t.Parallel()

	s := NewSource(3)
	pre := time.Date(1965, 1, 4, 15, 0, 0, 0, time.UTC)

	var first, second string
	require.NotPanics(t, func() {
		first = s.At(pre)
		second = s.At(pre.Add(time.Hour))
	})
	assert.Less(t, first, second)

	parsed, err := ulid.Parse(first)
	require.NoError(t, err)
	assert.Zero(t, parsed.Time())

	assert.Equal(t, NewSource(3).At(pre), first)

	far := time.Date(11000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NotPanics(t, func() {
		parsed, err = ulid.Parse(s.At(far))
	})
	require.NoError(t, err)
	assert.Equal(t, ulid.MaxTime(), parsed.Time())
}
