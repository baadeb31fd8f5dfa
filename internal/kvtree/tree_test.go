package kvtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lessInt(a, b int) bool { return a < b }

func TestTreeProbeEQGELEFirst(t *testing.T) {
	tr := New[int, string](lessInt)
	for _, k := range []int{10, 20, 30, 40} {
		tr.Update(k, "v")
	}
	h := Prepare(tr)

	k, err := h.Probe(ProbeEQ, 20)
	require.NoError(t, err)
	require.Equal(t, 20, k)

	_, err = h.Probe(ProbeEQ, 25)
	require.ErrorIs(t, err, ErrNotFound)

	k, err = h.Probe(ProbeGE, 25)
	require.NoError(t, err)
	require.Equal(t, 30, k)

	k, err = h.Probe(ProbeLE, 25)
	require.NoError(t, err)
	require.Equal(t, 20, k)

	k, err = h.Probe(ProbeFirst, 0)
	require.NoError(t, err)
	require.Equal(t, 10, k)

	_, err = h.Probe(ProbeGE, 1000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTreeNextPrev(t *testing.T) {
	tr := New[int, string](lessInt)
	for _, k := range []int{1, 2, 3, 5} {
		tr.Update(k, "v")
	}
	h := Prepare(tr)
	_, err := h.Probe(ProbeEQ, 2)
	require.NoError(t, err)
	require.NoError(t, h.Next())
	k, _, err := h.Fetch()
	require.NoError(t, err)
	require.Equal(t, 3, k)

	require.NoError(t, h.Prev())
	k, _, err = h.Fetch()
	require.NoError(t, err)
	require.Equal(t, 2, k)

	_, err = h.Probe(ProbeEQ, 1)
	require.NoError(t, err)
	require.ErrorIs(t, h.Prev(), ErrNotFound)

	_, err = h.Probe(ProbeEQ, 5)
	require.NoError(t, err)
	require.ErrorIs(t, h.Next(), ErrNotFound)
}

func TestTreeDelete(t *testing.T) {
	tr := New[int, string](lessInt)
	tr.Update(1, "a")
	tr.Update(2, "b")
	h := Prepare(tr)
	_, err := h.Probe(ProbeEQ, 1)
	require.NoError(t, err)
	require.NoError(t, h.Delete())
	require.Equal(t, 1, tr.Len())
	_, ok := tr.Get(1)
	require.False(t, ok)

	require.ErrorIs(t, h.Delete(), ErrNotFound)
}

func TestTreeEmpty(t *testing.T) {
	tr := New[int, string](lessInt)
	require.True(t, tr.Empty())
	tr.Update(1, "a")
	require.False(t, tr.Empty())
	tr.Delete(1)
	require.True(t, tr.Empty())
}

func TestContainerCookieEpochTracking(t *testing.T) {
	c := NewContainer()
	c.RecordCookieEpoch(7, 10)
	c.RecordCookieEpoch(7, 20)
	c.RecordCookieEpoch(7, 5)

	max, ok := c.MaxEpochForCookie(7)
	require.True(t, ok)
	require.Equal(t, uint64(20), max)

	_, ok = c.MaxEpochForCookie(99)
	require.False(t, ok)
}
