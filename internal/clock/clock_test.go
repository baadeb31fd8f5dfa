package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualAdvanceAndSet(t *testing.T) {
	m := NewManual(100)
	require.Equal(t, uint64(100), m.NowMS())
	m.Advance(50)
	require.Equal(t, uint64(150), m.NowMS())
	m.Set(10)
	require.Equal(t, uint64(10), m.NowMS())
}

func TestSystemClockIsMonotonicNonNegative(t *testing.T) {
	a := System.NowMS()
	b := NowMS()
	require.GreaterOrEqual(t, b, a)
}
