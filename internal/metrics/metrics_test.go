package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCountersAndMetersAreIndependentlyRegistered confirms each exported
// collector is its own registered instrument rather than an accidental
// alias of another (a copy-paste hazard with this many near-identical
// NewRegistered* calls in a row).
func TestCountersAndMetersAreIndependentlyRegistered(t *testing.T) {
	ReserveCalls.Clear()
	CancelCalls.Clear()

	ReserveCalls.Inc(3)
	require.EqualValues(t, 3, ReserveCalls.Count())
	require.EqualValues(t, 0, CancelCalls.Count(), "incrementing one counter must not affect another")

	BlocksReserved.Mark(5)
	require.EqualValues(t, 5, BlocksReserved.Count())
	require.EqualValues(t, 0, BlocksUnmapped.Count())
}
