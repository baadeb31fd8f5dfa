package purge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daos-stack/voscore/internal/kvtree"
)

func TestAnchorSetClearIsComplete(t *testing.T) {
	var a Anchor
	require.False(t, a.isSet(SetDKEY))
	a.set(SetDKEY)
	require.True(t, a.isSet(SetDKEY))
	a.clear(SetDKEY)
	require.False(t, a.isSet(SetDKEY))

	a.set(CompleteVALUE)
	require.True(t, a.isComplete(CompleteVALUE))
}

func TestSetBitForAndCompleteBitFor(t *testing.T) {
	require.Equal(t, SetOBJ, setBitFor(LevelOBJ))
	require.Equal(t, SetDKEY, setBitFor(LevelDKEY))
	require.Equal(t, SetAKEY, setBitFor(LevelAKEY))
	require.Equal(t, SetVALUE, setBitFor(LevelVALUE))

	require.Equal(t, CompleteOBJ, completeBitFor(LevelOBJ))
	require.Equal(t, CompleteDKEY, completeBitFor(LevelDKEY))
	require.Equal(t, CompleteAKEY, completeBitFor(LevelAKEY))
	require.Equal(t, CompleteVALUE, completeBitFor(LevelVALUE))
}

// TestAnchorOIDMismatchResetsCompletionBits confirms that reusing one
// anchor across objects never leaks a prior object's completion onto a new
// one: switching OID must reset every completion bit, including
// CompleteOBJ, so the new OID always starts unaggregated.
func TestAnchorOIDMismatchResetsCompletionBits(t *testing.T) {
	oidA := kvtree.OID{Hi: 1, Lo: 1}
	oidB := kvtree.OID{Hi: 1, Lo: 2}

	a := &Anchor{OID: oidA, Bits: uint32(CompleteOBJ | CompleteDKEY | CompleteAKEY | CompleteVALUE)}

	done := isOIDAggregated(a, oidB)
	require.False(t, a.isSet(CompleteOBJ))
	require.False(t, a.isSet(CompleteDKEY))
	require.False(t, a.isSet(CompleteAKEY))
	require.False(t, a.isSet(CompleteVALUE))
	require.Equal(t, oidB, a.OID)
	require.False(t, done, "a freshly switched-to OID must never read back as already aggregated")
}

func TestIsOIDAggregatedFreshAnchor(t *testing.T) {
	var a Anchor
	oid := kvtree.OID{Hi: 5, Lo: 5}
	require.False(t, isOIDAggregated(&a, oid))
	require.Equal(t, oid, a.OID)
}
