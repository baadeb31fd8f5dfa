package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daos-stack/voscore/internal/kvtree"
	"github.com/daos-stack/voscore/internal/purge"
)

func TestParseOID(t *testing.T) {
	oid, err := parseOID("12.34")
	require.NoError(t, err)
	require.Equal(t, kvtree.OID{Hi: 12, Lo: 34}, oid)

	for _, bad := range []string{"12", "12.34.56", "x.34", "12.y", ""} {
		_, err := parseOID(bad)
		require.Error(t, err, "expected an error for %q", bad)
	}
}

func TestParseEpochRange(t *testing.T) {
	lo, hi, err := parseEpochRange("10:20")
	require.NoError(t, err)
	require.Equal(t, uint64(10), lo)
	require.Equal(t, uint64(20), hi)

	lo, hi, err = parseEpochRange("5:inf")
	require.NoError(t, err)
	require.Equal(t, uint64(5), lo)
	require.Equal(t, purge.EpochInf, hi)

	for _, bad := range []string{"10", "10:20:30", "x:20", "10:y"} {
		_, _, err := parseEpochRange(bad)
		require.Error(t, err, "expected an error for %q", bad)
	}
}
