package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, uint64(5000), cfg.MigrateIntervalMS)
	require.Equal(t, uint64(64), cfg.LargeExtMB)
}

func TestDecodeOverlaysOntoDefaults(t *testing.T) {
	r := strings.NewReader(`
migrate_interval_ms = 9000
large_ext_mb = 128
`)
	cfg, err := Decode(r)
	require.NoError(t, err)
	require.Equal(t, uint64(9000), cfg.MigrateIntervalMS)
	require.Equal(t, uint64(128), cfg.LargeExtMB)
	// Fields not present in the TOML keep their Default() value.
	require.Equal(t, uint32(4096), cfg.BlockSizeBytes)
}

func TestLargeThreshBlocks(t *testing.T) {
	cfg := Default()
	cfg.LargeExtMB = 1
	cfg.BlockSizeBytes = 4096
	require.Equal(t, uint32(1024*1024/4096), cfg.LargeThreshBlocks())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.toml")
	require.Error(t, err)
}
