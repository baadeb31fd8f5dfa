// Package config loads the tunables that govern the allocator's migrate
// cadence, large-extent threshold, and the discard cookie-bloom sizing, the
// same way the teacher loads its node configuration: a TOML file parsed with
// naoina/toml into a plain struct.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/naoina/toml"
)

// Config holds every environment toggle named in the external-interfaces
// section of the specification, plus the supplemented discard bloom sizing.
type Config struct {
	// MigrateIntervalMS is MIGRATE_INTERVAL_MS: minimum dwell time in the
	// aggregate LRU before an extent becomes eligible for unmap+reuse.
	MigrateIntervalMS uint64 `toml:"migrate_interval_ms"`

	// LargeExtMB is LARGE_EXT_MB: extents with blk_cnt*blk_sz above this
	// threshold live in the max-heap instead of a size-class LRU.
	LargeExtMB uint64 `toml:"large_ext_mb"`

	// BlockSizeBytes is the device block size (blk_sz).
	BlockSizeBytes uint32 `toml:"block_size_bytes"`

	// HeaderBlocks is the number of blocks reserved for the space header
	// (hdr_blks), excluded from the initial free extent on Format.
	HeaderBlocks uint32 `toml:"header_blocks"`

	// DiscardBloomEntries sizes the CookieBloom pre-filter.
	DiscardBloomEntries uint64 `toml:"discard_bloom_entries"`

	// DiscardBloomFalsePositiveRate bounds the CookieBloom's false-positive
	// probability (it never produces false negatives regardless).
	DiscardBloomFalsePositiveRate float64 `toml:"discard_bloom_fp_rate"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		MigrateIntervalMS:             5000,
		LargeExtMB:                    64,
		BlockSizeBytes:                4096,
		HeaderBlocks:                  1,
		DiscardBloomEntries:           1 << 20,
		DiscardBloomFalsePositiveRate: 0.001,
	}
}

// Load reads a TOML config file, overlaying it onto Default().
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses TOML from r, overlaying it onto Default().
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	buf, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err := toml.NewDecoder(bytes.NewReader(buf)).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// LargeThreshBlocks converts LargeExtMB into a block count given blk_sz.
func (c Config) LargeThreshBlocks() uint32 {
	bytesThresh := c.LargeExtMB * 1024 * 1024
	return uint32(bytesThresh / uint64(c.BlockSizeBytes))
}
