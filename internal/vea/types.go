// Package vea implements the block-extent allocator: the free-extent index
// (C3), the reservation engine (C4), and the quarantine/unmap pipeline (C5).
package vea

import "math"

// Age is a free extent's age stamp. The zero-arithmetic sentinel "not yet
// reuse-eligible" is represented as the named AgeFrozen value rather than a
// bare math.MaxUint64 literal at call sites, per the Design Notes.
type Age uint64

// AgeFrozen marks an extent that is quarantined or has never been allocated
// from: never eligible for reservation.
const AgeFrozen Age = math.MaxUint64

// IsFrozen reports whether a is the Frozen sentinel.
func (a Age) IsFrozen() bool { return a == AgeFrozen }

// Extent is a contiguous free block range, the in-memory mirror of the
// persistent free record {blk_off, blk_cnt, age}.
type Extent struct {
	Off uint64
	Cnt uint32
	Age Age
}

// End returns the first block offset past the extent.
func (e Extent) End() uint64 { return e.Off + uint64(e.Cnt) }

// Adjacent reports whether e immediately precedes other (e.End() ==
// other.Off). Per the adjacency test, e.Off must be less than other.Off;
// overlap (e.End() > other.Off) is the caller's responsibility to treat as
// corruption.
func (e Extent) Adjacent(other Extent) bool {
	return e.Off < other.Off && e.End() == other.Off
}

// Overlaps reports whether e and other share any block.
func (e Extent) Overlaps(other Extent) bool {
	if e.Off <= other.Off {
		return e.End() > other.Off
	}
	return other.End() > e.Off
}

// Hint is the per-I/O-stream locality marker: the reservation engine tries
// to carve new requests starting at LastOff before falling back to the
// general allocator paths.
type Hint struct {
	LastOff uint64
	Seq     uint64
}

// Reserved is one carved range returned by Reserve, tagged with the free
// extent it was carved from so Cancel can restore the donor's original age.
type Reserved struct {
	Off      uint64
	Cnt      uint32
	DonorAge Age
}

// ReservedList is the result of one Reserve call.
type ReservedList struct {
	Items []Reserved
}

// TotalBlocks sums the block count across every reserved item.
func (l ReservedList) TotalBlocks() uint32 {
	var sum uint32
	for _, it := range l.Items {
		sum += it.Cnt
	}
	return sum
}

// Flags controls compoundFree behavior.
type Flags uint8

const (
	// GenAge stamps the extent's age with clock.NowMS() before insertion.
	// Its absence ("NO_GEN_AGE" in the source) preserves whatever Age the
	// extent already carries, used when reinserting a donor's residual or
	// a canceled reservation so the original age survives.
	GenAge Flags = 1 << iota
	// NoMerge disables LE/GE neighbor merging; any adjacency found under
	// this flag is treated as fatal corruption rather than merged away.
	NoMerge
	// NoMergeRequired documents that merging is attempted opportunistically
	// but is not required to succeed (the normal, default merge behavior);
	// kept as a named flag because callers such as Cancel pass it
	// explicitly to mirror the source's vocabulary, even though it does
	// not change behavior relative to passing no flags at all.
	NoMergeRequired
)
