// Package purge implements the epoch aggregator (C6) and epoch discard
// (C7): a recursive OBJ→DKEY→AKEY→VALUE walk over the key trees, resumable
// across yields via a serializable Anchor and bounded by a caller-supplied
// credit budget.
package purge

import "github.com/daos-stack/voscore/internal/kvtree"

// Level identifies a position in the OBJ→DKEY→AKEY→VALUE walk.
type Level int

const (
	LevelOBJ Level = iota
	LevelDKEY
	LevelAKEY
	LevelVALUE
)

// anchorBit is one flag in Anchor.Bits: whether a level's position has been
// saved (Set) and whether that level's scan has reached its end
// (Complete), one pair per Level.
type anchorBit uint32

const (
	SetOBJ anchorBit = 1 << iota
	SetDKEY
	SetAKEY
	SetVALUE
	CompleteOBJ
	CompleteDKEY
	CompleteAKEY
	CompleteVALUE
)

// resetOnOIDChange are every completion bit cleared when an anchor's OID no
// longer matches the oid being processed, per purge_oid_is_aggregated: the
// anchor's "already aggregated" signal is carried on DKEY_SCAN_COMPLETE,
// which itself resets on an oid change, so a fresh oid always starts
// unaggregated. CompleteOBJ must reset alongside the lower three bits, or a
// reused anchor would report a brand new object as already aggregated
// purely because the previous object finished.
const resetOnOIDChange = CompleteOBJ | CompleteDKEY | CompleteAKEY | CompleteVALUE

// Anchor is the serializable walk position: a bitmask plus one saved key
// per level, plus the extra VALUE_MAX anchor used by the max-iterator.
type Anchor struct {
	OID kvtree.OID
	Bits uint32

	DKey string
	AKey string
	// ValueEpoch is the saved main-iterator position within an akey's
	// value tree.
	ValueEpoch uint64
	// MaxEpoch is the saved max-iterator position (VALUE_MAX).
	MaxEpoch uint64
}

func (a *Anchor) isSet(b anchorBit) bool      { return anchorBit(a.Bits)&b != 0 }
func (a *Anchor) set(b anchorBit)             { a.Bits |= uint32(b) }
func (a *Anchor) clear(b anchorBit)           { a.Bits &^= uint32(b) }
func (a *Anchor) isComplete(b anchorBit) bool { return a.isSet(b) }

func setBitFor(level Level) anchorBit {
	switch level {
	case LevelOBJ:
		return SetOBJ
	case LevelDKEY:
		return SetDKEY
	case LevelAKEY:
		return SetAKEY
	default:
		return SetVALUE
	}
}

func completeBitFor(level Level) anchorBit {
	switch level {
	case LevelOBJ:
		return CompleteOBJ
	case LevelDKEY:
		return CompleteDKEY
	case LevelAKEY:
		return CompleteAKEY
	default:
		return CompleteVALUE
	}
}

// isOIDAggregated mirrors purge_oid_is_aggregated: if the anchor was
// captured for a different oid, reset every completion bit (including
// CompleteOBJ) and adopt the new oid, then report whether the (possibly
// just-adopted) oid is already marked complete. A reused anchor — the
// supported scenario of walking several objects with one anchor — must
// never carry a prior object's completion into a new one.
func isOIDAggregated(anchor *Anchor, oid kvtree.OID) bool {
	if anchor.OID != oid {
		anchor.Bits &^= uint32(resetOnOIDChange)
		anchor.OID = oid
	}
	return anchor.isComplete(CompleteOBJ)
}
