package purge

import (
	"errors"
	"math"

	"github.com/daos-stack/voscore/internal/kvtree"
	"github.com/daos-stack/voscore/internal/objcache"
	"github.com/daos-stack/voscore/internal/txn"
	"github.com/daos-stack/voscore/internal/vlog"
)

var log = vlog.New("pkg", "purge")

// EpochInf is the "no upper bound" sentinel for epr_hi, selecting
// EpochModeGE.
const EpochInf uint64 = math.MaxUint64

// Error taxonomy, matching §7's share relevant to the aggregator/discard.
var (
	ErrInvalid  = errors.New("purge: invalid epoch range")
	ErrNotFound = kvtree.ErrNotFound
)

// EpochMode selects how the value-level walk interprets [eprLo, eprHi].
type EpochMode int

const (
	// EpochModeEQ: eprLo == eprHi, a single-epoch punch.
	EpochModeEQ EpochMode = iota
	// EpochModeRR: reverse range, eprHi finite and > eprLo.
	EpochModeRR
	// EpochModeGE: eprHi == EpochInf, open-ended upper bound.
	EpochModeGE
)

func epochMode(lo, hi uint64) EpochMode {
	switch {
	case lo == hi:
		return EpochModeEQ
	case hi == EpochInf:
		return EpochModeGE
	default:
		return EpochModeRR
	}
}

// NilOID is the sentinel meaning "the whole container", per §4.4.
var NilOID = kvtree.OID{}

// Context is the per-call aggregation/discard context: the container being
// walked, the target object, the epoch range, and the object cache the walk
// needs.
type Context struct {
	Container *kvtree.Container
	COH       uint64
	OID       kvtree.OID
	EprLo     uint64
	EprHi     uint64

	Objects *objcache.Cache
}

// holdObject acquires the object's handle via the object cache, matching
// purge_ctx_init's OBJ-level entry.
func (c *Context) holdObject(forWrite bool) (*objcache.Handle, error) {
	return c.Objects.Hold(c.COH, c.OID, c.EprHi, forWrite)
}

// releaseObject drops the hold acquired by holdObject.
func (c *Context) releaseObject(h *objcache.Handle) {
	c.Objects.Release(h)
}

// evictObject evicts the cached handle for this (coh, oid), matching
// purge_ctx_fini's "evict object cache if level was OBJ" behavior: the walk
// may have deleted the object's subtree entirely, so any cached state must
// not survive to the next Hold.
func (c *Context) evictObject() {
	c.Objects.Evict(c.COH, c.OID)
}

// beginDeleteTx opens a transaction for a single key/value delete performed
// mid-walk, matching "delete current key in a transaction". The reference
// implementation's deletes are pure in-memory kvtree operations with no
// separate undo data needed beyond what txn.Tx already provides, since a
// failed/aborted delete tx here only needs to not double-delete.
func beginDeleteTx() *txn.Tx {
	tx := txn.Begin()
	tx.Enter()
	return tx
}
