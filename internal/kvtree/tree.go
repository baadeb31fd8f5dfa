// Package kvtree is the reference in-memory implementation of the ordered
// map primitive (C1) the VOS core consumes: probe/fetch/next/delete/update
// over an ordered key space, with LE/GE/EQ/FIRST probe semantics. Production
// VOS embeds a persistent B+-tree; this package gives the same shape to an
// in-process google/btree index so the rest of the module, and its tests,
// have something real to run against.
package kvtree

import (
	"errors"

	"github.com/google/btree"
)

// ErrNotFound is returned by Probe/Fetch/Next when no entry satisfies the
// request. Callers at iterator boundaries convert it to "end of level".
var ErrNotFound = errors.New("kvtree: not found")

// ProbeOp selects how Probe positions the cursor relative to key.
type ProbeOp int

const (
	ProbeEQ ProbeOp = iota
	ProbeLE
	ProbeGE
	ProbeFirst
)

// entry is the internal btree item: an ordered key paired with an opaque
// value. degree ordering is delegated to the Less function supplied at
// Tree construction, not to any ordering on V.
type entry[K any, V any] struct {
	key K
	val V
}

// Tree is a generic ordered map over key type K and value type V, backed by
// google/btree's generic BTreeG. less must implement a strict weak order
// over K.
type Tree[K any, V any] struct {
	bt   *btree.BTreeG[entry[K, V]]
	less func(a, b K) bool
}

// New constructs an empty Tree ordered by less.
func New[K any, V any](less func(a, b K) bool) *Tree[K, V] {
	return &Tree[K, V]{
		bt: btree.NewG[entry[K, V]](32, func(a, b entry[K, V]) bool {
			return less(a.key, b.key)
		}),
		less: less,
	}
}

// Len returns the number of entries.
func (t *Tree[K, V]) Len() int { return t.bt.Len() }

// Update inserts or overwrites the value stored at key.
func (t *Tree[K, V]) Update(key K, val V) {
	t.bt.ReplaceOrInsert(entry[K, V]{key: key, val: val})
}

// Get returns the value stored at key, if present.
func (t *Tree[K, V]) Get(key K) (V, bool) {
	item, ok := t.bt.Get(entry[K, V]{key: key})
	return item.val, ok
}

// Delete removes key, reporting whether it was present.
func (t *Tree[K, V]) Delete(key K) bool {
	_, ok := t.bt.Delete(entry[K, V]{key: key})
	return ok
}

// Empty reports whether the tree has no entries.
func (t *Tree[K, V]) Empty() bool { return t.bt.Len() == 0 }

// Handle is a cursor over a Tree, matching the external-interface shape:
// Prepare (New/Handle), Probe, Fetch, Next, Delete, Empty, Finish.
type Handle[K any, V any] struct {
	tree *Tree[K, V]
	cur  K
	has  bool
}

// Prepare returns a new cursor handle over t. The zero-value cursor has no
// current position until Probe is called.
func Prepare[K any, V any](t *Tree[K, V]) *Handle[K, V] {
	return &Handle[K, V]{tree: t}
}

// Finish releases the handle. The in-memory reference implementation has no
// external resources to release, but the method exists so callers that hold
// a Handle across a yield point have a single place to drop it.
func (h *Handle[K, V]) Finish() { h.has = false }

// Probe positions the cursor per op and returns the resulting key, or
// ErrNotFound if no entry satisfies the request.
func (h *Handle[K, V]) Probe(op ProbeOp, key K) (K, error) {
	var zero K
	switch op {
	case ProbeFirst:
		var found bool
		h.tree.bt.Ascend(func(e entry[K, V]) bool {
			h.cur, found = e.key, true
			return false
		})
		if !found {
			h.has = false
			return zero, ErrNotFound
		}
		h.has = true
		return h.cur, nil
	case ProbeEQ:
		if _, ok := h.tree.Get(key); !ok {
			h.has = false
			return zero, ErrNotFound
		}
		h.cur, h.has = key, true
		return h.cur, nil
	case ProbeGE:
		var found bool
		h.tree.bt.AscendGreaterOrEqual(entry[K, V]{key: key}, func(e entry[K, V]) bool {
			h.cur, found = e.key, true
			return false
		})
		if !found {
			h.has = false
			return zero, ErrNotFound
		}
		h.has = true
		return h.cur, nil
	case ProbeLE:
		var found bool
		h.tree.bt.DescendLessOrEqual(entry[K, V]{key: key}, func(e entry[K, V]) bool {
			h.cur, found = e.key, true
			return false
		})
		if !found {
			h.has = false
			return zero, ErrNotFound
		}
		h.has = true
		return h.cur, nil
	default:
		h.has = false
		return zero, ErrNotFound
	}
}

// Fetch returns the entry at the cursor's current position.
func (h *Handle[K, V]) Fetch() (K, V, error) {
	var zeroK K
	var zeroV V
	if !h.has {
		return zeroK, zeroV, ErrNotFound
	}
	v, ok := h.tree.Get(h.cur)
	if !ok {
		h.has = false
		return zeroK, zeroV, ErrNotFound
	}
	return h.cur, v, nil
}

// Next advances the cursor to the next key strictly greater than the
// current one.
func (h *Handle[K, V]) Next() error {
	if !h.has {
		return ErrNotFound
	}
	var next K
	var found bool
	count := 0
	h.tree.bt.AscendGreaterOrEqual(entry[K, V]{key: h.cur}, func(e entry[K, V]) bool {
		count++
		if count == 1 {
			return true // skip the current key itself
		}
		next, found = e.key, true
		return false
	})
	if !found {
		h.has = false
		return ErrNotFound
	}
	h.cur, h.has = next, true
	return nil
}

// Prev moves the cursor to the next key strictly less than the current
// one, used by the reverse-epoch (RR) walk direction.
func (h *Handle[K, V]) Prev() error {
	if !h.has {
		return ErrNotFound
	}
	var prev K
	var found bool
	count := 0
	h.tree.bt.DescendLessOrEqual(entry[K, V]{key: h.cur}, func(e entry[K, V]) bool {
		count++
		if count == 1 {
			return true // skip the current key itself
		}
		prev, found = e.key, true
		return false
	})
	if !found {
		h.has = false
		return ErrNotFound
	}
	h.cur, h.has = prev, true
	return nil
}

// Delete removes the entry at the cursor's current position. The cursor is
// invalidated; callers must Probe again before further use.
func (h *Handle[K, V]) Delete() error {
	if !h.has {
		return ErrNotFound
	}
	h.tree.Delete(h.cur)
	h.has = false
	return nil
}

// Empty reports whether the underlying tree has no entries.
func (h *Handle[K, V]) Empty() bool { return h.tree.Empty() }
