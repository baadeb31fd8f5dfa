package vea

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/daos-stack/voscore/internal/blockdev"
	"github.com/daos-stack/voscore/internal/clock"
	"github.com/daos-stack/voscore/internal/config"
	"github.com/daos-stack/voscore/internal/vlog"
)

// SpaceMagic is the persisted space-header magic constant.
const SpaceMagic uint32 = 0xea201804

var log = vlog.New("pkg", "vea")

// Header mirrors the persisted space header.
type Header struct {
	Magic    uint32
	BlkSz    uint32
	HdrBlks  uint32
	Capacity uint64
}

// Space is the full in-memory allocator state for one target: the
// free-offset tree, the size-class LRUs, the large-extent max-heap, the
// quarantine, and (for this reference implementation) a simulated
// persistent free map standing in for the real pmemobj-backed one.
//
// A single mutex guards the whole structure, matching §4.2's "across
// xstreams the allocator is protected by a single mutex held for the
// entire reserve/cancel/publish step".
type Space struct {
	mu sync.Mutex

	hdr Header

	largeThresh uint32
	offset      *offsetIndex // in-memory allocatable free extents
	heap        *largeHeap
	classes     *sizeClasses

	persistent *offsetIndex // simulated persistent free map

	aggOffset     *offsetIndex // quarantine, keyed by offset
	aggLRU        *list.List   // quarantine, ordered by insertion (== age)
	lastMigrateMS uint64

	dev blockdev.Device
	clk clock.Source
}

// Format initializes a fresh Space of the given capacity, mirroring
// vea_format: one free extent covering capacity minus the header blocks.
func Format(cfg config.Config, capacityBlocks uint64, dev blockdev.Device, clk clock.Source) (*Space, error) {
	if clk == nil {
		clk = clock.System
	}
	s := &Space{
		hdr: Header{
			Magic:    SpaceMagic,
			BlkSz:    cfg.BlockSizeBytes,
			HdrBlks:  cfg.HeaderBlocks,
			Capacity: capacityBlocks,
		},
		largeThresh: cfg.LargeThreshBlocks(),
		offset:      newOffsetIndex(),
		heap:        newLargeHeap(),
		persistent:  newOffsetIndex(),
		aggOffset:   newOffsetIndex(),
		aggLRU:      list.New(),
		dev:         dev,
		clk:         clk,
	}
	s.classes = newSizeClasses(s.largeThresh)

	if capacityBlocks <= uint64(cfg.HeaderBlocks) {
		return nil, fmt.Errorf("vea: format: %w: capacity must exceed header blocks", ErrInvalid)
	}
	initial := Extent{
		Off: uint64(cfg.HeaderBlocks),
		Cnt: uint32(capacityBlocks - uint64(cfg.HeaderBlocks)),
		Age: AgeFrozen,
	}
	if err := s.insertAllocatable(initial); err != nil {
		return nil, err
	}
	s.persistent.insert(&Extent{Off: initial.Off, Cnt: initial.Cnt, Age: AgeFrozen})
	log.Info("formatted space", "capacity", capacityBlocks, "hdr_blks", cfg.HeaderBlocks, "large_thresh", s.largeThresh)
	return s, nil
}

// LargeThresh returns the configured large-extent threshold in blocks.
func (s *Space) LargeThresh() uint32 { return s.largeThresh }

// classify routes e into the large-heap or a size-class LRU, per whether
// its block count exceeds largeThresh.
func (s *Space) classify(e *Extent) {
	if e.Cnt > s.largeThresh {
		s.heap.push(e)
		return
	}
	s.classes.insert(e)
}

// declassify removes e from whichever of {heap, classes} currently holds
// it.
func (s *Space) declassify(e *Extent) {
	if e.Cnt > s.largeThresh {
		s.heap.remove(e)
		return
	}
	s.classes.remove(e)
}

// insertAllocatable merges ext against the offset tree's neighbors, removes
// any absorbed donors from their heap/class-LRU homes, and inserts the
// final merged extent into the offset tree plus its heap-or-LRU home. This
// is the shared tail of compoundFree.
func (s *Space) insertAllocatable(ext Extent) error {
	res, err := mergeFreeExt(s.offset, ext, false)
	if err != nil {
		return err
	}
	for _, donor := range res.absorbed {
		s.offset.delete(donor.Off)
		s.declassify(donor)
	}
	merged := &Extent{Off: res.merged.Off, Cnt: res.merged.Cnt, Age: res.merged.Age}
	s.offset.insert(merged)
	s.classify(merged)
	return nil
}

// compoundFree is C3's compound_free: insert ext into the allocatable
// indexes, honoring flags.
func (s *Space) compoundFree(ext Extent, flags Flags) error {
	if flags&GenAge != 0 {
		ext.Age = Age(s.clk.NowMS())
	}
	if flags&NoMerge != 0 {
		res, err := mergeFreeExt(s.offset, ext, true)
		if err != nil {
			return err
		}
		merged := &Extent{Off: res.merged.Off, Cnt: res.merged.Cnt, Age: res.merged.Age}
		s.offset.insert(merged)
		s.classify(merged)
		return nil
	}
	return s.insertAllocatable(ext)
}

// persistentFree is C3's persistent_free: merge against the persistent free
// map and write the merged record, always with age=Frozen. In this
// reference implementation "transactional" means the caller has already
// opened a txn.Tx; no separate journal entry is modeled since the
// persistent map itself is the only state being mutated and its previous
// contents are restorable by the caller's txn.Tx undo log if the caller
// logged it via Add before calling this.
func (s *Space) persistentFree(ext Extent) error {
	ext.Age = AgeFrozen
	res, err := mergeFreeExt(s.persistent, ext, false)
	if err != nil {
		return err
	}
	for _, donor := range res.absorbed {
		s.persistent.delete(donor.Off)
	}
	s.persistent.insert(&Extent{Off: res.merged.Off, Cnt: res.merged.Cnt, Age: AgeFrozen})
	return nil
}

// aggregatedFree is C3's aggregated_free: insert ext into the quarantine.
func (s *Space) aggregatedFree(ext Extent) error {
	ext.Age = Age(s.clk.NowMS())
	res, err := mergeFreeExt(s.aggOffset, ext, false)
	if err != nil {
		return err
	}
	for _, donor := range res.absorbed {
		s.aggOffset.delete(donor.Off)
		removeLRUElement(s.aggLRU, donor)
	}
	merged := &Extent{Off: res.merged.Off, Cnt: res.merged.Cnt, Age: res.merged.Age}
	s.aggOffset.insert(merged)
	s.aggLRU.PushBack(merged)
	return nil
}

func removeLRUElement(l *list.List, target *Extent) {
	for el := l.Front(); el != nil; el = el.Next() {
		if el.Value.(*Extent) == target {
			l.Remove(el)
			return
		}
	}
}

// PersistentFreeExtents returns every extent in the simulated persistent
// free map, in offset order. Used by tests and by crash-replay simulation.
func (s *Space) PersistentFreeExtents() []Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Extent
	for _, e := range s.persistent.all() {
		out = append(out, *e)
	}
	return out
}

// AllocatableExtents returns every extent currently in the offset tree
// (the authoritative allocatable set), in offset order.
func (s *Space) AllocatableExtents() []Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Extent
	for _, e := range s.offset.all() {
		out = append(out, *e)
	}
	return out
}

// QuarantineExtents returns every extent currently in the aggregate LRU, in
// LRU (insertion) order.
func (s *Space) QuarantineExtents() []Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Extent
	for el := s.aggLRU.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Extent))
	}
	return out
}
