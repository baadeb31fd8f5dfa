// Package blobstore gives value-tree leaves' opaque payload_ref a concrete,
// testable home: an append-only, segment-rolling payload table keyed by a
// monotonically increasing item index. SPEC_FULL.md (C9)
// scopes payload reclamation out of aggregation/discard; this package only
// stores and retrieves blobs, it never deletes one.
package blobstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/golang/snappy"
	"github.com/rcrowley/go-metrics"

	"github.com/daos-stack/voscore/internal/vlog"
)

var (
	// ErrClosed is returned by Append/Retrieve once Close has run.
	ErrClosed = errors.New("blobstore: closed")
	// ErrOutOfBounds is returned when item is not yet stored.
	ErrOutOfBounds = errors.New("blobstore: out of bounds")
)

type offsetEntry struct {
	fileNum uint16
	offset  uint64
}

const offsetEntrySize = 12

func (i *offsetEntry) unmarshal(b []byte) {
	i.fileNum = binary.BigEndian.Uint16(b[:4])
	i.offset = binary.BigEndian.Uint64(b[4:12])
}

func (i *offsetEntry) marshal() []byte {
	b := make([]byte, offsetEntrySize)
	binary.BigEndian.PutUint16(b[:4], i.fileNum)
	binary.BigEndian.PutUint64(b[4:12], i.offset)
	return b
}

// Table is a single chained payload table: a data file (snappy-compressed
// blobs) plus an index file (fixed-size offset records), with an
// in-memory read cache in front of the data files. Grounded on the
// teacher's core/rawdb/freezer_table.go freezerTable, generalized from a
// "chain segment" table to a generic payload table keyed by item index.
type Table struct {
	lock sync.RWMutex

	head    *os.File
	files   map[uint16]*os.File
	id      uint16
	offsets *os.File

	items uint64
	bytes uint64

	name string
	path string

	maxSegmentSize uint64
	readCache      *fastcache.Cache

	readMeter  metrics.Meter
	writeMeter metrics.Meter
	log        vlog.Logger
}

// Open opens (creating if necessary) a payload table named name under dir,
// repairing any head/index desync left by a prior crash, matching the
// teacher's newTable + repair sequence.
func Open(dir, name string, maxSegmentSize uint64, readCacheBytes int) (*Table, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir: %w", err)
	}
	offsets, err := os.OpenFile(filepath.Join(dir, name+".cidx"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open index: %w", err)
	}
	t := &Table{
		offsets:        offsets,
		files:          make(map[uint16]*os.File),
		name:           name,
		path:           dir,
		maxSegmentSize: maxSegmentSize,
		readCache:      fastcache.New(readCacheBytes),
		readMeter:      metrics.NewRegisteredMeter("blobstore/"+name+"/read", nil),
		writeMeter:     metrics.NewRegisteredMeter("blobstore/"+name+"/write", nil),
		log:            vlog.New("pkg", "blobstore", "table", name),
	}
	if err := t.repair(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// repair cross-checks the head and index files and truncates both to their
// common durable length, exactly mirroring freezerTable.repair.
func (t *Table) repair() error {
	buf := make([]byte, offsetEntrySize)

	stat, err := t.offsets.Stat()
	if err != nil {
		return err
	}
	if stat.Size() == 0 {
		if _, err := t.offsets.Write(buf); err != nil {
			return err
		}
	}
	if overflow := stat.Size() % offsetEntrySize; overflow != 0 {
		t.offsets.Truncate(stat.Size() - overflow)
	}
	if stat, err = t.offsets.Stat(); err != nil {
		return err
	}
	offsetsSize := stat.Size()

	var last offsetEntry
	t.offsets.ReadAt(buf, offsetsSize-offsetEntrySize)
	last.unmarshal(buf)

	t.head, err = t.getFile(last.fileNum, os.O_RDWR|os.O_CREATE|os.O_APPEND)
	if err != nil {
		return err
	}
	if stat, err = t.head.Stat(); err != nil {
		return err
	}
	contentSize := uint64(stat.Size())
	contentExp := last.offset

	for contentExp != contentSize {
		if contentExp < contentSize {
			t.log.Warn("truncating dangling head", "indexed", contentExp, "stored", contentSize)
			if err := t.head.Truncate(int64(contentExp)); err != nil {
				return err
			}
			contentSize = contentExp
			continue
		}
		t.log.Warn("truncating dangling offsets", "indexed", contentExp, "stored", contentSize)
		if err := t.offsets.Truncate(offsetsSize - offsetEntrySize); err != nil {
			return err
		}
		offsetsSize -= offsetEntrySize
		t.offsets.ReadAt(buf, offsetsSize-offsetEntrySize)
		var prior offsetEntry
		prior.unmarshal(buf)
		if prior.fileNum != last.fileNum {
			if t.head, err = t.getFile(prior.fileNum, os.O_RDWR|os.O_CREATE|os.O_APPEND); err != nil {
				return err
			}
			if stat, err = t.head.Stat(); err != nil {
				return err
			}
			contentSize = uint64(stat.Size())
		}
		last = prior
		contentExp = last.offset
	}
	if err := t.offsets.Sync(); err != nil {
		return err
	}
	if err := t.head.Sync(); err != nil {
		return err
	}
	t.items = uint64(offsetsSize/offsetEntrySize - 1)
	t.bytes = contentSize
	t.log.Debug("payload table opened", "items", t.items, "bytes", t.bytes)
	return nil
}

func (t *Table) getFile(num uint16, flag int) (*os.File, error) {
	if f, ok := t.files[num]; ok {
		return f, nil
	}
	f, err := os.OpenFile(filepath.Join(t.path, fmt.Sprintf("%s.%d.cdat", t.name, num)), flag, 0o644)
	if err != nil {
		return nil, err
	}
	t.files[num] = f
	return f, nil
}

// Append stores blob as the next item and returns its index. The index is
// assigned by the table itself, so callers cannot write out of order; write
// failures are returned as errors rather than panics.
func (t *Table) Append(blob []byte) (uint64, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.offsets == nil || t.head == nil {
		return 0, ErrClosed
	}
	enc := snappy.Encode(nil, blob)
	blen := uint64(len(enc))

	if t.bytes+blen > t.maxSegmentSize {
		next := t.id + 1
		f, err := t.getFile(next, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return 0, err
		}
		t.head = f
		t.bytes = 0
		t.id = next
	}
	if _, err := t.head.Write(enc); err != nil {
		return 0, err
	}
	t.bytes += blen
	idx := offsetEntry{fileNum: t.id, offset: t.bytes}
	if _, err := t.offsets.Write(idx.marshal()); err != nil {
		return 0, err
	}
	t.writeMeter.Mark(int64(blen + offsetEntrySize))
	item := t.items
	t.items++
	return item, nil
}

func (t *Table) getOffsets(item uint64) (*offsetEntry, *offsetEntry, error) {
	buf := make([]byte, offsetEntrySize)
	var start, end offsetEntry
	if _, err := t.offsets.ReadAt(buf, int64(item*offsetEntrySize)); err != nil {
		return nil, nil, err
	}
	start.unmarshal(buf)
	if _, err := t.offsets.ReadAt(buf, int64((item+1)*offsetEntrySize)); err != nil {
		return nil, nil, err
	}
	end.unmarshal(buf)
	if start.fileNum != end.fileNum {
		start = offsetEntry{fileNum: end.fileNum, offset: 0}
	}
	return &start, &end, nil
}

func (t *Table) cacheKey(item uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], item)
	return k[:]
}

// Retrieve returns the decompressed blob stored at item, consulting the
// read cache before touching the data files.
func (t *Table) Retrieve(item uint64) ([]byte, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.offsets == nil || t.head == nil {
		return nil, ErrClosed
	}
	if t.items <= item {
		return nil, ErrOutOfBounds
	}
	key := t.cacheKey(item)
	if v, ok := t.readCache.HasGet(nil, key); ok {
		return v, nil
	}

	start, end, err := t.getOffsets(item)
	if err != nil {
		return nil, err
	}
	f, err := t.getFile(start.fileNum, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	enc := make([]byte, end.offset-start.offset)
	if _, err := f.ReadAt(enc, int64(start.offset)); err != nil {
		return nil, err
	}
	t.readMeter.Mark(int64(len(enc) + 2*offsetEntrySize))

	blob, err := snappy.Decode(nil, enc)
	if err != nil {
		return nil, fmt.Errorf("blobstore: decode item %d: %w", item, err)
	}
	t.readCache.Set(key, blob)
	return blob, nil
}

// Items reports how many blobs have been appended.
func (t *Table) Items() uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.items
}

// Sync flushes the head and index files to disk.
func (t *Table) Sync() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.offsets.Sync(); err != nil {
		return err
	}
	return t.head.Sync()
}

// Close closes every open file handle.
func (t *Table) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	var firstErr error
	if t.offsets != nil {
		if err := t.offsets.Close(); err != nil {
			firstErr = err
		}
		t.offsets = nil
	}
	for _, f := range t.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.head = nil
	return firstErr
}
