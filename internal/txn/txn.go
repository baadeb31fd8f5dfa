// Package txn is the reference implementation of the transaction primitive
// (C2): begin/add/commit/abort with end-of-transaction callbacks. It is
// modeled structurally on an undo-log transaction (append a pre-image before
// every mutation, replay the log in reverse on abort) but reworked into
// idiomatic, GC-safe Go: no unsafe.Pointer, no persistent-memory runtime
// extensions. A logged mutation is a pair of plain closures (apply, undo)
// rather than a raw pointer and a byte-for-byte copy of its previous
// contents.
package txn

import (
	"errors"
	"sync"
)

// Stage identifies where in a transaction's lifecycle a callback runs.
type Stage int

const (
	// StageNone fires once after a successful commit, regardless of which
	// stage registered it; it never fires on abort. This is the callback
	// stage the quarantine/migrate pipeline registers on.
	StageNone Stage = iota
	// StageOnCommit fires immediately before StageNone callbacks, while the
	// transaction is still considered "committing".
	StageOnCommit
	// StageOnAbort fires only if the transaction is aborted.
	StageOnAbort
)

// ErrNoTransaction is returned by Add once the transaction has committed or
// aborted, and by End when no Enter level is open.
var ErrNoTransaction = errors.New("txn: no active transaction")

// ErrAborted is returned by Commit if the transaction was already aborted.
var ErrAborted = errors.New("txn: transaction already aborted")

// logEntry is one undo-log record: apply has already run by the time it is
// appended; undo reverses it. Grounded on undoTx's {ptr,data,size} triple,
// reworked as a closure pair so no raw memory is copied or aliased.
type logEntry struct {
	undo func()
}

// callback is one registered end-of-transaction hook.
type callback struct {
	stage Stage
	fn    func()
}

// Tx is a single nestable transaction, matching the source's "only the
// outermost End() commits" semantics (tx.Begin()/tx.End() nesting via a
// level counter).
type Tx struct {
	mu        sync.Mutex
	level     int
	aborted   bool
	done      bool
	log       []logEntry
	callbacks []callback
	// registered tracks idempotency keys so a single logical hook (e.g. the
	// quarantine's migrateEndCB) is only queued once per transaction even if
	// Free is called multiple times before commit.
	registered map[string]bool
}

// Begin returns a new transaction; nesting levels are opened with Enter.
func Begin() *Tx {
	return &Tx{registered: make(map[string]bool)}
}

// Enter increments the nesting level, mirroring undoTx.Begin().
func (t *Tx) Enter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level++
}

// Add logs a mutation: apply runs immediately, undo is retained in case the
// transaction is later aborted. Add must be called while the transaction is
// open (after Enter, before the outermost End/Commit/Abort).
func (t *Tx) Add(apply, undo func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrNoTransaction
	}
	apply()
	t.log = append(t.log, logEntry{undo: undo})
	return nil
}

// AddCallback registers an end-of-transaction hook. Only StageNone and
// StageOnCommit hooks run on a successful Commit; only StageOnAbort hooks
// run on Abort. key, if non-empty, makes registration idempotent per
// transaction (a second AddCallback with the same key is a no-op, whatever
// its stage),
// matching the source's "unless already registered since the last drain"
// requirement for migrate_end_cb.
func (t *Tx) AddCallback(stage Stage, key string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key != "" {
		dedupKey := key
		if t.registered[dedupKey] {
			return
		}
		t.registered[dedupKey] = true
	}
	t.callbacks = append(t.callbacks, callback{stage: stage, fn: fn})
}

// Stage reports the transaction's current lifecycle stage.
func (t *Tx) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return StageOnAbort
	}
	return StageOnCommit
}

// End is the nested-transaction counterpart to Enter: only the outermost
// End commits, matching undoTx.End()'s nesting semantics. Callers that want
// a single top-level transaction should use Commit/Abort directly instead.
func (t *Tx) End() error {
	t.mu.Lock()
	if t.level == 0 {
		t.mu.Unlock()
		return ErrNoTransaction
	}
	t.level--
	outermost := t.level == 0
	t.mu.Unlock()
	if !outermost {
		return nil
	}
	return t.Commit()
}

// Commit finalizes the transaction: it discards the undo log (nothing to
// unwind) and runs every StageOnCommit then StageNone callback in
// registration order. Commit never runs StageOnAbort callbacks.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.aborted {
		t.mu.Unlock()
		return ErrAborted
	}
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	cbs := t.callbacks
	t.mu.Unlock()

	for _, stage := range []Stage{StageOnCommit, StageNone} {
		for _, cb := range cbs {
			if cb.stage == stage {
				cb.fn()
			}
		}
	}
	return nil
}

// Abort replays the undo log in reverse (undoTx.abort()'s exact order) and
// runs StageOnAbort callbacks. StageNone and StageOnCommit callbacks never
// run on abort, by construction of the end-callback contract.
func (t *Tx) Abort() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	t.aborted = true
	log := t.log
	cbs := t.callbacks
	t.mu.Unlock()

	for i := len(log) - 1; i >= 0; i-- {
		if log[i].undo != nil {
			log[i].undo()
		}
	}
	for _, cb := range cbs {
		if cb.stage == StageOnAbort {
			cb.fn()
		}
	}
	return nil
}
