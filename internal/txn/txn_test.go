package txn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitAppliesAndRunsOnCommitCallbacks(t *testing.T) {
	tx := Begin()
	tx.Enter()

	var applied, committed, aborted bool
	require.NoError(t, tx.Add(func() { applied = true }, func() { applied = false }))
	tx.AddCallback(StageOnCommit, "cb1", func() { committed = true })
	tx.AddCallback(StageOnAbort, "cb2", func() { aborted = true })

	require.True(t, applied)
	require.NoError(t, tx.Commit())
	require.True(t, committed)
	require.False(t, aborted)
}

func TestAbortReplaysUndoInReverseAndRunsOnAbortOnly(t *testing.T) {
	tx := Begin()
	tx.Enter()

	var order []int
	require.NoError(t, tx.Add(func() {}, func() { order = append(order, 1) }))
	require.NoError(t, tx.Add(func() {}, func() { order = append(order, 2) }))

	var onCommitRan, onAbortRan bool
	tx.AddCallback(StageOnCommit, "commit-cb", func() { onCommitRan = true })
	tx.AddCallback(StageOnAbort, "abort-cb", func() { onAbortRan = true })

	require.NoError(t, tx.Abort())
	require.Equal(t, []int{2, 1}, order)
	require.True(t, onAbortRan)
	require.False(t, onCommitRan)

	// A transaction is single-use: Commit after Abort fails with ErrAborted.
	require.ErrorIs(t, tx.Commit(), ErrAborted)
}

func TestStageNoneCallbackNeverRunsOnAbort(t *testing.T) {
	tx := Begin()
	tx.Enter()

	var ran bool
	tx.AddCallback(StageNone, "migrate", func() { ran = true })
	require.NoError(t, tx.Abort())
	require.False(t, ran)
}

func TestStageNoneCallbackRunsOnCommit(t *testing.T) {
	tx := Begin()
	tx.Enter()

	var ran bool
	tx.AddCallback(StageNone, "migrate", func() { ran = true })
	require.NoError(t, tx.Commit())
	require.True(t, ran)
}

func TestCallbackRegistrationIsIdempotentPerKey(t *testing.T) {
	tx := Begin()
	tx.Enter()

	calls := 0
	tx.AddCallback(StageNone, "migrate", func() { calls++ })
	tx.AddCallback(StageNone, "migrate", func() { calls++ })
	require.NoError(t, tx.Commit())
	require.Equal(t, 1, calls)
}

func TestAddAfterDoneFails(t *testing.T) {
	tx := Begin()
	tx.Enter()
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Add(func() {}, func() {}), ErrNoTransaction)
}
