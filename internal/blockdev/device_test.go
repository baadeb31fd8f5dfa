package blockdev

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Unmap(context.Background(), 100, 200))
	require.NoError(t, m.Unmap(context.Background(), 300, 400))
	require.Equal(t, []Call{{ByteOff: 100, ByteCnt: 200}, {ByteOff: 300, ByteCnt: 400}}, m.Calls)
}

func TestMockUnmapRespectsContextCancellationWhileBlocked(t *testing.T) {
	m := NewMock()
	m.Block = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Unmap(ctx, 0, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, m.Calls)
}
