// ABOUTME: Tests for the pending status queue
// ABOUTME: Covers select/delete/reset cycles and replacement of queued changes

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/feedsync/internal/models"
)

func newTestQueue(t *testing.T) *StatusQueue {
	t.Helper()
	q, err := NewStatusQueue(filepath.Join(t.TempDir(), "Sync.sqlite3"))
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueueSelectDelete(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, []PendingStatus{
		{ArticleID: "a", Key: models.StatusRead, Flag: true},
		{ArticleID: "b", Key: models.StatusStarred, Flag: true},
	}))

	selected, err := q.Select(ctx, 0)
	require.NoError(t, err)
	require.Len(t, selected, 2)

	again, err := q.Select(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, again, "selected rows are not handed out twice")

	require.NoError(t, q.Delete(ctx, selected))
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueResetAndRequeue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, []PendingStatus{{ArticleID: "a", Key: models.StatusRead, Flag: true}}))
	selected, err := q.Select(ctx, 1)
	require.NoError(t, err)
	require.Len(t, selected, 1)

	// A newer change arrives while the send is in flight.
	require.NoError(t, q.Enqueue(ctx, []PendingStatus{{ArticleID: "a", Key: models.StatusRead, Flag: false}}))
	require.NoError(t, q.Delete(ctx, selected))

	pending, err := q.PendingIDs(ctx, models.StatusRead)
	require.NoError(t, err)
	assert.True(t, pending["a"], "requeued change survives the delete")

	next, err := q.Select(ctx, 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.False(t, next[0].Flag)

	require.NoError(t, q.ResetSelected(ctx))
	retry, err := q.Select(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, retry, 1)
}
