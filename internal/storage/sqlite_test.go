// ABOUTME: Tests for the SQLite article store
// ABOUTME: Covers merge change sets, status idempotency, unread counts, filters, and FTS5 search

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/feedsync/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "DB.sqlite3"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func item(uid, title string) models.ParsedItem {
	return models.ParsedItem{UniqueID: uid, Title: title, ContentHTML: "<p>" + title + "</p>"}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "DB.sqlite3")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestMergeReportsNewAndUpdated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	changes, err := store.Merge(ctx, "feed-1", []models.ParsedItem{item("a", "A"), item("b", "B"), item("a", "dup")}, false)
	require.NoError(t, err)
	require.Len(t, changes.New, 2)
	assert.Empty(t, changes.Updated)
	for _, a := range changes.New {
		assert.False(t, a.Status.Read, "merged articles start unread")
		assert.Equal(t, "feed-1", a.FeedID)
	}

	changes, err = store.Merge(ctx, "feed-1", []models.ParsedItem{item("a", "A"), item("b", "B changed")}, false)
	require.NoError(t, err)
	assert.Empty(t, changes.New)
	require.Len(t, changes.Updated, 1)
	assert.Equal(t, "B changed", changes.Updated[0].Title)

	changes, err = store.Merge(ctx, "feed-1", []models.ParsedItem{item("a", "A"), item("b", "B changed")}, false)
	require.NoError(t, err)
	assert.True(t, changes.IsEmpty())
}

func TestMergeDeleteOlderExpiresAfterCycles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	changes, err := store.Merge(ctx, "f", []models.ParsedItem{item("old", "Old"), item("starred", "S"), item("unread", "U")}, true)
	require.NoError(t, err)
	ids := map[string]string{}
	for _, a := range changes.New {
		ids[a.UniqueID] = a.ID
	}
	_, err = store.MarkStatus(ctx, []string{ids["old"], ids["starred"]}, models.StatusRead, true)
	require.NoError(t, err)
	_, err = store.MarkStatus(ctx, []string{ids["starred"]}, models.StatusStarred, true)
	require.NoError(t, err)

	fresh := []models.ParsedItem{item("new", "New")}
	for i := 1; i < StaleMergeCycles; i++ {
		changes, err = store.Merge(ctx, "f", fresh, true)
		require.NoError(t, err)
		assert.Empty(t, changes.Deleted, "cycle %d should not delete yet", i)
	}

	changes, err = store.Merge(ctx, "f", fresh, true)
	require.NoError(t, err)
	require.Len(t, changes.Deleted, 1)
	assert.Equal(t, ids["old"], changes.Deleted[0].ID)

	remaining, err := store.FetchArticles(ctx, ArticleFilter{FeedIDs: []string{"f"}})
	require.NoError(t, err)
	assert.Len(t, remaining, 3, "starred and unread articles survive")
}

func TestMergeKeepsExistingStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	remote := models.ParsedItem{SyncServiceID: "r1", UniqueID: "r1", Title: "Remote"}
	created, err := store.CreateStatusesIfAbsent(ctx, []string{"r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, created)

	changes, err := store.MergeMultiFeed(ctx, map[string][]models.ParsedItem{"f": {remote}}, false)
	require.NoError(t, err)
	require.Len(t, changes.New, 1)
	assert.True(t, changes.New[0].Status.Read, "pre-existing read status wins over the merge default")
}

func TestMergeMultiFeedDefaultRead(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	changes, err := store.MergeMultiFeed(ctx, map[string][]models.ParsedItem{
		"f1": {item("a", "A")},
		"f2": {item("b", "B")},
	}, true)
	require.NoError(t, err)
	require.Len(t, changes.New, 2)
	assert.Equal(t, []string{"f1", "f2"}, changes.FeedIDs())

	counts, err := store.AllUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCreateStatusesIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids := []string{"x", "y", "y"}
	created, err := store.CreateStatusesIfAbsent(ctx, ids)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, created)

	_, err = store.MarkStatus(ctx, []string{"x"}, models.StatusRead, false)
	require.NoError(t, err)

	created, err = store.CreateStatusesIfAbsent(ctx, ids)
	require.NoError(t, err)
	assert.Empty(t, created)

	statuses, err := store.Statuses(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.False(t, statuses["x"].Read, "existing status must not be overwritten")
	assert.True(t, statuses["y"].Read)
	assert.False(t, statuses["y"].Starred)
}

func TestMarkStatusReturnsOnlyChanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	changes, err := store.Merge(ctx, "f", []models.ParsedItem{item("a", "A"), item("b", "B")}, false)
	require.NoError(t, err)
	ids := models.ArticleIDs(changes.New)

	changed, err := store.MarkStatus(ctx, ids[:1], models.StatusRead, true)
	require.NoError(t, err)
	assert.Equal(t, ids[:1], changed)

	changed, err = store.MarkStatus(ctx, ids, models.StatusRead, true)
	require.NoError(t, err)
	assert.Equal(t, ids[1:], changed)

	changed, err = store.MarkStatus(ctx, []string{"unknown"}, models.StatusRead, true)
	require.NoError(t, err)
	assert.Empty(t, changed)

	_, err = store.MarkStatus(ctx, ids, models.StatusKey("bogus"), true)
	assert.Error(t, err)
}

func TestUnreadCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Merge(ctx, "f1", []models.ParsedItem{item("a", "A"), item("b", "B")}, false)
	require.NoError(t, err)
	_, err = store.Merge(ctx, "f2", []models.ParsedItem{item("c", "C")}, false)
	require.NoError(t, err)

	n, err := store.UnreadCount(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := store.UnreadCounts(ctx, []string{"f2", "empty"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"f2": 1, "empty": 0}, counts)

	all, err := store.AllUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"f1": 2, "f2": 1}, all)
}

func TestFetchArticlesFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	yesterday := time.Now().Add(-36 * time.Hour)
	now := time.Now()
	oldItem := item("old", "Old news about gophers")
	oldItem.DatePublished = &yesterday
	newItem := item("new", "Fresh rust notes")
	newItem.DatePublished = &now

	changes, err := store.Merge(ctx, "f", []models.ParsedItem{oldItem, newItem}, false)
	require.NoError(t, err)
	byUID := map[string]string{}
	for _, a := range changes.New {
		byUID[a.UniqueID] = a.ID
	}
	_, err = store.MarkStatus(ctx, []string{byUID["old"]}, models.StatusStarred, true)
	require.NoError(t, err)

	all, err := store.FetchArticles(ctx, ArticleFilter{FeedIDs: []string{"f"}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, byUID["new"], all[0].ID, "newest first")

	starred, err := store.FetchArticles(ctx, ArticleFilter{StarredOnly: true})
	require.NoError(t, err)
	require.Len(t, starred, 1)
	assert.Equal(t, byUID["old"], starred[0].ID)

	since := now.Add(-time.Hour)
	recent, err := store.FetchArticles(ctx, ArticleFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, byUID["new"], recent[0].ID)

	limited, err := store.FetchArticles(ctx, ArticleFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	hits, err := store.FetchArticles(ctx, ArticleFilter{Search: "gophers"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, byUID["old"], hits[0].ID)

	within, err := store.FetchArticles(ctx, ArticleFilter{Search: "notes", ArticleIDs: []string{byUID["old"]}})
	require.NoError(t, err)
	assert.Empty(t, within)

	// Quotes in user input must not break the FTS query.
	_, err = store.FetchArticles(ctx, ArticleFilter{Search: `"unbalanced`})
	require.NoError(t, err)

	blank, err := store.FetchArticles(ctx, ArticleFilter{Search: "   "})
	require.NoError(t, err)
	assert.Len(t, blank, 2, "blank search matches without an FTS condition")
}

func TestFeedIDsForArticlesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	changes, err := store.Merge(ctx, "f", []models.ParsedItem{item("a", "A")}, false)
	require.NoError(t, err)
	id := changes.New[0].ID

	feeds, err := store.FeedIDsForArticles(ctx, []string{id, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{id: "f"}, feeds)

	require.NoError(t, store.DeleteArticlesForFeeds(ctx, []string{"f"}))
	articles, err := store.FetchArticles(ctx, ArticleFilter{})
	require.NoError(t, err)
	assert.Empty(t, articles)

	unread, err := store.ArticleIDsWithStatus(ctx, models.StatusRead, false)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, unread, "statuses outlive their articles")
}
