// ABOUTME: Tests for the remote backend against an in-memory sync service
// ABOUTME: Covers tree reconciliation, status push and pull, incremental tokens, and behavior limits

package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var techFolder = RemoteFolder{ID: "label/Tech", Name: "Tech"}

// seededService has feed f1 in Tech with entries e1, e2 and top-level feed
// f2 with entry e3. e1 and e3 are unread, e2 is starred.
func seededService() *fakeService {
	svc := newFakeService()
	svc.folders = []RemoteFolder{techFolder}
	svc.subs = []Subscription{
		{ID: "s1", FeedID: "f1", URL: "https://a.example/feed", Title: "A", Folders: []RemoteFolder{techFolder}},
		{ID: "s2", FeedID: "f2", URL: "https://b.example/feed", Title: "B"},
	}
	svc.addEntry("f1", "e1", "Entry one")
	svc.addEntry("f1", "e2", "Entry two")
	svc.addEntry("f2", "e3", "Entry three")
	svc.unread = []string{"e1", "e3"}
	svc.starred = []string{"e2"}
	return svc
}

func newTestRemote(t *testing.T, kind Kind, svc RemoteService) *Remote {
	t.Helper()
	r, err := NewRemote(kind, Deps{Service: svc})
	require.NoError(t, err)
	return r
}

func TestRemoteRefreshBuildsTreeAndStatuses(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()

	require.NoError(t, r.RefreshAll(ctx, h))

	tech := h.tree.ExistingFolder("Tech")
	require.NotNil(t, tech)
	assert.Equal(t, "label/Tech", tech.ExternalID())
	require.Len(t, tech.TopLevelFeeds(), 1)
	assert.Equal(t, "f1", tech.TopLevelFeeds()[0].ID)
	assert.Equal(t, "s1", tech.TopLevelFeeds()[0].ExternalID)
	require.Len(t, h.tree.TopLevelFeeds(), 1)
	assert.Equal(t, "f2", h.tree.TopLevelFeeds()[0].ID)

	articles, err := h.store.FetchArticles(ctx, storage.ArticleFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e1", "e2", "e3"}, models.ArticleIDs(articles))

	assert.ElementsMatch(t, []string{"e1", "e3"}, h.idsWith(t, models.StatusRead, false))
	assert.ElementsMatch(t, []string{"e2"}, h.idsWith(t, models.StatusStarred, true))

	counts, err := h.store.AllUnreadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"f1": 1, "f2": 1}, counts)

	assert.Equal(t, fullSyncTasks, h.maxTotal)
	assert.Zero(t, h.progress.Snapshot().Total)
	assert.Empty(t, svc.sinceSeen)
}

func TestRemoteRefreshAppliesRemoteChanges(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	// Another client reads e1 and stars e3.
	svc.unread = []string{"e3"}
	svc.starred = []string{"e2", "e3"}
	require.NoError(t, r.RefreshAll(ctx, h))

	assert.ElementsMatch(t, []string{"e3"}, h.idsWith(t, models.StatusRead, false))
	assert.ElementsMatch(t, []string{"e2", "e3"}, h.idsWith(t, models.StatusStarred, true))
}

func TestRemotePullKeepsPendingChanges(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	_, err := h.store.MarkStatus(ctx, []string{"e1"}, models.StatusRead, true)
	require.NoError(t, err)
	require.NoError(t, r.MarkArticles(ctx, h, []string{"e1"}, models.StatusRead, true))

	// The service still reports e1 unread because the change was not sent.
	require.NoError(t, r.pullStatus(ctx, h, models.StatusRead, false, []string{"e1", "e3"}))
	assert.ElementsMatch(t, []string{"e3"}, h.idsWith(t, models.StatusRead, false))
}

func TestRemoteSendArticleStatus(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()

	require.NoError(t, r.MarkArticles(ctx, h, []string{"e1", "e3"}, models.StatusRead, true))
	require.NoError(t, r.MarkArticles(ctx, h, []string{"e1"}, models.StatusStarred, true))
	assert.Empty(t, svc.sent)

	require.NoError(t, r.SendArticleStatus(ctx, h))
	assert.ElementsMatch(t, []sentStatus{
		{ids: []string{"e1", "e3"}, key: models.StatusRead, flag: true},
		{ids: []string{"e1"}, key: models.StatusStarred, flag: true},
	}, svc.sent)
	assert.Empty(t, svc.unread)

	count, err := h.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoteSendFailureKeepsQueue(t *testing.T) {
	svc := seededService()
	svc.failSend = errors.New("service unavailable")
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()

	require.NoError(t, r.MarkArticles(ctx, h, []string{"e1"}, models.StatusRead, true))
	assert.Error(t, r.SendArticleStatus(ctx, h))

	count, err := h.queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Rows are eligible for the next attempt.
	svc.failSend = nil
	require.NoError(t, r.SendArticleStatus(ctx, h))
	count, err = h.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoteMarkArticlesSendsAtThreshold(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)

	ids := make([]string, sendThreshold)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%03d", i)
	}
	require.NoError(t, r.MarkArticles(context.Background(), h, ids, models.StatusRead, true))
	require.Len(t, svc.sent, 1)
	assert.Len(t, svc.sent[0].ids, sendThreshold)
}

func TestRemoteIncrementalToken(t *testing.T) {
	svc := seededService()
	svc.unread = []string{"e3"}
	svc.changes = &ChangeSet{
		Entries: []Entry{{FeedID: "f1", Item: models.ParsedItem{SyncServiceID: "e4", Title: "Entry four"}}},
		Read:    []string{"e1"},
		Token:   "t1",
	}
	h := newTestHost(t, "inoreader-1")
	r := newTestRemote(t, KindInoreader, svc)
	ctx := context.Background()

	require.NoError(t, r.RefreshAll(ctx, h))
	assert.Equal(t, "t1", h.SyncToken())
	assert.Equal(t, incrementalTasks, h.maxTotal)

	articles, err := h.store.FetchArticles(ctx, storage.ArticleFilter{ArticleIDs: []string{"e4"}})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.False(t, articles[0].IsUnread())

	require.NoError(t, r.RefreshAll(ctx, h))
	assert.Equal(t, []string{"", "t1"}, svc.sinceSeen)
	assert.Equal(t, "t1", h.SyncToken())
}

func TestRemoteRefreshRemovesDroppedSubscriptions(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	svc.subs = svc.subs[:1]
	svc.subs[0].Folders = nil
	svc.folders = nil
	svc.unread = []string{"e1"}
	require.NoError(t, r.RefreshAll(ctx, h))

	assert.Nil(t, h.tree.ExistingFeedByID("f2"))
	assert.Nil(t, h.tree.ExistingFolder("Tech"))
	require.Len(t, h.tree.TopLevelFeeds(), 1)
	assert.Equal(t, "f1", h.tree.TopLevelFeeds()[0].ID)

	articles, err := h.store.FetchArticles(ctx, storage.ArticleFilter{FeedIDs: []string{"f2"}})
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestRemoteSingleFolderPerFeed(t *testing.T) {
	svc := seededService()
	other := RemoteFolder{ID: "label/Other", Name: "Other"}
	svc.folders = append(svc.folders, other)
	svc.subs[0].Folders = []RemoteFolder{techFolder, other}
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	f1 := h.tree.ExistingFeedByID("f1")
	require.NotNil(t, f1)
	assert.Len(t, h.tree.ContainersOf(f1), 1)

	otherFolder := h.tree.ExistingFolder("Other")
	require.NotNil(t, otherFolder)
	err := r.AddFeed(ctx, h, f1, otherFolder)
	assert.True(t, errors.Is(err, syncerr.ErrNotSupported))
}

func TestRemoteCreateAndRemoveFeed(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	tech := h.tree.ExistingFolder("Tech")
	feed, err := r.CreateFeed(ctx, h, "https://c.example/feed", "Mine", tech)
	require.NoError(t, err)
	assert.Equal(t, "feed-https://c.example/feed", feed.ID)
	assert.Equal(t, "Mine", feed.NameForDisplay())
	assert.True(t, tech.ContainsFeed(feed))
	require.Len(t, svc.subs, 3)
	assert.Equal(t, "Mine", svc.subs[2].Title)
	assert.Equal(t, []RemoteFolder{techFolder}, svc.subs[2].Folders)

	_, err = r.CreateFeed(ctx, h, "https://c.example/feed", "", tech)
	assert.True(t, errors.Is(err, syncerr.ErrAlreadySubscribed))

	_, err = r.CreateFeed(ctx, h, "https://missing.example/feed", "", tech)
	assert.True(t, errors.Is(err, syncerr.ErrFeedNotFound))

	require.NoError(t, r.RemoveFeed(ctx, h, feed, tech))
	assert.Len(t, svc.subs, 2)
	assert.Nil(t, h.tree.ExistingFeedByID(feed.ID))
}

func TestRemoteFreshRSSRequiresFolder(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "freshrss-1")
	r := newTestRemote(t, KindFreshRSS, svc)
	ctx := context.Background()

	_, err := r.CreateFeed(ctx, h, "https://c.example/feed", "", h.tree)
	assert.True(t, errors.Is(err, syncerr.ErrNotSupported))

	folder, err := r.CreateFolder(ctx, h, "News")
	require.NoError(t, err)
	assert.Equal(t, "label/News", folder.ExternalID())
	_, err = r.CreateFeed(ctx, h, "https://c.example/feed", "", folder)
	require.NoError(t, err)

	err = r.ImportOPML(ctx, h, []opml.Outline{{Text: "x", Type: "rss", XMLURL: "https://d.example/feed"}})
	assert.True(t, errors.Is(err, syncerr.ErrNotSupported))
}

func TestRemoteImportOPML(t *testing.T) {
	svc := newFakeService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)

	outlines := []opml.Outline{
		{Text: "Top", Type: "rss", XMLURL: "https://top.example/feed"},
		{Text: "Tech", Children: []opml.Outline{
			{Text: "X", Type: "rss", XMLURL: "https://x/feed.xml"},
			{Text: "X again", Type: "rss", XMLURL: "https://x/feed.xml"},
		}},
	}
	require.NoError(t, r.ImportOPML(context.Background(), h, outlines))

	assert.Len(t, svc.subs, 2)
	tech := h.tree.ExistingFolder("Tech")
	require.NotNil(t, tech)
	assert.Len(t, tech.TopLevelFeeds(), 1)
	require.Len(t, h.tree.TopLevelFeeds(), 1)
	assert.Equal(t, "Top", h.tree.TopLevelFeeds()[0].NameForDisplay(), "text-only outline names the feed")
	top, ok := lo.Find(svc.subs, func(s Subscription) bool { return s.URL == "https://top.example/feed" })
	require.True(t, ok)
	assert.Equal(t, "Top", top.Title)
}

func TestRemoteFolderRenameAndRemove(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx, h))

	tech := h.tree.ExistingFolder("Tech")
	require.NoError(t, r.RenameFolder(ctx, h, tech, "Technology"))
	assert.Equal(t, "Technology", svc.folders[0].Name)
	assert.NotNil(t, h.tree.ExistingFolder("Technology"))

	require.NoError(t, r.RemoveFolder(ctx, h, tech))
	assert.Empty(t, svc.folders)
	assert.Len(t, svc.subs, 1)
	assert.Nil(t, h.tree.ExistingFeedByID("f1"))
}

func TestRemoteValidateCredentials(t *testing.T) {
	r := newTestRemote(t, KindFeedbin, newFakeService())

	creds, err := r.ValidateCredentials(context.Background(), credentials.Credentials{Type: credentials.TypeBasic, Username: "me", Secret: "good"}, "")
	require.NoError(t, err)
	assert.Equal(t, "me", creds.Username)

	_, err = r.ValidateCredentials(context.Background(), credentials.Credentials{Username: "me", Secret: "bad"}, "")
	assert.True(t, syncerr.IsCredentials(err))
}

func TestRemoteSuspendAndDelete(t *testing.T) {
	svc := seededService()
	h := newTestHost(t, "feedbin-1")
	r := newTestRemote(t, KindFeedbin, svc)
	ctx := context.Background()

	r.SuspendNetwork()
	require.NoError(t, r.RefreshAll(ctx, h))
	assert.Empty(t, h.tree.FlattenedFeeds())
	r.Resume()

	require.NoError(t, r.MarkArticles(ctx, h, []string{"e1"}, models.StatusRead, true))
	require.NoError(t, r.AccountWillBeDeleted(ctx, h))
	count, err := h.queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
