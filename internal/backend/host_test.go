// ABOUTME: Test doubles for backend tests: a Host over real SQLite stores and in-memory services
// ABOUTME: fakeService records status pushes and can be told to fail; fakeCloud is a map-backed keyspace

package backend

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/harper/feedsync/internal/charm"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/progress"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/transform"
	"github.com/harper/feedsync/internal/tree"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type testHost struct {
	id           string
	tree         *tree.Tree
	store        *storage.SQLiteStore
	queue        *storage.StatusQueue
	transformers *transform.Registry
	progress     *progress.Tracker
	token        string

	mu       sync.Mutex
	merges   int
	maxTotal int
}

func newTestHost(t *testing.T, id string) *testHost {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "DB.sqlite3"))
	require.NoError(t, err)
	queue, err := storage.NewStatusQueue(filepath.Join(dir, "Sync.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		queue.Close()
	})

	h := &testHost{
		id:           id,
		tree:         tree.New(id),
		store:        store,
		queue:        queue,
		transformers: transform.NewRegistry(),
	}
	h.progress = progress.NewTracker(func(s progress.Snapshot) {
		h.mu.Lock()
		if s.Total > h.maxTotal {
			h.maxTotal = s.Total
		}
		h.mu.Unlock()
	})
	return h
}

func (h *testHost) ID() string                        { return h.id }
func (h *testHost) Name() string                      { return "Test " + h.id }
func (h *testHost) Tree() *tree.Tree                  { return h.tree }
func (h *testHost) Store() storage.ArticleStore       { return h.store }
func (h *testHost) Queue() *storage.StatusQueue       { return h.queue }
func (h *testHost) Transformers() *transform.Registry { return h.transformers }
func (h *testHost) Progress() *progress.Tracker       { return h.progress }
func (h *testHost) Logger() *log.Logger               { return log.New(io.Discard) }
func (h *testHost) SyncToken() string                 { return h.token }
func (h *testHost) SetSyncToken(token string)         { h.token = token }

func (h *testHost) UpdateFromRemote(ctx context.Context, feedID string, items []models.ParsedItem, deleteOlder bool) (models.ArticleChanges, error) {
	h.mu.Lock()
	h.merges++
	h.mu.Unlock()
	return h.store.Merge(ctx, feedID, items, deleteOlder)
}

func (h *testHost) UpdateFromRemoteMultiFeed(ctx context.Context, feedItems map[string][]models.ParsedItem, defaultRead bool) (models.ArticleChanges, error) {
	return h.store.MergeMultiFeed(ctx, feedItems, defaultRead)
}

func (h *testHost) ApplyRemoteStatus(ctx context.Context, ids []string, key models.StatusKey, flag bool) error {
	if _, err := h.store.CreateStatusesIfAbsent(ctx, ids); err != nil {
		return err
	}
	_, err := h.store.MarkStatus(ctx, ids, key, flag)
	return err
}

func (h *testHost) mergeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.merges
}

func (h *testHost) idsWith(t *testing.T, key models.StatusKey, flag bool) []string {
	t.Helper()
	ids, err := h.store.ArticleIDsWithStatus(context.Background(), key, flag)
	require.NoError(t, err)
	return ids
}

type sentStatus struct {
	ids  []string
	key  models.StatusKey
	flag bool
}

// fakeService is an in-memory sync service.
type fakeService struct {
	mu        sync.Mutex
	folders   []RemoteFolder
	subs      []Subscription
	unread    []string
	starred   []string
	entries   map[string]Entry
	changes   *ChangeSet
	sinceSeen []string
	sent      []sentStatus
	failSend  error
}

func newFakeService() *fakeService {
	return &fakeService{entries: make(map[string]Entry)}
}

func (f *fakeService) addEntry(feedID, id, title string) {
	f.entries[id] = Entry{FeedID: feedID, Item: models.ParsedItem{SyncServiceID: id, UniqueID: id, Title: title}}
}

func (f *fakeService) ValidateCredentials(_ context.Context, creds credentials.Credentials, _ string) (*credentials.Credentials, error) {
	if creds.Secret != "good" {
		return nil, &syncerr.CredentialsError{StatusCode: 401}
	}
	return &creds, nil
}

func (f *fakeService) Subscriptions(context.Context) ([]Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Subscription(nil), f.subs...), nil
}

func (f *fakeService) Folders(context.Context) ([]RemoteFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RemoteFolder(nil), f.folders...), nil
}

func (f *fakeService) CreateFolder(_ context.Context, name string) (RemoteFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rf := RemoteFolder{ID: "label/" + name, Name: name}
	f.folders = append(f.folders, rf)
	return rf, nil
}

func (f *fakeService) RenameFolder(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.folders {
		if f.folders[i].ID == id {
			f.folders[i].Name = name
		}
	}
	return nil
}

func (f *fakeService) DeleteFolder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []RemoteFolder
	for _, rf := range f.folders {
		if rf.ID != id {
			kept = append(kept, rf)
		}
	}
	f.folders = kept
	return nil
}

func (f *fakeService) Subscribe(_ context.Context, url string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == "https://missing.example/feed" {
		return Subscription{}, syncerr.ErrFeedNotFound
	}
	sub := Subscription{ID: "sub-" + url, FeedID: "feed-" + url, URL: url, Title: "Remote " + url}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeService) RenameSubscription(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].Title = name
		}
	}
	return nil
}

func (f *fakeService) Unsubscribe(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []Subscription
	for _, s := range f.subs {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.subs = kept
	return nil
}

func (f *fakeService) AddToFolder(_ context.Context, subID, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID != subID {
			continue
		}
		for _, rf := range f.folders {
			if rf.ID == folderID {
				f.subs[i].Folders = append(f.subs[i].Folders, rf)
			}
		}
	}
	return nil
}

func (f *fakeService) RemoveFromFolder(_ context.Context, subID, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.subs {
		if f.subs[i].ID != subID {
			continue
		}
		var kept []RemoteFolder
		for _, rf := range f.subs[i].Folders {
			if rf.ID != folderID {
				kept = append(kept, rf)
			}
		}
		f.subs[i].Folders = kept
	}
	return nil
}

func (f *fakeService) UnreadIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unread...), nil
}

func (f *fakeService) StarredIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starred...), nil
}

func (f *fakeService) Entries(_ context.Context, ids []string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, id := range ids {
		if e, ok := f.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeService) SetStatus(_ context.Context, ids []string, key models.StatusKey, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	f.sent = append(f.sent, sentStatus{ids: sorted, key: key, flag: flag})

	list := &f.starred
	member := flag
	if key == models.StatusRead {
		list, member = &f.unread, !flag
	}
	*list = lo.Without(*list, ids...)
	if member {
		*list = append(*list, ids...)
	}
	return nil
}

func (f *fakeService) Changes(_ context.Context, since string) (*ChangeSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen = append(f.sinceSeen, since)
	if f.changes == nil {
		return &ChangeSet{Token: since}, nil
	}
	cs := f.changes
	f.changes = nil
	return cs, nil
}

// fakeCloud is a shared keyspace; several backends may point at one.
type fakeCloud struct {
	mu       sync.Mutex
	subs     map[string]charm.Subscription
	statuses map[string]charm.Status
	syncs    int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{subs: make(map[string]charm.Subscription), statuses: make(map[string]charm.Status)}
}

func (c *fakeCloud) Sync() error {
	c.mu.Lock()
	c.syncs++
	c.mu.Unlock()
	return nil
}

func (c *fakeCloud) Subscriptions() ([]charm.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []charm.Subscription
	for _, s := range c.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (c *fakeCloud) PutSubscription(s charm.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[s.ID] = s
	return nil
}

func (c *fakeCloud) DeleteSubscription(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
	return nil
}

func (c *fakeCloud) Statuses() ([]charm.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []charm.Status
	for _, s := range c.statuses {
		out = append(out, s)
	}
	return out, nil
}

func (c *fakeCloud) PutStatuses(statuses []charm.Status) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range statuses {
		key := s.ArticleID + ":" + string(s.Key)
		if existing, ok := c.statuses[key]; ok && existing.UpdatedAt.After(s.UpdatedAt) {
			continue
		}
		c.statuses[key] = s
		n++
	}
	return n, nil
}
