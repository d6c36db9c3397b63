// ABOUTME: Account ties one feed tree, article store, and sync backend together
// ABOUTME: It is the Host backends call back into and the source of account events

package account

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/feedsync/internal/backend"
	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/progress"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/transform"
	"github.com/harper/feedsync/internal/tree"
	"github.com/harper/feedsync/internal/unread"
	"github.com/samber/lo"
)

// Options configures Open.
type Options struct {
	ID   string
	Kind backend.Kind
	// Dir is the account's private folder.
	Dir          string
	Backend      backend.Backend
	Bus          *events.Bus
	Transformers *transform.Registry
	Logger       *log.Logger
	Now          func() time.Time
}

// Account is one configured feed account.
type Account struct {
	id           string
	kind         backend.Kind
	dir          string
	backend      backend.Backend
	tree         *tree.Tree
	store        *storage.SQLiteStore
	queue        *storage.StatusQueue
	unread       *unread.Aggregator
	transformers *transform.Registry
	progress     *progress.Tracker
	bus          *events.Bus
	logger       *log.Logger
	now          func() time.Time

	mu        sync.Mutex
	settings  Settings
	opmlDirty bool

	refreshing atomic.Bool
	importing  atomic.Bool
}

var _ backend.Host = (*Account)(nil)

// Open loads or creates the account stored in opts.Dir.
func Open(opts Options) (*Account, error) {
	if opts.ID == "" || opts.Dir == "" || opts.Backend == nil {
		return nil, fmt.Errorf("open account: id, dir, and backend are required")
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Transformers == nil {
		opts.Transformers = transform.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create account folder: %w", err)
	}

	settings, err := LoadSettings(opts.Dir)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(filepath.Join(opts.Dir, ArticlesDBFile))
	if err != nil {
		return nil, err
	}
	queue, err := storage.NewStatusQueue(filepath.Join(opts.Dir, SyncDBFile))
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &Account{
		id:           opts.ID,
		kind:         opts.Kind,
		dir:          opts.Dir,
		backend:      opts.Backend,
		tree:         tree.New(opts.ID),
		store:        store,
		queue:        queue,
		transformers: opts.Transformers,
		bus:          opts.Bus,
		logger:       opts.Logger,
		now:          opts.Now,
		settings:     settings,
	}
	if err := loadTree(opts.Dir, a.tree); err != nil {
		store.Close()
		queue.Close()
		return nil, err
	}

	a.progress = progress.NewTracker(func(s progress.Snapshot) {
		a.bus.Publish(events.RefreshProgressChanged{AccountID: a.id, Progress: s})
	})
	a.unread = unread.New(store, unread.Options{
		Feeds: a.tree.FlattenedFeedIDs,
		OnFeedChange: func(feedID string, count int) {
			a.bus.Publish(events.UnreadCountChanged{AccountID: a.id, FeedID: feedID, Count: count})
		},
		OnTotalChange: func(total int) {
			a.bus.Publish(events.UnreadCountChanged{AccountID: a.id, Count: total})
		},
		Logger: opts.Logger,
	})
	a.tree.OnChange(a.structureDidChange)
	return a, nil
}

func (a *Account) structureDidChange() {
	a.mu.Lock()
	a.opmlDirty = true
	a.mu.Unlock()
	a.unread.Recompute()
	a.bus.Publish(events.StructureChanged{AccountID: a.id})
}

func (a *Account) ID() string                        { return a.id }
func (a *Account) Kind() backend.Kind                { return a.kind }
func (a *Account) Dir() string                       { return a.dir }
func (a *Account) Backend() backend.Backend          { return a.backend }
func (a *Account) Behaviors() backend.Behaviors      { return a.backend.Behaviors() }
func (a *Account) Tree() *tree.Tree                  { return a.tree }
func (a *Account) Store() storage.ArticleStore       { return a.store }
func (a *Account) Queue() *storage.StatusQueue       { return a.queue }
func (a *Account) Transformers() *transform.Registry { return a.transformers }
func (a *Account) Progress() *progress.Tracker       { return a.progress }
func (a *Account) Logger() *log.Logger               { return a.logger }

// Name returns the display name: the user's override or the kind's default.
func (a *Account) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings.Name != "" {
		return a.settings.Name
	}
	return a.kind.DefaultName()
}

// SetName overrides the display name. An empty name restores the default.
func (a *Account) SetName(name string) {
	a.mu.Lock()
	a.settings.Name = name
	a.mu.Unlock()
	a.bus.Publish(events.DisplayNameChanged{AccountID: a.id, Name: a.Name()})
}

// IsActive reports whether the account takes part in refreshes and totals.
func (a *Account) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.Active
}

// SetActive changes whether the account is active.
func (a *Account) SetActive(active bool) {
	a.mu.Lock()
	changed := a.settings.Active != active
	a.settings.Active = active
	a.mu.Unlock()
	if changed {
		a.bus.Publish(events.ActiveChanged{AccountID: a.id, Active: active})
	}
}

// Settings returns a copy of the settings record.
func (a *Account) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SetCredentialsInfo records which login and endpoint the account uses.
func (a *Account) SetCredentialsInfo(username, endpoint string) {
	a.mu.Lock()
	a.settings.Username = username
	a.settings.Endpoint = endpoint
	a.mu.Unlock()
}

func (a *Account) SyncToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.SyncToken
}

func (a *Account) SetSyncToken(token string) {
	a.mu.Lock()
	a.settings.SyncToken = token
	a.mu.Unlock()
}

// UnreadCount returns the cached account total.
func (a *Account) UnreadCount() int { return a.unread.Total() }

// FeedUnreadCount returns the cached count for one feed.
func (a *Account) FeedUnreadCount(feedID string) int { return a.unread.Count(feedID) }

// ContainerUnreadCount sums cached counts over a container's feeds.
func (a *Account) ContainerUnreadCount(c tree.Container) int {
	return lo.SumBy(c.FlattenedFeeds(), func(f *tree.Feed) int { return a.unread.Count(f.ID) })
}

// UpdateUnreadCounts recounts every feed from the store.
func (a *Account) UpdateUnreadCounts(ctx context.Context) { a.unread.UpdateAll(ctx) }

// ExistingFeed looks a feed up by ID.
func (a *Account) ExistingFeed(feedID string) *tree.Feed {
	return a.tree.ExistingFeedByID(feedID)
}

// UpdateFromRemote merges one feed's items and publishes what changed.
func (a *Account) UpdateFromRemote(ctx context.Context, feedID string, items []models.ParsedItem, deleteOlder bool) (models.ArticleChanges, error) {
	changes, err := a.store.Merge(ctx, feedID, items, deleteOlder)
	if err != nil {
		return changes, fmt.Errorf("merge feed %s: %w", feedID, err)
	}
	a.articlesDownloaded(ctx, changes)
	return changes, nil
}

// UpdateFromRemoteMultiFeed merges items for many feeds and publishes what changed.
func (a *Account) UpdateFromRemoteMultiFeed(ctx context.Context, feedItems map[string][]models.ParsedItem, defaultRead bool) (models.ArticleChanges, error) {
	changes, err := a.store.MergeMultiFeed(ctx, feedItems, defaultRead)
	if err != nil {
		return changes, fmt.Errorf("merge feeds: %w", err)
	}
	a.articlesDownloaded(ctx, changes)
	return changes, nil
}

func (a *Account) articlesDownloaded(ctx context.Context, changes models.ArticleChanges) {
	if changes.IsEmpty() {
		return
	}
	feedIDs := changes.FeedIDs()
	a.bus.Publish(events.ArticlesDownloaded{AccountID: a.id, Changes: changes, FeedIDs: feedIDs})
	if changes.AffectsUnread() {
		a.unread.Update(ctx, feedIDs)
	}
}

// Save writes the settings, feed metadata, and, when the structure changed,
// the OPML snapshot.
func (a *Account) Save() error {
	a.mu.Lock()
	settings := a.settings
	dirty := a.opmlDirty
	a.opmlDirty = false
	a.mu.Unlock()

	if err := writeJSON(filepath.Join(a.dir, SettingsFile), settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := writeJSON(filepath.Join(a.dir, FeedMetadataFile), feedMetadataFor(a.tree)); err != nil {
		return fmt.Errorf("save feed metadata: %w", err)
	}
	if !dirty && fileExists(filepath.Join(a.dir, SubscriptionsFile)) {
		return nil
	}
	doc := opml.FromTree(a.Name(), a.tree)
	if err := doc.WriteFile(filepath.Join(a.dir, SubscriptionsFile)); err != nil {
		a.markOPMLDirty()
		return fmt.Errorf("save subscriptions: %w", err)
	}
	return nil
}

// saveQuietly is Save for call sites where a failed write-back is not fatal.
func (a *Account) saveQuietly() {
	if err := a.Save(); err != nil {
		a.logger.Warn("account save failed", "account", a.id, "err", err)
	}
}

func (a *Account) markOPMLDirty() {
	a.mu.Lock()
	a.opmlDirty = true
	a.mu.Unlock()
}

// OPML returns the account's subscriptions as an outline document.
func (a *Account) OPML() *opml.Document {
	return opml.FromTree(a.Name(), a.tree)
}

// Close saves the account and closes its databases.
func (a *Account) Close() error {
	a.saveQuietly()
	storeErr := a.store.Close()
	queueErr := a.queue.Close()
	if storeErr != nil {
		return storeErr
	}
	return queueErr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
