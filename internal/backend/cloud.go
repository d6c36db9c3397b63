// ABOUTME: Singleton cloud backend keeping subscriptions and statuses in a Charm KV keyspace
// ABOUTME: Feeds are fetched directly; statuses merge across devices by last writer wins

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/feedsync/internal/charm"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/tree"
	"github.com/samber/lo"
)

// CloudStore is the KV keyspace the cloud backend syncs through.
// *charm.Client implements it.
type CloudStore interface {
	Sync() error
	Subscriptions() ([]charm.Subscription, error)
	PutSubscription(s charm.Subscription) error
	DeleteSubscription(id string) error
	Statuses() ([]charm.Status, error)
	PutStatuses(statuses []charm.Status) (int, error)
}

var _ CloudStore = (*charm.Client)(nil)

const cloudTasks = 3

// Cloud is the backend for the device-synced cloud account.
type Cloud struct {
	treeOps
	store      CloudStore
	refresher  *Refresher
	discoverer *discover.Discoverer
	now        func() time.Time
}

// NewCloud creates a cloud backend.
func NewCloud(deps Deps) *Cloud {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Cloud{
		store:      deps.Cloud,
		refresher:  NewRefresher(deps.Fetcher, deps.Concurrency, now),
		discoverer: deps.Discoverer,
		now:        now,
	}
}

func (c *Cloud) Kind() Kind           { return KindCloud }
func (c *Cloud) Behaviors() Behaviors { return BehaviorsFor(KindCloud) }

// RefreshAll pulls the keyspace, rebuilds the tree from it, fetches every
// feed, and then exchanges statuses.
func (c *Cloud) RefreshAll(ctx context.Context, h Host) error {
	if c.refresher.Suspended() {
		return nil
	}
	t := startTasks(h.Progress(), cloudTasks)
	defer t.finish()

	if err := c.pullStructure(ctx, h); err != nil {
		return err
	}
	t.done()

	if err := c.refresher.Refresh(ctx, h, h.Tree().FlattenedFeeds()); err != nil {
		return err
	}
	t.done()

	return c.RefreshArticleStatus(ctx, h)
}

func (c *Cloud) pullStructure(ctx context.Context, h Host) error {
	if err := c.store.Sync(); err != nil {
		return fmt.Errorf("sync cloud: %w", err)
	}
	records, err := c.store.Subscriptions()
	if err != nil {
		return fmt.Errorf("load cloud subscriptions: %w", err)
	}
	subs := lo.Map(records, func(r charm.Subscription, _ int) Subscription {
		return Subscription{
			ID:          r.ID,
			FeedID:      r.ID,
			URL:         r.URL,
			Title:       r.Name,
			HomePageURL: r.HomePageURL,
			Folders: lo.Map(r.Folders, func(name string, _ int) RemoteFolder {
				return RemoteFolder{Name: name}
			}),
		}
	})
	removed := reconcileTree(h.Tree(), h.ID(), nil, subs, c.Behaviors(), false)
	if len(removed) > 0 {
		if err := h.Store().DeleteArticlesForFeeds(ctx, removed); err != nil {
			return fmt.Errorf("delete articles for removed feeds: %w", err)
		}
	}
	return nil
}

// RefreshArticleStatus pushes queued statuses and applies everyone else's.
func (c *Cloud) RefreshArticleStatus(ctx context.Context, h Host) error {
	if err := c.SendArticleStatus(ctx, h); err != nil {
		return err
	}
	statuses, err := c.store.Statuses()
	if err != nil {
		return fmt.Errorf("load cloud statuses: %w", err)
	}
	pendingRead, err := h.Queue().PendingIDs(ctx, models.StatusRead)
	if err != nil {
		return err
	}
	pendingStarred, err := h.Queue().PendingIDs(ctx, models.StatusStarred)
	if err != nil {
		return err
	}

	groups := lo.GroupBy(statuses, func(s charm.Status) statusChange {
		return statusChange{key: s.Key, flag: s.Flag}
	})
	for change, items := range groups {
		pending := pendingRead
		if change.key == models.StatusStarred {
			pending = pendingStarred
		}
		ids := withoutPending(lo.Map(items, func(s charm.Status, _ int) string { return s.ArticleID }), pending)
		if len(ids) == 0 {
			continue
		}
		if err := h.ApplyRemoteStatus(ctx, ids, change.key, change.flag); err != nil {
			return fmt.Errorf("apply cloud statuses: %w", err)
		}
	}
	return nil
}

// SendArticleStatus writes queued statuses to the keyspace and syncs it.
func (c *Cloud) SendArticleStatus(ctx context.Context, h Host) error {
	if c.refresher.Suspended() {
		return nil
	}
	q := h.Queue()
	if err := q.ResetSelected(ctx); err != nil {
		return err
	}
	batch, err := q.Select(ctx, 0)
	if err != nil || len(batch) == 0 {
		return err
	}
	records := lo.Map(batch, func(p storage.PendingStatus, _ int) charm.Status {
		return charm.Status{ArticleID: p.ArticleID, Key: p.Key, Flag: p.Flag, UpdatedAt: p.QueuedAt}
	})
	if _, err := c.store.PutStatuses(records); err != nil {
		if resetErr := q.ResetSelected(ctx); resetErr != nil {
			h.Logger().Warn("reset status queue failed", "account", h.ID(), "err", resetErr)
		}
		return fmt.Errorf("write cloud statuses: %w", err)
	}
	if err := q.Delete(ctx, batch); err != nil {
		return err
	}
	return c.store.Sync()
}

// MarkArticles queues the change for the next status exchange.
func (c *Cloud) MarkArticles(ctx context.Context, h Host, articleIDs []string, key models.StatusKey, flag bool) error {
	now := c.now()
	return h.Queue().Enqueue(ctx, lo.Map(articleIDs, func(id string, _ int) storage.PendingStatus {
		return storage.PendingStatus{ArticleID: id, Key: key, Flag: flag, QueuedAt: now}
	}))
}

// subscriptionFor describes feed as it should appear in the keyspace.
func (c *Cloud) subscriptionFor(h Host, feed *tree.Feed) charm.Subscription {
	meta := feed.Metadata()
	sub := charm.Subscription{
		ID:          feed.ID,
		URL:         feed.URL,
		Name:        meta.EditedName,
		HomePageURL: meta.HomePageURL,
		UpdatedAt:   c.now(),
	}
	if sub.Name == "" {
		sub.Name = meta.Name
	}
	for _, container := range h.Tree().ContainersOf(feed) {
		if folder, ok := container.(*tree.Folder); ok {
			sub.Folders = append(sub.Folders, folder.Name())
		}
	}
	return sub
}

func (c *Cloud) publish(h Host, feeds ...*tree.Feed) error {
	for _, feed := range feeds {
		if !h.Tree().HasFeed(feed) {
			if err := c.store.DeleteSubscription(feed.ID); err != nil {
				return fmt.Errorf("delete cloud subscription: %w", err)
			}
			continue
		}
		if err := c.store.PutSubscription(c.subscriptionFor(h, feed)); err != nil {
			return fmt.Errorf("write cloud subscription: %w", err)
		}
	}
	return nil
}

func (c *Cloud) ImportOPML(_ context.Context, h Host, outlines []opml.Outline) error {
	opml.Materialize(h.Tree(), outlines, nil)
	return c.publish(h, h.Tree().FlattenedFeeds()...)
}

func (c *Cloud) CreateFolder(_ context.Context, h Host, name string) (*tree.Folder, error) {
	return c.createFolder(h, name)
}

func (c *Cloud) RenameFolder(_ context.Context, h Host, folder *tree.Folder, name string) error {
	if err := c.renameFolder(h, folder, name); err != nil {
		return err
	}
	return c.publish(h, folder.TopLevelFeeds()...)
}

func (c *Cloud) RemoveFolder(ctx context.Context, h Host, folder *tree.Folder) error {
	feeds := folder.TopLevelFeeds()
	if err := c.removeFolder(ctx, h, folder); err != nil {
		return err
	}
	return c.publish(h, feeds...)
}

func (c *Cloud) RestoreFolder(_ context.Context, h Host, folder *tree.Folder) error {
	c.restoreFolder(h, folder)
	return c.publish(h, folder.TopLevelFeeds()...)
}

func (c *Cloud) CreateFeed(ctx context.Context, h Host, url, name string, container tree.Container) (*tree.Feed, error) {
	feed, err := createDiscoveredFeed(ctx, h, c.discoverer, url, name, container)
	if err != nil {
		return nil, err
	}
	return feed, c.publish(h, feed)
}

func (c *Cloud) RenameFeed(_ context.Context, h Host, feed *tree.Feed, name string) error {
	feed.SetEditedName(name)
	return c.publish(h, feed)
}

func (c *Cloud) AddFeed(_ context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	c.addFeed(feed, container)
	return c.publish(h, feed)
}

func (c *Cloud) RemoveFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	if err := c.removeFeed(ctx, h, feed, container); err != nil {
		return err
	}
	return c.publish(h, feed)
}

func (c *Cloud) MoveFeed(_ context.Context, h Host, feed *tree.Feed, from, to tree.Container) error {
	c.moveFeed(feed, from, to)
	return c.publish(h, feed)
}

func (c *Cloud) RestoreFeed(_ context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	c.addFeed(feed, container)
	return c.publish(h, feed)
}

// ValidateCredentials has nothing to check; Charm identity is the device key.
func (c *Cloud) ValidateCredentials(context.Context, credentials.Credentials, string) (*credentials.Credentials, error) {
	return nil, nil
}

func (c *Cloud) SuspendNetwork() { c.refresher.Suspend() }
func (c *Cloud) Resume()         { c.refresher.Resume() }

// AccountWillBeDeleted leaves the shared keyspace intact for other devices.
func (c *Cloud) AccountWillBeDeleted(context.Context, Host) error { return nil }
