// ABOUTME: Local-only backend that fetches feeds directly and keeps all state on this device
// ABOUTME: Status changes never leave the device, so status sync operations are no-ops

package backend

import (
	"context"
	"fmt"

	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
)

// Local is the backend for accounts stored only on this device.
type Local struct {
	treeOps
	refresher  *Refresher
	discoverer *discover.Discoverer
}

// NewLocal creates a local backend.
func NewLocal(deps Deps) *Local {
	return &Local{
		refresher:  NewRefresher(deps.Fetcher, deps.Concurrency, deps.Now),
		discoverer: deps.Discoverer,
	}
}

func (l *Local) Kind() Kind           { return KindLocal }
func (l *Local) Behaviors() Behaviors { return BehaviorsFor(KindLocal) }

// RefreshAll refreshes every feed in the account.
func (l *Local) RefreshAll(ctx context.Context, h Host) error {
	return l.refresher.Refresh(ctx, h, h.Tree().FlattenedFeeds())
}

func (l *Local) SendArticleStatus(context.Context, Host) error    { return nil }
func (l *Local) RefreshArticleStatus(context.Context, Host) error { return nil }

func (l *Local) MarkArticles(context.Context, Host, []string, models.StatusKey, bool) error {
	return nil
}

// ImportOPML adds the outline's folders and feeds. Feeds use their URL as ID.
func (l *Local) ImportOPML(_ context.Context, h Host, outlines []opml.Outline) error {
	opml.Materialize(h.Tree(), outlines, nil)
	return nil
}

func (l *Local) CreateFolder(_ context.Context, h Host, name string) (*tree.Folder, error) {
	return l.createFolder(h, name)
}

func (l *Local) RenameFolder(_ context.Context, h Host, folder *tree.Folder, name string) error {
	return l.renameFolder(h, folder, name)
}

func (l *Local) RemoveFolder(ctx context.Context, h Host, folder *tree.Folder) error {
	return l.removeFolder(ctx, h, folder)
}

func (l *Local) RestoreFolder(_ context.Context, h Host, folder *tree.Folder) error {
	l.restoreFolder(h, folder)
	return nil
}

// CreateFeed discovers the feed behind url, adds it to container, and merges
// its current items.
func (l *Local) CreateFeed(ctx context.Context, h Host, url, name string, container tree.Container) (*tree.Feed, error) {
	return createDiscoveredFeed(ctx, h, l.discoverer, url, name, container)
}

func (l *Local) RenameFeed(_ context.Context, _ Host, feed *tree.Feed, name string) error {
	feed.SetEditedName(name)
	return nil
}

func (l *Local) AddFeed(_ context.Context, _ Host, feed *tree.Feed, container tree.Container) error {
	l.addFeed(feed, container)
	return nil
}

func (l *Local) RemoveFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	return l.removeFeed(ctx, h, feed, container)
}

func (l *Local) MoveFeed(_ context.Context, _ Host, feed *tree.Feed, from, to tree.Container) error {
	l.moveFeed(feed, from, to)
	return nil
}

func (l *Local) RestoreFeed(_ context.Context, _ Host, feed *tree.Feed, container tree.Container) error {
	l.addFeed(feed, container)
	return nil
}

// ValidateCredentials has nothing to check for a local account.
func (l *Local) ValidateCredentials(context.Context, credentials.Credentials, string) (*credentials.Credentials, error) {
	return nil, nil
}

func (l *Local) SuspendNetwork() { l.refresher.Suspend() }
func (l *Local) Resume()         { l.refresher.Resume() }

func (l *Local) AccountWillBeDeleted(context.Context, Host) error { return nil }

// createDiscoveredFeed is CreateFeed for backends that fetch feeds themselves.
func createDiscoveredFeed(ctx context.Context, h Host, d *discover.Discoverer, url, name string, container tree.Container) (*tree.Feed, error) {
	if d == nil {
		return nil, fmt.Errorf("create feed: %w: discovery unavailable", syncerr.ErrNotSupported)
	}
	corrected := h.Transformers().CorrectFeedURL(url)
	if h.Tree().ExistingFeedByURL(url) != nil || h.Tree().ExistingFeedByURL(corrected) != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, syncerr.ErrAlreadySubscribed)
	}

	found, err := d.Discover(ctx, corrected)
	if err != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, err)
	}
	if h.Tree().ExistingFeedByURL(found.URL) != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, syncerr.ErrAlreadySubscribed)
	}

	feed := tree.NewFeed(h.ID(), "", found.URL)
	feed.UpdateMetadata(func(m *tree.Metadata) {
		m.Name = found.Title
		if found.Parsed != nil {
			m.HomePageURL = found.Parsed.HomePageURL
			m.IconURL = found.Parsed.IconURL
		}
	})
	if name != "" {
		feed.SetEditedName(name)
	}
	container.AddFeedToTreeAtTopLevel(feed)

	if found.Parsed != nil {
		parsed := h.Transformers().Transform(found.Parsed, found.URL)
		if _, err := h.UpdateFromRemote(ctx, feed.ID, parsed.Items, true); err != nil {
			h.Logger().Warn("initial merge failed", "account", h.ID(), "feed", feed.URL, "err", err)
		}
	}
	return feed, nil
}
