// ABOUTME: Folder and feed edits routed through the account's backend
// ABOUTME: Failures come back attributed to the account; removed feeds leave the unread cache

package account

import (
	"context"
	"fmt"

	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
)

func (a *Account) wrap(err error) error {
	return syncerr.Wrap(err, a.id, a.Name())
}

// EnsureFolder returns the folder named name, creating it through the
// backend if needed. An empty name means the account root.
func (a *Account) EnsureFolder(ctx context.Context, name string) (tree.Container, error) {
	if name == "" {
		return a.tree, nil
	}
	if folder := a.tree.ExistingFolder(name); folder != nil {
		return folder, nil
	}
	return a.CreateFolder(ctx, name)
}

func (a *Account) CreateFolder(ctx context.Context, name string) (*tree.Folder, error) {
	folder, err := a.backend.CreateFolder(ctx, a, name)
	if err != nil {
		return nil, a.wrap(err)
	}
	return folder, nil
}

func (a *Account) RenameFolder(ctx context.Context, folder *tree.Folder, name string) error {
	return a.wrap(a.backend.RenameFolder(ctx, a, folder, name))
}

func (a *Account) RemoveFolder(ctx context.Context, folder *tree.Folder) error {
	feeds := folder.TopLevelFeeds()
	if err := a.backend.RemoveFolder(ctx, a, folder); err != nil {
		return a.wrap(err)
	}
	a.forgetRemoved(feeds)
	return nil
}

func (a *Account) RestoreFolder(ctx context.Context, folder *tree.Folder) error {
	if err := a.backend.RestoreFolder(ctx, a, folder); err != nil {
		return a.wrap(err)
	}
	a.unread.Update(ctx, feedIDs(folder.TopLevelFeeds()))
	return nil
}

// CreateFeed subscribes to url and adds it to container. An empty name
// keeps the feed's own title.
func (a *Account) CreateFeed(ctx context.Context, url, name string, container tree.Container) (*tree.Feed, error) {
	if container == nil {
		container = a.tree
	}
	feed, err := a.backend.CreateFeed(ctx, a, url, name, container)
	if err != nil {
		return nil, a.wrap(err)
	}
	a.unread.Update(ctx, []string{feed.ID})
	return feed, nil
}

func (a *Account) RenameFeed(ctx context.Context, feed *tree.Feed, name string) error {
	return a.wrap(a.backend.RenameFeed(ctx, a, feed, name))
}

func (a *Account) AddFeed(ctx context.Context, feed *tree.Feed, container tree.Container) error {
	if feed.AccountID != a.id {
		return a.wrap(fmt.Errorf("add feed %s: %w: feed belongs to account %s", feed.URL, syncerr.ErrInvalidParameter, feed.AccountID))
	}
	return a.wrap(a.backend.AddFeed(ctx, a, feed, container))
}

func (a *Account) RemoveFeed(ctx context.Context, feed *tree.Feed, container tree.Container) error {
	if err := a.backend.RemoveFeed(ctx, a, feed, container); err != nil {
		return a.wrap(err)
	}
	a.forgetRemoved([]*tree.Feed{feed})
	return nil
}

func (a *Account) MoveFeed(ctx context.Context, feed *tree.Feed, from, to tree.Container) error {
	return a.wrap(a.backend.MoveFeed(ctx, a, feed, from, to))
}

func (a *Account) RestoreFeed(ctx context.Context, feed *tree.Feed, container tree.Container) error {
	if err := a.backend.RestoreFeed(ctx, a, feed, container); err != nil {
		return a.wrap(err)
	}
	a.unread.Update(ctx, []string{feed.ID})
	return nil
}

func (a *Account) forgetRemoved(feeds []*tree.Feed) {
	var gone []string
	for _, f := range feeds {
		if !a.tree.HasFeed(f) {
			gone = append(gone, f.ID)
		}
	}
	if len(gone) > 0 {
		a.unread.Forget(gone...)
	}
}
