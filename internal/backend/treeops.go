// ABOUTME: Structural edits applied only to the local tree, shared by backends without a remote folder model
// ABOUTME: Feeds that leave the tree entirely have their articles deleted

package backend

import (
	"context"
	"fmt"

	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
)

type treeOps struct{}

func (treeOps) createFolder(h Host, name string) (*tree.Folder, error) {
	folder := h.Tree().EnsureFolder(name)
	if folder == nil {
		return nil, fmt.Errorf("create folder: %w: empty name", syncerr.ErrInvalidParameter)
	}
	return folder, nil
}

func (treeOps) renameFolder(h Host, folder *tree.Folder, name string) error {
	if name == folder.Name() {
		return nil
	}
	if !h.Tree().RenameFolder(folder, name) {
		return fmt.Errorf("rename folder %q: %w: name is empty or already used", folder.Name(), syncerr.ErrInvalidParameter)
	}
	return nil
}

func (o treeOps) removeFolder(ctx context.Context, h Host, folder *tree.Folder) error {
	feeds := folder.TopLevelFeeds()
	h.Tree().RemoveFolder(folder)
	return o.forgetOrphans(ctx, h, feeds)
}

func (treeOps) restoreFolder(h Host, folder *tree.Folder) {
	h.Tree().AddFolder(folder)
}

func (treeOps) addFeed(feed *tree.Feed, container tree.Container) {
	container.AddFeedToTreeAtTopLevel(feed)
}

func (o treeOps) removeFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	container.RemoveFeedFromTreeAtTopLevel(feed)
	return o.forgetOrphans(ctx, h, []*tree.Feed{feed})
}

func (treeOps) moveFeed(feed *tree.Feed, from, to tree.Container) {
	if from.ContainerID() == to.ContainerID() {
		return
	}
	to.AddFeedToTreeAtTopLevel(feed)
	from.RemoveFeedFromTreeAtTopLevel(feed)
}

// forgetOrphans deletes articles of feeds no longer anywhere in the tree.
func (treeOps) forgetOrphans(ctx context.Context, h Host, feeds []*tree.Feed) error {
	var gone []string
	for _, f := range feeds {
		if !h.Tree().HasFeed(f) {
			gone = append(gone, f.ID)
		}
	}
	if len(gone) == 0 {
		return nil
	}
	if err := h.Store().DeleteArticlesForFeeds(ctx, gone); err != nil {
		return fmt.Errorf("delete articles for removed feeds: %w", err)
	}
	return nil
}
