// ABOUTME: Folder container holding feeds one level below the account
// ABOUTME: Folder mutations share the tree's lock and invalidate the tree's caches

package tree

// Folder groups feeds under an account.
type Folder struct {
	tree       *Tree
	name       string
	externalID string
	feeds      []*Feed
}

// Name returns the folder name.
func (f *Folder) Name() string {
	f.tree.mu.Lock()
	defer f.tree.mu.Unlock()
	return f.name
}

// ExternalID returns the sync service's identifier for the folder.
func (f *Folder) ExternalID() string {
	f.tree.mu.Lock()
	defer f.tree.mu.Unlock()
	return f.externalID
}

// SetExternalID records the sync service's identifier for the folder.
func (f *Folder) SetExternalID(id string) {
	f.tree.mu.Lock()
	f.externalID = id
	f.tree.mu.Unlock()
}

// ContainerID implements Container.
func (f *Folder) ContainerID() string {
	return "folder:" + f.Name()
}

// TopLevelFeeds returns the folder's feeds.
func (f *Folder) TopLevelFeeds() []*Feed {
	f.tree.mu.Lock()
	defer f.tree.mu.Unlock()
	return append([]*Feed(nil), f.feeds...)
}

// Folders returns nil; folders do not nest.
func (f *Folder) Folders() []*Folder {
	return nil
}

// FlattenedFeeds returns the folder's feeds.
func (f *Folder) FlattenedFeeds() []*Feed {
	return f.TopLevelFeeds()
}

// ContainsFeed reports whether the folder holds feed.
func (f *Folder) ContainsFeed(feed *Feed) bool {
	f.tree.mu.Lock()
	defer f.tree.mu.Unlock()
	return indexOfFeed(f.feeds, feed) >= 0
}

// AddFeedToTreeAtTopLevel adds feed to the folder.
func (f *Folder) AddFeedToTreeAtTopLevel(feed *Feed) {
	f.tree.mutate(func() bool {
		if indexOfFeed(f.feeds, feed) >= 0 {
			return false
		}
		f.feeds = append(f.feeds, feed)
		return true
	})
}

// RemoveFeedFromTreeAtTopLevel removes feed from the folder.
func (f *Folder) RemoveFeedFromTreeAtTopLevel(feed *Feed) {
	f.tree.mutate(func() bool {
		var removed bool
		f.feeds, removed = removeFeed(f.feeds, feed)
		return removed
	})
}
