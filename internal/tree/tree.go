// ABOUTME: Account-rooted container hierarchy of folders and feeds
// ABOUTME: Flattened views and lookup indexes are cached and rebuilt lazily after any structural change

package tree

import "sync"

// Container is implemented by the account root and by folders.
type Container interface {
	ContainerID() string
	TopLevelFeeds() []*Feed
	Folders() []*Folder
	FlattenedFeeds() []*Feed
	ContainsFeed(f *Feed) bool
	AddFeedToTreeAtTopLevel(f *Feed)
	RemoveFeedFromTreeAtTopLevel(f *Feed)
}

// Tree is the root container of one account.
type Tree struct {
	accountID string

	mu      sync.Mutex
	feeds   []*Feed
	folders []*Folder

	flattened      []*Feed
	flattenedStale bool

	byID         map[string]*Feed
	byExternalID map[string]*Feed
	byURL        map[string]*Feed
	indexStale   bool

	batchDepth    int
	pendingNotify bool
	onChange      func()
}

var (
	_ Container = (*Tree)(nil)
	_ Container = (*Folder)(nil)
)

// New creates an empty tree for the account.
func New(accountID string) *Tree {
	return &Tree{
		accountID:      accountID,
		flattenedStale: true,
		indexStale:     true,
	}
}

// OnChange installs a hook that runs after every structural change.
// The hook runs without the tree lock held.
func (t *Tree) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// AccountID returns the owning account's ID.
func (t *Tree) AccountID() string {
	return t.accountID
}

// ContainerID implements Container.
func (t *Tree) ContainerID() string {
	return "account:" + t.accountID
}

// mutate runs fn under the lock and invalidates caches when fn reports a change.
func (t *Tree) mutate(fn func() bool) bool {
	t.mu.Lock()
	changed := fn()
	var hook func()
	if changed {
		t.structureDidChange()
		if t.batchDepth > 0 {
			t.pendingNotify = true
		} else {
			hook = t.onChange
		}
	}
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
	return changed
}

func (t *Tree) structureDidChange() {
	t.flattenedStale = true
	t.indexStale = true
}

// Batch runs fn and delivers at most one change notification when it returns.
func (t *Tree) Batch(fn func()) {
	t.mu.Lock()
	t.batchDepth++
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.batchDepth--
		var hook func()
		if t.batchDepth == 0 && t.pendingNotify {
			t.pendingNotify = false
			hook = t.onChange
		}
		t.mu.Unlock()
		if hook != nil {
			hook()
		}
	}()
	fn()
}

// TopLevelFeeds returns feeds directly under the account.
func (t *Tree) TopLevelFeeds() []*Feed {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Feed(nil), t.feeds...)
}

// Folders returns the account's folders.
func (t *Tree) Folders() []*Folder {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Folder(nil), t.folders...)
}

// FlattenedFeeds returns every feed in the tree, each once.
func (t *Tree) FlattenedFeeds() []*Feed {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Feed(nil), t.flattenedLocked()...)
}

// FlattenedFeedIDs returns the IDs of FlattenedFeeds.
func (t *Tree) FlattenedFeedIDs() []string {
	feeds := t.FlattenedFeeds()
	ids := make([]string, len(feeds))
	for i, f := range feeds {
		ids[i] = f.ID
	}
	return ids
}

func (t *Tree) flattenedLocked() []*Feed {
	if !t.flattenedStale {
		return t.flattened
	}
	seen := make(map[FeedKey]struct{})
	var out []*Feed
	add := func(feeds []*Feed) {
		for _, f := range feeds {
			if _, ok := seen[f.Key()]; ok {
				continue
			}
			seen[f.Key()] = struct{}{}
			out = append(out, f)
		}
	}
	add(t.feeds)
	for _, folder := range t.folders {
		add(folder.feeds)
	}
	t.flattened = out
	t.flattenedStale = false
	return out
}

func (t *Tree) indexLocked() {
	if !t.indexStale {
		return
	}
	feeds := t.flattenedLocked()
	t.byID = make(map[string]*Feed, len(feeds))
	t.byExternalID = make(map[string]*Feed)
	t.byURL = make(map[string]*Feed, len(feeds))
	for _, f := range feeds {
		t.byID[f.ID] = f
		if f.ExternalID != "" {
			t.byExternalID[f.ExternalID] = f
		}
		if _, ok := t.byURL[f.URL]; !ok {
			t.byURL[f.URL] = f
		}
	}
	t.indexStale = false
}

// ExistingFeedByID finds a feed anywhere in the tree.
func (t *Tree) ExistingFeedByID(id string) *Feed {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexLocked()
	return t.byID[id]
}

// ExistingFeedByExternalID finds a feed by the sync service's identifier.
func (t *Tree) ExistingFeedByExternalID(id string) *Feed {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexLocked()
	return t.byExternalID[id]
}

// ExistingFeedByURL finds a feed by its URL.
func (t *Tree) ExistingFeedByURL(url string) *Feed {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexLocked()
	return t.byURL[url]
}

// HasFeed reports whether f is anywhere in the tree.
func (t *Tree) HasFeed(f *Feed) bool {
	return t.ExistingFeedByID(f.ID) != nil
}

// ContainsFeed reports whether f is at the top level.
func (t *Tree) ContainsFeed(f *Feed) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return indexOfFeed(t.feeds, f) >= 0
}

// AddFeedToTreeAtTopLevel adds f directly under the account.
func (t *Tree) AddFeedToTreeAtTopLevel(f *Feed) {
	t.mutate(func() bool {
		if indexOfFeed(t.feeds, f) >= 0 {
			return false
		}
		t.feeds = append(t.feeds, f)
		return true
	})
}

// RemoveFeedFromTreeAtTopLevel removes f from the top level only.
func (t *Tree) RemoveFeedFromTreeAtTopLevel(f *Feed) {
	t.mutate(func() bool {
		var removed bool
		t.feeds, removed = removeFeed(t.feeds, f)
		return removed
	})
}

// RemoveFeedEverywhere removes f from the top level and every folder.
func (t *Tree) RemoveFeedEverywhere(f *Feed) {
	t.mutate(func() bool {
		var changed, removed bool
		t.feeds, removed = removeFeed(t.feeds, f)
		changed = removed
		for _, folder := range t.folders {
			folder.feeds, removed = removeFeed(folder.feeds, f)
			changed = changed || removed
		}
		return changed
	})
}

// ContainersOf returns every container that holds f at its top level.
func (t *Tree) ContainersOf(f *Feed) []Container {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Container
	if indexOfFeed(t.feeds, f) >= 0 {
		out = append(out, t)
	}
	for _, folder := range t.folders {
		if indexOfFeed(folder.feeds, f) >= 0 {
			out = append(out, folder)
		}
	}
	return out
}

// ExistingFolder finds a folder by exact name.
func (t *Tree) ExistingFolder(name string) *Folder {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.folderLocked(name)
}

// ExistingFolderByExternalID finds a folder by the sync service's identifier.
func (t *Tree) ExistingFolderByExternalID(id string) *Folder {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, folder := range t.folders {
		if folder.externalID == id {
			return folder
		}
	}
	return nil
}

func (t *Tree) folderLocked(name string) *Folder {
	for _, folder := range t.folders {
		if folder.name == name {
			return folder
		}
	}
	return nil
}

// EnsureFolder returns the folder with this exact name, creating it if needed.
// An empty name returns nil.
func (t *Tree) EnsureFolder(name string) *Folder {
	if name == "" {
		return nil
	}
	var folder *Folder
	t.mutate(func() bool {
		if folder = t.folderLocked(name); folder != nil {
			return false
		}
		folder = &Folder{tree: t, name: name}
		t.folders = append(t.folders, folder)
		return true
	})
	return folder
}

// EnsureFolderPath ensures a folder for a name path. Only one level of
// folders exists, so the last component names the folder.
func (t *Tree) EnsureFolderPath(names []string) *Folder {
	if len(names) == 0 {
		return nil
	}
	return t.EnsureFolder(names[len(names)-1])
}

// AddFolder attaches a previously removed folder. If a folder with the same
// name exists, the feeds are merged into it.
func (t *Tree) AddFolder(folder *Folder) *Folder {
	result := folder
	t.mutate(func() bool {
		if existing := t.folderLocked(folder.name); existing != nil {
			result = existing
			changed := false
			for _, f := range folder.feeds {
				if indexOfFeed(existing.feeds, f) < 0 {
					existing.feeds = append(existing.feeds, f)
					changed = true
				}
			}
			return changed
		}
		folder.tree = t
		t.folders = append(t.folders, folder)
		return true
	})
	return result
}

// RemoveFolder detaches folder and its feeds from the tree.
func (t *Tree) RemoveFolder(folder *Folder) bool {
	return t.mutate(func() bool {
		for i, f := range t.folders {
			if f == folder {
				t.folders = append(t.folders[:i], t.folders[i+1:]...)
				return true
			}
		}
		return false
	})
}

// RenameFolder changes a folder's name. It fails if the name is taken.
func (t *Tree) RenameFolder(folder *Folder, name string) bool {
	return t.mutate(func() bool {
		if name == "" || name == folder.name {
			return false
		}
		if t.folderLocked(name) != nil {
			return false
		}
		folder.name = name
		return true
	})
}

// Clear removes everything from the tree.
func (t *Tree) Clear() {
	t.mutate(func() bool {
		changed := len(t.feeds) > 0 || len(t.folders) > 0
		t.feeds = nil
		t.folders = nil
		return changed
	})
}

func indexOfFeed(feeds []*Feed, f *Feed) int {
	for i, existing := range feeds {
		if existing.Key() == f.Key() {
			return i
		}
	}
	return -1
}

func removeFeed(feeds []*Feed, f *Feed) ([]*Feed, bool) {
	i := indexOfFeed(feeds, f)
	if i < 0 {
		return feeds, false
	}
	return append(feeds[:i], feeds[i+1:]...), true
}
