// ABOUTME: Backend for third-party sync services driven through a RemoteService client
// ABOUTME: Implements full-sync and token-based incremental refresh plus queued status push and pull

package backend

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/progress"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
	"github.com/samber/lo"
)

const (
	// sendBatchSize caps how many queued statuses go out per request round.
	sendBatchSize = 1000
	// sendThreshold triggers an immediate send once this many changes are queued.
	sendThreshold = 100

	fullSyncTasks    = 5
	incrementalTasks = 6
)

// Remote is the backend for full-sync and incremental sync services.
type Remote struct {
	treeOps
	kind      Kind
	behaviors Behaviors
	service   RemoteService
	now       func() time.Time
	suspended atomic.Bool
}

// NewRemote creates a backend for a remote kind. Incremental kinds require
// a service that implements IncrementalService.
func NewRemote(kind Kind, deps Deps) (*Remote, error) {
	if !kind.IsRemote() {
		return nil, fmt.Errorf("%w: %s is not a remote kind", syncerr.ErrInvalidParameter, kind)
	}
	if kind.Family() == FamilyIncremental {
		if _, ok := deps.Service.(IncrementalService); !ok {
			return nil, fmt.Errorf("%s backend: %w: service does not report changes", kind, syncerr.ErrNotSupported)
		}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Remote{
		kind:      kind,
		behaviors: BehaviorsFor(kind),
		service:   deps.Service,
		now:       now,
	}, nil
}

func (r *Remote) Kind() Kind           { return r.kind }
func (r *Remote) Behaviors() Behaviors { return r.behaviors }

type tasks struct {
	p    *progress.Tracker
	left int
}

func startTasks(p *progress.Tracker, n int) *tasks {
	p.AddTasks(n)
	return &tasks{p: p, left: n}
}

func (t *tasks) done() {
	if t.left > 0 {
		t.left--
		t.p.CompleteTask()
	}
}

func (t *tasks) finish() {
	t.p.CompleteTasks(t.left)
	t.left = 0
}

// RefreshAll syncs structure, pushes queued statuses, pulls remote statuses,
// and downloads articles the account does not have yet.
func (r *Remote) RefreshAll(ctx context.Context, h Host) error {
	if r.suspended.Load() {
		return nil
	}
	incremental, isIncremental := r.service.(IncrementalService)
	isIncremental = isIncremental && r.kind.Family() == FamilyIncremental

	n := fullSyncTasks
	if isIncremental {
		n = incrementalTasks
	}
	t := startTasks(h.Progress(), n)
	defer t.finish()

	if err := r.refreshStructure(ctx, h); err != nil {
		return err
	}
	t.done()

	if err := r.SendArticleStatus(ctx, h); err != nil {
		return err
	}

	if isIncremental {
		if err := r.applyChanges(ctx, h, incremental); err != nil {
			return err
		}
		t.done()
	}

	unread, err := r.service.UnreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch unread IDs: %w", err)
	}
	if err := r.pullStatus(ctx, h, models.StatusRead, false, unread); err != nil {
		return err
	}
	t.done()

	starred, err := r.service.StarredIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch starred IDs: %w", err)
	}
	if err := r.pullStatus(ctx, h, models.StatusStarred, true, starred); err != nil {
		return err
	}
	t.done()

	missing, err := missingArticleIDs(ctx, h, lo.Uniq(append(unread, starred...)))
	if err != nil {
		return err
	}
	var entries []Entry
	if len(missing) > 0 {
		if entries, err = r.service.Entries(ctx, missing); err != nil {
			return fmt.Errorf("fetch entries: %w", err)
		}
	}
	t.done()

	if len(entries) > 0 {
		if _, err := h.UpdateFromRemoteMultiFeed(ctx, groupEntries(h, entries), true); err != nil {
			return fmt.Errorf("merge entries: %w", err)
		}
	}
	t.done()
	return nil
}

func (r *Remote) refreshStructure(ctx context.Context, h Host) error {
	folders, err := r.service.Folders(ctx)
	if err != nil {
		return fmt.Errorf("fetch folders: %w", err)
	}
	subs, err := r.service.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("fetch subscriptions: %w", err)
	}
	removed := reconcileTree(h.Tree(), h.ID(), folders, subs, r.behaviors, true)
	if len(removed) > 0 {
		if err := h.Store().DeleteArticlesForFeeds(ctx, removed); err != nil {
			return fmt.Errorf("delete articles for removed feeds: %w", err)
		}
	}
	return nil
}

func (r *Remote) applyChanges(ctx context.Context, h Host, svc IncrementalService) error {
	cs, err := svc.Changes(ctx, h.SyncToken())
	if err != nil {
		return fmt.Errorf("fetch changes: %w", err)
	}
	if len(cs.Entries) > 0 {
		if _, err := h.UpdateFromRemoteMultiFeed(ctx, groupEntries(h, cs.Entries), true); err != nil {
			return fmt.Errorf("merge changes: %w", err)
		}
	}

	pendingRead, err := h.Queue().PendingIDs(ctx, models.StatusRead)
	if err != nil {
		return err
	}
	pendingStarred, err := h.Queue().PendingIDs(ctx, models.StatusStarred)
	if err != nil {
		return err
	}
	apply := []struct {
		ids     []string
		key     models.StatusKey
		flag    bool
		pending map[string]bool
	}{
		{cs.Read, models.StatusRead, true, pendingRead},
		{cs.Unread, models.StatusRead, false, pendingRead},
		{cs.Starred, models.StatusStarred, true, pendingStarred},
		{cs.Unstarred, models.StatusStarred, false, pendingStarred},
	}
	for _, a := range apply {
		ids := withoutPending(a.ids, a.pending)
		if len(ids) == 0 {
			continue
		}
		if err := h.ApplyRemoteStatus(ctx, ids, a.key, a.flag); err != nil {
			return fmt.Errorf("apply %s changes: %w", a.key, err)
		}
	}

	if cs.Token != "" {
		h.SetSyncToken(cs.Token)
	}
	return nil
}

// pullStatus makes the local flag for key equal memberFlag exactly for
// remoteIDs, leaving articles with queued local changes alone.
func (r *Remote) pullStatus(ctx context.Context, h Host, key models.StatusKey, memberFlag bool, remoteIDs []string) error {
	pending, err := h.Queue().PendingIDs(ctx, key)
	if err != nil {
		return err
	}
	local, err := h.Store().ArticleIDsWithStatus(ctx, key, memberFlag)
	if err != nil {
		return fmt.Errorf("load local %s statuses: %w", key, err)
	}

	onlyRemote, onlyLocal := lo.Difference(lo.Uniq(remoteIDs), local)
	if ids := withoutPending(onlyRemote, pending); len(ids) > 0 {
		if err := h.ApplyRemoteStatus(ctx, ids, key, memberFlag); err != nil {
			return err
		}
	}
	if ids := withoutPending(onlyLocal, pending); len(ids) > 0 {
		if err := h.ApplyRemoteStatus(ctx, ids, key, !memberFlag); err != nil {
			return err
		}
	}
	return nil
}

// RefreshArticleStatus pushes queued statuses, then pulls unread and starred state.
func (r *Remote) RefreshArticleStatus(ctx context.Context, h Host) error {
	if r.suspended.Load() {
		return nil
	}
	if err := r.SendArticleStatus(ctx, h); err != nil {
		return err
	}
	unread, err := r.service.UnreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch unread IDs: %w", err)
	}
	if err := r.pullStatus(ctx, h, models.StatusRead, false, unread); err != nil {
		return err
	}
	starred, err := r.service.StarredIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch starred IDs: %w", err)
	}
	return r.pullStatus(ctx, h, models.StatusStarred, true, starred)
}

type statusChange struct {
	key  models.StatusKey
	flag bool
}

// SendArticleStatus drains the status queue. Rows are deleted once the
// service accepts them and are kept for retry when a request fails.
func (r *Remote) SendArticleStatus(ctx context.Context, h Host) error {
	if r.suspended.Load() {
		return nil
	}
	q := h.Queue()
	if err := q.ResetSelected(ctx); err != nil {
		return err
	}
	for {
		batch, err := q.Select(ctx, sendBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		groups := lo.GroupBy(batch, func(p storage.PendingStatus) statusChange {
			return statusChange{key: p.Key, flag: p.Flag}
		})
		for change, items := range groups {
			ids := lo.Map(items, func(p storage.PendingStatus, _ int) string { return p.ArticleID })
			if err := r.service.SetStatus(ctx, ids, change.key, change.flag); err != nil {
				if resetErr := q.ResetSelected(ctx); resetErr != nil {
					h.Logger().Warn("reset status queue failed", "account", h.ID(), "err", resetErr)
				}
				return fmt.Errorf("send %s=%t statuses: %w", change.key, change.flag, err)
			}
			if err := q.Delete(ctx, items); err != nil {
				return err
			}
		}
	}
}

// MarkArticles queues the change and sends once enough changes are waiting.
func (r *Remote) MarkArticles(ctx context.Context, h Host, articleIDs []string, key models.StatusKey, flag bool) error {
	now := r.now()
	pending := lo.Map(articleIDs, func(id string, _ int) storage.PendingStatus {
		return storage.PendingStatus{ArticleID: id, Key: key, Flag: flag, QueuedAt: now}
	})
	if err := h.Queue().Enqueue(ctx, pending); err != nil {
		return err
	}
	count, err := h.Queue().Count(ctx)
	if err != nil {
		return err
	}
	if count >= sendThreshold {
		return r.SendArticleStatus(ctx, h)
	}
	return nil
}

// ImportOPML subscribes to each feed in the outline that is not already followed.
func (r *Remote) ImportOPML(ctx context.Context, h Host, outlines []opml.Outline) error {
	if r.behaviors.DisallowOPMLImports {
		return fmt.Errorf("import OPML: %w", syncerr.ErrNotSupported)
	}
	for _, o := range opml.Normalize(outlines) {
		var container tree.Container = h.Tree()
		children := []opml.Outline{o}
		if !o.IsFeed() {
			folder, err := r.CreateFolder(ctx, h, o.Name())
			if err != nil {
				return err
			}
			container, children = folder, o.Children
		}
		for _, child := range children {
			if h.Tree().ExistingFeedByURL(child.XMLURL) != nil {
				continue
			}
			if _, err := r.CreateFeed(ctx, h, child.XMLURL, child.Name(), container); err != nil {
				h.Logger().Warn("import feed failed", "account", h.ID(), "feed", child.XMLURL, "err", err)
			}
		}
	}
	return nil
}

func (r *Remote) checkFolderManagement() error {
	if r.behaviors.DisallowFolderManagement {
		return fmt.Errorf("folder management: %w", syncerr.ErrNotSupported)
	}
	return nil
}

func (r *Remote) CreateFolder(ctx context.Context, h Host, name string) (*tree.Folder, error) {
	if err := r.checkFolderManagement(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("create folder: %w: empty name", syncerr.ErrInvalidParameter)
	}
	if existing := h.Tree().ExistingFolder(name); existing != nil {
		return existing, nil
	}
	rf, err := r.service.CreateFolder(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create folder %q: %w", name, err)
	}
	folder := h.Tree().EnsureFolder(name)
	folder.SetExternalID(rf.ID)
	return folder, nil
}

func (r *Remote) RenameFolder(ctx context.Context, h Host, folder *tree.Folder, name string) error {
	if err := r.checkFolderManagement(); err != nil {
		return err
	}
	if err := r.service.RenameFolder(ctx, folder.ExternalID(), name); err != nil {
		return fmt.Errorf("rename folder %q: %w", folder.Name(), err)
	}
	return r.renameFolder(h, folder, name)
}

func (r *Remote) RemoveFolder(ctx context.Context, h Host, folder *tree.Folder) error {
	if err := r.checkFolderManagement(); err != nil {
		return err
	}
	for _, feed := range folder.TopLevelFeeds() {
		if len(h.Tree().ContainersOf(feed)) == 1 {
			if err := r.service.Unsubscribe(ctx, feed.ExternalID); err != nil {
				return fmt.Errorf("unsubscribe %s: %w", feed.URL, err)
			}
		}
	}
	if err := r.service.DeleteFolder(ctx, folder.ExternalID()); err != nil {
		return fmt.Errorf("delete folder %q: %w", folder.Name(), err)
	}
	return r.removeFolder(ctx, h, folder)
}

// RestoreFolder recreates a removed folder and resubscribes its feeds.
func (r *Remote) RestoreFolder(ctx context.Context, h Host, folder *tree.Folder) error {
	if err := r.checkFolderManagement(); err != nil {
		return err
	}
	rf, err := r.service.CreateFolder(ctx, folder.Name())
	if err != nil {
		return fmt.Errorf("restore folder %q: %w", folder.Name(), err)
	}
	feeds := folder.TopLevelFeeds()
	for _, feed := range feeds {
		folder.RemoveFeedFromTreeAtTopLevel(feed)
	}
	folder.SetExternalID(rf.ID)
	restored := h.Tree().AddFolder(folder)
	for _, feed := range feeds {
		if err := r.RestoreFeed(ctx, h, feed, restored); err != nil {
			h.Logger().Warn("restore feed failed", "account", h.ID(), "feed", feed.URL, "err", err)
		}
	}
	return nil
}

func (r *Remote) checkContainer(container tree.Container) error {
	if _, isRoot := container.(*tree.Tree); isRoot && r.behaviors.DisallowFeedInRootFolder {
		return fmt.Errorf("feeds must be in a folder: %w", syncerr.ErrNotSupported)
	}
	return nil
}

func (r *Remote) folderID(container tree.Container) string {
	if folder, ok := container.(*tree.Folder); ok {
		return folder.ExternalID()
	}
	return ""
}

// CreateFeed subscribes on the service and adds the feed to container.
func (r *Remote) CreateFeed(ctx context.Context, h Host, url, name string, container tree.Container) (*tree.Feed, error) {
	if err := r.checkContainer(container); err != nil {
		return nil, err
	}
	if h.Tree().ExistingFeedByURL(url) != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, syncerr.ErrAlreadySubscribed)
	}

	sub, err := r.service.Subscribe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, err)
	}
	if existing := h.Tree().ExistingFeedByID(sub.FeedID); existing != nil {
		return nil, fmt.Errorf("create feed %s: %w", url, syncerr.ErrAlreadySubscribed)
	}

	feed := newFeedFromSubscription(h.ID(), sub)
	if name != "" && name != sub.Title {
		if err := r.service.RenameSubscription(ctx, sub.ID, name); err != nil {
			h.Logger().Warn("rename new subscription failed", "account", h.ID(), "feed", url, "err", err)
		} else {
			feed.SetEditedName(name)
		}
	}
	if id := r.folderID(container); id != "" {
		if err := r.service.AddToFolder(ctx, sub.ID, id); err != nil {
			return nil, fmt.Errorf("add %s to folder: %w", url, err)
		}
	}
	container.AddFeedToTreeAtTopLevel(feed)
	return feed, nil
}

func (r *Remote) RenameFeed(ctx context.Context, _ Host, feed *tree.Feed, name string) error {
	if err := r.service.RenameSubscription(ctx, feed.ExternalID, name); err != nil {
		return fmt.Errorf("rename feed %s: %w", feed.URL, err)
	}
	feed.SetEditedName(name)
	return nil
}

func (r *Remote) AddFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	if err := r.checkContainer(container); err != nil {
		return err
	}
	if r.behaviors.DisallowFeedInMultipleFolders && len(h.Tree().ContainersOf(feed)) > 0 {
		return fmt.Errorf("feed already in a folder: %w", syncerr.ErrNotSupported)
	}
	if id := r.folderID(container); id != "" {
		if err := r.service.AddToFolder(ctx, feed.ExternalID, id); err != nil {
			return fmt.Errorf("add %s to folder: %w", feed.URL, err)
		}
	}
	r.addFeed(feed, container)
	return nil
}

// RemoveFeed drops the feed from container, unsubscribing when it was the
// feed's last container.
func (r *Remote) RemoveFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	containers := h.Tree().ContainersOf(feed)
	if len(containers) > 1 {
		if id := r.folderID(container); id != "" {
			if err := r.service.RemoveFromFolder(ctx, feed.ExternalID, id); err != nil {
				return fmt.Errorf("remove %s from folder: %w", feed.URL, err)
			}
		}
	} else if err := r.service.Unsubscribe(ctx, feed.ExternalID); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", feed.URL, err)
	}
	return r.removeFeed(ctx, h, feed, container)
}

func (r *Remote) MoveFeed(ctx context.Context, _ Host, feed *tree.Feed, from, to tree.Container) error {
	if err := r.checkContainer(to); err != nil {
		return err
	}
	if from.ContainerID() == to.ContainerID() {
		return nil
	}
	if id := r.folderID(to); id != "" {
		if err := r.service.AddToFolder(ctx, feed.ExternalID, id); err != nil {
			return fmt.Errorf("move %s: %w", feed.URL, err)
		}
	}
	if id := r.folderID(from); id != "" {
		if err := r.service.RemoveFromFolder(ctx, feed.ExternalID, id); err != nil {
			return fmt.Errorf("move %s: %w", feed.URL, err)
		}
	}
	r.moveFeed(feed, from, to)
	return nil
}

// RestoreFeed puts a removed feed back, subscribing again if needed.
func (r *Remote) RestoreFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error {
	if h.Tree().HasFeed(feed) {
		return r.AddFeed(ctx, h, feed, container)
	}
	_, err := r.CreateFeed(ctx, h, feed.URL, feed.Metadata().EditedName, container)
	return err
}

func (r *Remote) ValidateCredentials(ctx context.Context, creds credentials.Credentials, endpoint string) (*credentials.Credentials, error) {
	return r.service.ValidateCredentials(ctx, creds, endpoint)
}

func (r *Remote) SuspendNetwork() { r.suspended.Store(true) }
func (r *Remote) Resume()         { r.suspended.Store(false) }

// AccountWillBeDeleted drops queued statuses that can no longer be sent.
func (r *Remote) AccountWillBeDeleted(ctx context.Context, h Host) error {
	if err := h.Queue().ResetSelected(ctx); err != nil {
		return err
	}
	pending, err := h.Queue().Select(ctx, 0)
	if err != nil {
		return err
	}
	return h.Queue().Delete(ctx, pending)
}

func newFeedFromSubscription(accountID string, sub Subscription) *tree.Feed {
	feed := tree.NewFeed(accountID, sub.FeedID, sub.URL)
	feed.ExternalID = sub.ID
	feed.UpdateMetadata(func(m *tree.Metadata) {
		m.Name = sub.Title
		m.HomePageURL = sub.HomePageURL
	})
	return feed
}

// reconcileTree makes the tree match the service's folders and subscriptions
// and returns the IDs of feeds that were removed entirely.
func reconcileTree(t *tree.Tree, accountID string, folders []RemoteFolder, subs []Subscription, b Behaviors, pruneFolders bool) []string {
	var removed []string
	t.Batch(func() {
		existing := make(map[string]*tree.Feed)
		for _, feed := range t.FlattenedFeeds() {
			existing[feed.ID] = feed
		}

		remoteNames := make(map[string]bool, len(folders))
		for _, rf := range folders {
			if rf.Name == "" {
				continue
			}
			remoteNames[rf.Name] = true
			folder := t.EnsureFolder(rf.Name)
			if rf.ID != "" {
				folder.SetExternalID(rf.ID)
			}
		}
		for _, sub := range subs {
			for _, rf := range sub.Folders {
				if rf.Name != "" {
					remoteNames[rf.Name] = true
				}
			}
		}
		if pruneFolders {
			for _, folder := range t.Folders() {
				if !remoteNames[folder.Name()] {
					t.RemoveFolder(folder)
				}
			}
		}

		keep := make(map[string]bool, len(subs))
		for _, sub := range subs {
			keep[sub.FeedID] = true
			feed := existing[sub.FeedID]
			if feed == nil {
				feed = newFeedFromSubscription(accountID, sub)
			} else {
				feed.ExternalID = sub.ID
				feed.SetName(sub.Title)
			}

			var want []tree.Container
			for _, rf := range sub.Folders {
				if folder := t.EnsureFolder(rf.Name); folder != nil {
					want = append(want, folder)
				}
				if b.DisallowFeedInMultipleFolders && len(want) == 1 {
					break
				}
			}
			if len(want) == 0 {
				want = append(want, t)
			}

			wanted := make(map[string]bool, len(want))
			for _, c := range want {
				wanted[c.ContainerID()] = true
				c.AddFeedToTreeAtTopLevel(feed)
			}
			for _, c := range t.ContainersOf(feed) {
				if !wanted[c.ContainerID()] {
					c.RemoveFeedFromTreeAtTopLevel(feed)
				}
			}
		}

		for id, feed := range existing {
			if !keep[id] {
				t.RemoveFeedEverywhere(feed)
				removed = append(removed, id)
			}
		}
	})
	return removed
}

// missingArticleIDs returns the IDs in ids that have no stored article.
func missingArticleIDs(ctx context.Context, h Host, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	present, err := h.Store().FetchArticles(ctx, storage.ArticleFilter{ArticleIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	missing, _ := lo.Difference(ids, models.ArticleIDs(present))
	return missing, nil
}

// groupEntries buckets entries by feed, dropping entries for unknown feeds.
func groupEntries(h Host, entries []Entry) map[string][]models.ParsedItem {
	out := make(map[string][]models.ParsedItem)
	for _, e := range entries {
		if h.Tree().ExistingFeedByID(e.FeedID) == nil {
			h.Logger().Debug("entry for unknown feed", "account", h.ID(), "feed", e.FeedID)
			continue
		}
		out[e.FeedID] = append(out[e.FeedID], e.Item)
	}
	return out
}

func withoutPending(ids []string, pending map[string]bool) []string {
	return lo.Reject(ids, func(id string, _ int) bool { return pending[id] })
}
