// ABOUTME: Per-feed unread count cache and account total for one account
// ABOUTME: Chooses a single, batch, or full count query by how many feeds changed

package unread

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/harper/feedsync/internal/models"
)

// BatchThreshold is the feed count at which a batch update becomes a full recount.
const BatchThreshold = 10

// CountSource is the part of the article store the aggregator reads.
type CountSource interface {
	UnreadCount(ctx context.Context, feedID string) (int, error)
	UnreadCounts(ctx context.Context, feedIDs []string) (map[string]int, error)
	AllUnreadCounts(ctx context.Context) (map[string]int, error)
}

// Options configures an Aggregator.
type Options struct {
	// Feeds returns the IDs of the account's flattened feeds.
	Feeds func() []string
	// OnFeedChange is called when a feed's count changes.
	OnFeedChange func(feedID string, count int)
	// OnTotalChange is called when the account total changes.
	OnTotalChange func(total int)
	Logger        *log.Logger
}

// Aggregator caches unread counts for one account.
type Aggregator struct {
	source CountSource
	opts   Options
	logger *log.Logger

	mu          sync.Mutex
	counts      map[string]int
	total       int
	fetchingAll bool

	group singleflight.Group
}

// New creates an aggregator reading counts from source.
func New(source CountSource, opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Feeds == nil {
		opts.Feeds = func() []string { return nil }
	}
	return &Aggregator{
		source: source,
		opts:   opts,
		logger: logger,
		counts: make(map[string]int),
	}
}

// Count returns the cached count for a feed.
func (a *Aggregator) Count(feedID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[feedID]
}

// Total returns the cached account total.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// IsFetchingAll reports whether a full recount is in flight.
func (a *Aggregator) IsFetchingAll() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetchingAll
}

// SetCounts stores counts and recomputes the total unless a full recount is
// in flight; that recount recomputes the total when it finishes.
func (a *Aggregator) SetCounts(counts map[string]int) {
	var changed []feedCount
	a.mu.Lock()
	for id, n := range counts {
		if old, ok := a.counts[id]; !ok || old != n {
			changed = append(changed, feedCount{id: id, count: n})
		}
		a.counts[id] = n
	}
	deferTotal := a.fetchingAll
	a.mu.Unlock()

	a.notifyFeeds(changed)
	if !deferTotal {
		a.Recompute()
	}
}

// Forget drops the cached count of feeds no longer in the account.
func (a *Aggregator) Forget(feedIDs ...string) {
	a.mu.Lock()
	for _, id := range feedIDs {
		delete(a.counts, id)
	}
	a.mu.Unlock()
	a.Recompute()
}

// Recompute sums the cached counts of the account's current feeds.
func (a *Aggregator) Recompute() {
	feeds := a.opts.Feeds()

	a.mu.Lock()
	total := 0
	for _, id := range feeds {
		total += a.counts[id]
	}
	changed := total != a.total
	a.total = total
	a.mu.Unlock()

	if changed && a.opts.OnTotalChange != nil {
		a.opts.OnTotalChange(total)
	}
}

// Update refreshes counts for the given feeds. Failures are logged and
// leave the cache as it was.
func (a *Aggregator) Update(ctx context.Context, feedIDs []string) {
	switch n := len(feedIDs); {
	case n == 0:
		return
	case n == 1:
		count, err := a.source.UnreadCount(ctx, feedIDs[0])
		if err != nil {
			a.logger.Warn("unread count fetch failed", "feed", feedIDs[0], "err", err)
			return
		}
		a.SetCounts(map[string]int{feedIDs[0]: count})
	case n < BatchThreshold:
		counts, err := a.source.UnreadCounts(ctx, feedIDs)
		if err != nil {
			a.logger.Warn("unread counts fetch failed", "feeds", n, "err", err)
			return
		}
		a.SetCounts(counts)
	default:
		a.UpdateAll(ctx)
	}
}

// UpdateAll recounts every feed. Concurrent calls share one recount.
func (a *Aggregator) UpdateAll(ctx context.Context) {
	a.group.Do("all", func() (any, error) {
		a.mu.Lock()
		a.fetchingAll = true
		a.mu.Unlock()

		counts, err := a.source.AllUnreadCounts(ctx)

		a.mu.Lock()
		a.fetchingAll = false
		a.mu.Unlock()

		if err != nil {
			a.logger.Warn("full unread count fetch failed", "err", err)
			return nil, nil
		}

		// Feeds with nothing unread are absent from the result.
		full := make(map[string]int, len(counts))
		for _, id := range a.opts.Feeds() {
			full[id] = counts[id]
		}
		a.SetCounts(full)
		return nil, nil
	})
}

// ValidateFromArticles treats a complete fetch of feedIDs as ground truth
// and overwrites their cached counts from the returned articles.
func (a *Aggregator) ValidateFromArticles(feedIDs []string, articles []*models.Article) {
	counts := make(map[string]int, len(feedIDs))
	for _, id := range feedIDs {
		counts[id] = 0
	}
	for _, article := range articles {
		if _, ok := counts[article.FeedID]; ok && article.IsUnread() {
			counts[article.FeedID]++
		}
	}
	a.SetCounts(counts)
}

type feedCount struct {
	id    string
	count int
}

func (a *Aggregator) notifyFeeds(changed []feedCount) {
	if a.opts.OnFeedChange == nil {
		return
	}
	for _, c := range changed {
		a.opts.OnFeedChange(c.id, c.count)
	}
}
