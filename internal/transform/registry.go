// ABOUTME: Priority-ordered registry of feed content transformers
// ABOUTME: URL correction is first-match; content transformation pipes each transformer into the next

package transform

import (
	"sort"
	"sync"

	"github.com/harper/feedsync/internal/models"
)

// Transformer rewrites feed URLs or parsed content for some set of feeds.
type Transformer interface {
	// Identifier is stable; registering the same identifier replaces the old one.
	Identifier() string
	// Priority orders transformers, highest first.
	Priority() int
	// CanTransform reports whether the transformer applies to feedURL.
	CanTransform(feedURL string) bool
	// CorrectFeedURL returns a machine-readable feed URL, or false to leave it alone.
	CorrectFeedURL(feedURL string) (string, bool)
	// Transform returns the rewritten feed. It may modify feed in place.
	Transform(feed *models.ParsedFeed, feedURL string) *models.ParsedFeed
}

// Registry holds transformers sorted by priority. It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	transformers []Transformer
}

// NewRegistry creates a registry holding the given transformers.
func NewRegistry(transformers ...Transformer) *Registry {
	r := &Registry{}
	for _, t := range transformers {
		r.Register(t)
	}
	return r
}

// Default returns a registry with the built-in transformers.
func Default() *Registry {
	return NewRegistry(NewYouTube(), NewMarkdown())
}

// Register adds t, replacing any transformer with the same identifier.
func (r *Registry) Register(t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.transformers {
		if existing.Identifier() == t.Identifier() {
			r.transformers[i] = t
			r.sortLocked()
			return
		}
	}
	r.transformers = append(r.transformers, t)
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	sort.SliceStable(r.transformers, func(i, j int) bool {
		return r.transformers[i].Priority() > r.transformers[j].Priority()
	})
}

// Unregister removes the transformer with identifier.
func (r *Registry) Unregister(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.transformers {
		if existing.Identifier() == identifier {
			r.transformers = append(r.transformers[:i], r.transformers[i+1:]...)
			return
		}
	}
}

// Clear removes every transformer.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.transformers = nil
	r.mu.Unlock()
}

// Transformers returns the registered transformers, highest priority first.
func (r *Registry) Transformers() []Transformer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transformer(nil), r.transformers...)
}

// CorrectFeedURL returns the first correction offered, or feedURL unchanged.
func (r *Registry) CorrectFeedURL(feedURL string) string {
	for _, t := range r.Transformers() {
		if !t.CanTransform(feedURL) {
			continue
		}
		if corrected, ok := t.CorrectFeedURL(feedURL); ok {
			return corrected
		}
	}
	return feedURL
}

// Transform runs every applicable transformer in priority order, each on
// the previous one's output. The input feed is not modified.
func (r *Registry) Transform(feed *models.ParsedFeed, feedURL string) *models.ParsedFeed {
	if feed == nil {
		return nil
	}
	out := feed.Clone()
	for _, t := range r.Transformers() {
		if t.CanTransform(feedURL) {
			out = t.Transform(out, feedURL)
		}
	}
	return out
}
