// ABOUTME: Refresh, status sync, and OPML import orchestration for one account
// ABOUTME: Refresh and import are each single-flight and publish begin and finish events

package account

import (
	"context"
	"fmt"
	"io"

	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/syncerr"
)

// IsRefreshing reports whether a refresh is running.
func (a *Account) IsRefreshing() bool { return a.refreshing.Load() }

// RefreshAll runs a full backend refresh. A refresh already in progress
// makes this call fail with ErrRefreshInProgress.
func (a *Account) RefreshAll(ctx context.Context) error {
	if !a.refreshing.CompareAndSwap(false, true) {
		return a.wrap(syncerr.ErrRefreshInProgress)
	}
	start := a.now()
	a.mu.Lock()
	a.settings.LastArticleFetchStart = &start
	a.mu.Unlock()
	a.bus.Publish(events.RefreshBegan{AccountID: a.id})

	err := a.backend.RefreshAll(ctx, a)

	end := a.now()
	a.mu.Lock()
	a.settings.LastArticleFetchEnd = &end
	a.opmlDirty = true
	a.mu.Unlock()
	a.unread.UpdateAll(ctx)
	a.saveQuietly()

	a.refreshing.Store(false)
	err = a.wrap(err)
	a.bus.Publish(events.RefreshFinished{AccountID: a.id, Err: err})
	return err
}

// SendArticleStatus pushes queued status changes.
func (a *Account) SendArticleStatus(ctx context.Context) error {
	return a.wrap(a.backend.SendArticleStatus(ctx, a))
}

// SyncArticleStatus pushes queued changes and pulls remote statuses.
func (a *Account) SyncArticleStatus(ctx context.Context) error {
	if err := a.backend.SendArticleStatus(ctx, a); err != nil {
		return a.wrap(err)
	}
	return a.wrap(a.backend.RefreshArticleStatus(ctx, a))
}

// IsImporting reports whether an OPML import is running.
func (a *Account) IsImporting() bool { return a.importing.Load() }

// ImportOPML adds the outlines' folders and feeds. A second import while one
// runs fails with ErrOPMLImportInProgress and changes nothing.
func (a *Account) ImportOPML(ctx context.Context, outlines []opml.Outline) error {
	if !a.importing.CompareAndSwap(false, true) {
		return a.wrap(syncerr.ErrOPMLImportInProgress)
	}
	defer a.importing.Store(false)

	if a.backend.Behaviors().DisallowOPMLImports {
		return a.wrap(fmt.Errorf("import OPML: %w", syncerr.ErrNotSupported))
	}
	err := a.backend.ImportOPML(ctx, a, outlines)

	a.mu.Lock()
	a.settings.LastArticleFetchStart = nil
	a.opmlDirty = true
	a.mu.Unlock()
	a.unread.UpdateAll(ctx)
	a.saveQuietly()
	return a.wrap(err)
}

// ImportOPMLReader parses an OPML document from r and imports it.
func (a *Account) ImportOPMLReader(ctx context.Context, r io.Reader) error {
	doc, err := opml.Parse(r)
	if err != nil {
		return fmt.Errorf("parse OPML: %w", err)
	}
	return a.ImportOPML(ctx, doc.Outlines)
}

// SuspendNetwork stops the backend from starting new network requests.
func (a *Account) SuspendNetwork() { a.backend.SuspendNetwork() }

// Resume allows network requests again.
func (a *Account) Resume() { a.backend.Resume() }

// PrepareForDeletion lets the backend clean up before the folder is removed.
func (a *Account) PrepareForDeletion(ctx context.Context) error {
	return a.wrap(a.backend.AccountWillBeDeleted(ctx, a))
}
