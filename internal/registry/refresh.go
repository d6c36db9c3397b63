// ABOUTME: Concurrent refresh and status sync across active accounts
// ABOUTME: One account's failure is reported to the error handler and never stops the others

package registry

import (
	"context"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/syncerr"
	"golang.org/x/sync/errgroup"
)

// ErrorHandler receives per-account failures from a fan-out. It may be
// called from several goroutines at once.
type ErrorHandler func(err error)

// RefreshAll refreshes every active account concurrently. It returns
// ErrOffline without starting anything when the network is unreachable.
func (r *Registry) RefreshAll(ctx context.Context, onError ErrorHandler) error {
	return r.fanOut(ctx, onError, (*account.Account).RefreshAll)
}

// SendArticleStatusAll pushes queued status changes for every active account.
func (r *Registry) SendArticleStatusAll(ctx context.Context, onError ErrorHandler) error {
	return r.fanOut(ctx, onError, (*account.Account).SendArticleStatus)
}

// SyncArticleStatusAll pushes and pulls statuses for every active account.
func (r *Registry) SyncArticleStatusAll(ctx context.Context, onError ErrorHandler) error {
	return r.fanOut(ctx, onError, (*account.Account).SyncArticleStatus)
}

func (r *Registry) fanOut(ctx context.Context, onError ErrorHandler, op func(*account.Account, context.Context) error) error {
	if !r.opts.Network.IsOnline() {
		return syncerr.ErrOffline
	}
	var g errgroup.Group
	for _, a := range r.ActiveAccounts() {
		g.Go(func() error {
			if err := op(a, ctx); err != nil {
				r.logger.Warn("account operation failed", "account", a.ID(), "err", err)
				if onError != nil {
					onError(err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	r.updateTotal()
	return ctx.Err()
}
