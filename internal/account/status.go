// ABOUTME: Read and starred status changes for an account
// ABOUTME: Local marks are applied, published, and handed to the backend; remote reports only apply

package account

import (
	"context"
	"fmt"

	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/storage"
	"github.com/samber/lo"
)

// Mark sets key to flag for the given articles on behalf of the user and
// returns the IDs whose status actually changed. Backend queueing failures
// are logged; the local change stands.
func (a *Account) Mark(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) ([]string, error) {
	ids, err := a.permittedForMark(ctx, lo.Uniq(articleIDs), key, flag)
	if err != nil {
		return nil, err
	}
	changed, err := a.reconcileStatus(ctx, ids, key, flag)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		if err := a.backend.MarkArticles(ctx, a, changed, key, flag); err != nil {
			a.logger.Warn("queue status change failed", "account", a.id, "key", key, "err", err)
		}
	}
	return changed, nil
}

func (a *Account) MarkAsRead(ctx context.Context, ids []string) ([]string, error) {
	return a.Mark(ctx, ids, models.StatusRead, true)
}

func (a *Account) MarkAsUnread(ctx context.Context, ids []string) ([]string, error) {
	return a.Mark(ctx, ids, models.StatusRead, false)
}

func (a *Account) MarkAsStarred(ctx context.Context, ids []string) ([]string, error) {
	return a.Mark(ctx, ids, models.StatusStarred, true)
}

func (a *Account) MarkAsUnstarred(ctx context.Context, ids []string) ([]string, error) {
	return a.Mark(ctx, ids, models.StatusStarred, false)
}

// MarkAndFetchNew marks the articles and returns the ones that changed.
func (a *Account) MarkAndFetchNew(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) ([]*models.Article, error) {
	changed, err := a.Mark(ctx, articleIDs, key, flag)
	if err != nil || len(changed) == 0 {
		return nil, err
	}
	return a.store.FetchArticles(ctx, storage.ArticleFilter{ArticleIDs: changed})
}

// ApplyRemoteStatus applies statuses reported by the sync service. Nothing
// is queued to be sent back.
func (a *Account) ApplyRemoteStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) error {
	_, err := a.reconcileStatus(ctx, articleIDs, key, flag)
	return err
}

// reconcileStatus makes sure a status row exists for every ID, applies the
// flag, and publishes exactly the IDs that flipped.
func (a *Account) reconcileStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) ([]string, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	if _, err := a.store.CreateStatusesIfAbsent(ctx, articleIDs); err != nil {
		return nil, fmt.Errorf("create statuses: %w", err)
	}
	changed, err := a.store.MarkStatus(ctx, articleIDs, key, flag)
	if err != nil {
		return nil, fmt.Errorf("mark %s: %w", key, err)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	owners, err := a.store.FeedIDsForArticles(ctx, changed)
	if err != nil {
		a.logger.Warn("load owning feeds failed", "account", a.id, "err", err)
	}
	feedIDs := lo.Uniq(lo.Values(owners))
	a.bus.Publish(events.StatusesChanged{
		AccountID:  a.id,
		ArticleIDs: changed,
		Key:        key,
		Flag:       flag,
		FeedIDs:    feedIDs,
	})
	if key == models.StatusRead {
		a.unread.Update(ctx, feedIDs)
	}
	return changed, nil
}

// permittedForMark drops articles the backend will not mark unread.
func (a *Account) permittedForMark(ctx context.Context, ids []string, key models.StatusKey, flag bool) ([]string, error) {
	b := a.backend.Behaviors()
	if key != models.StatusRead || flag || b.DisallowMarkAsUnreadAfterDays <= 0 || len(ids) == 0 {
		return ids, nil
	}
	articles, err := a.store.FetchArticles(ctx, storage.ArticleFilter{ArticleIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	now := a.now()
	tooOld := make(map[string]bool)
	for _, article := range articles {
		if !b.CanMarkUnread(article.Date(), now) {
			tooOld[article.ID] = true
		}
	}
	return lo.Reject(ids, func(id string, _ int) bool { return tooOld[id] }), nil
}
