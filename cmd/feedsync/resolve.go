// ABOUTME: Lookup helpers that turn command arguments into feeds, folders, and articles
// ABOUTME: Accepts full IDs, display-length ID prefixes, URLs, and names

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
)

// findFeed matches ref against feed IDs, URLs, names, then ID prefixes.
func findFeed(acct *account.Account, ref string) (*tree.Feed, error) {
	t := acct.Tree()
	if feed := t.ExistingFeedByID(ref); feed != nil {
		return feed, nil
	}
	if feed := t.ExistingFeedByURL(ref); feed != nil {
		return feed, nil
	}

	var matches []*tree.Feed
	for _, feed := range t.FlattenedFeeds() {
		if strings.EqualFold(feed.NameForDisplay(), ref) || strings.HasPrefix(feed.ID, ref) {
			matches = append(matches, feed)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("feed %q: %w", ref, syncerr.ErrFeedNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("feed %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func findFolder(acct *account.Account, name string) (*tree.Folder, error) {
	folder := acct.Tree().ExistingFolder(name)
	if folder == nil {
		return nil, fmt.Errorf("folder %q not found", name)
	}
	return folder, nil
}

// findArticles resolves each ref to one article ID. Full IDs resolve
// directly; shorter refs must prefix exactly one stored article.
func findArticles(ctx context.Context, acct *account.Account, refs []string) ([]*models.Article, error) {
	exact, err := acct.FetchArticles(ctx, models.ByArticleIDsQuery(refs))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	byID := make(map[string]*models.Article, len(exact))
	for _, a := range exact {
		byID[a.ID] = a
	}

	var all []*models.Article
	result := make([]*models.Article, 0, len(refs))
	for _, ref := range refs {
		if a, ok := byID[ref]; ok {
			result = append(result, a)
			continue
		}
		if all == nil {
			all, err = acct.FetchArticles(ctx, models.InContainerQuery(acct.Tree(), false))
			if err != nil {
				return nil, fmt.Errorf("failed to fetch articles: %w", err)
			}
		}
		a, err := articleByPrefix(all, ref)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

func articleByPrefix(articles []*models.Article, prefix string) (*models.Article, error) {
	var match *models.Article
	for _, a := range articles {
		if !strings.HasPrefix(a.ID, prefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("article %q is ambiguous", prefix)
		}
		match = a
	}
	if match == nil {
		return nil, fmt.Errorf("article not found: %s", prefix)
	}
	return match, nil
}
