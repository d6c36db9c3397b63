// ABOUTME: FetchQuery is the vocabulary used to ask an account for articles
// ABOUTME: Container queries are resolved to flattened feed IDs by the account

package models

import (
	"fmt"
	"strings"

	"github.com/harper/feedsync/internal/tree"
)

// QueryKind tags the FetchQuery variant.
type QueryKind int

const (
	QueryStarred QueryKind = iota + 1
	QueryUnread
	QueryToday
	QueryInContainer
	QueryForFeed
	QueryByArticleIDs
	QuerySearch
	QuerySearchWithinIDs
)

func (k QueryKind) String() string {
	switch k {
	case QueryStarred:
		return "starred"
	case QueryUnread:
		return "unread"
	case QueryToday:
		return "today"
	case QueryInContainer:
		return "inContainer"
	case QueryForFeed:
		return "forFeed"
	case QueryByArticleIDs:
		return "byArticleIDs"
	case QuerySearch:
		return "search"
	case QuerySearchWithinIDs:
		return "searchWithinIDs"
	}
	return fmt.Sprintf("QueryKind(%d)", int(k))
}

// FetchQuery is a tagged union; only the fields of its Kind are meaningful.
type FetchQuery struct {
	Kind       QueryKind
	Limit      int
	Container  tree.Container
	UnreadOnly bool
	Feed       *tree.Feed
	ArticleIDs []string
	Text       string
}

func StarredQuery(limit int) FetchQuery { return FetchQuery{Kind: QueryStarred, Limit: limit} }
func UnreadQuery(limit int) FetchQuery  { return FetchQuery{Kind: QueryUnread, Limit: limit} }
func TodayQuery(limit int) FetchQuery   { return FetchQuery{Kind: QueryToday, Limit: limit} }

func InContainerQuery(c tree.Container, unreadOnly bool) FetchQuery {
	return FetchQuery{Kind: QueryInContainer, Container: c, UnreadOnly: unreadOnly}
}

func ForFeedQuery(f *tree.Feed) FetchQuery {
	return FetchQuery{Kind: QueryForFeed, Feed: f}
}

func ByArticleIDsQuery(ids []string) FetchQuery {
	return FetchQuery{Kind: QueryByArticleIDs, ArticleIDs: ids}
}

func SearchQuery(text string) FetchQuery {
	return FetchQuery{Kind: QuerySearch, Text: text}
}

func SearchWithinIDsQuery(text string, ids []string) FetchQuery {
	return FetchQuery{Kind: QuerySearchWithinIDs, Text: text, ArticleIDs: ids}
}

// Validate checks that the fields required by Kind are present.
func (q FetchQuery) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%s query: negative limit %d", q.Kind, q.Limit)
	}
	switch q.Kind {
	case QueryStarred, QueryUnread, QueryToday:
		return nil
	case QueryInContainer:
		if q.Container == nil {
			return fmt.Errorf("%s query: missing container", q.Kind)
		}
	case QueryForFeed:
		if q.Feed == nil {
			return fmt.Errorf("%s query: missing feed", q.Kind)
		}
	case QueryByArticleIDs:
		return nil
	case QuerySearch, QuerySearchWithinIDs:
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%s query: missing search text", q.Kind)
		}
	default:
		return fmt.Errorf("unknown query kind %d", int(q.Kind))
	}
	return nil
}

// IsUnlimited reports whether the query returns its complete result set.
func (q FetchQuery) IsUnlimited() bool {
	return q.Limit == 0
}
