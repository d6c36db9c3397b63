// ABOUTME: MCP resource providers for feedsync
// ABOUTME: Exposes read-only views of accounts, unread and today's articles, and statistics

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/tree"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

// ResourceData is the standard response format for all resources.
type ResourceData struct {
	Metadata ResourceMetadata  `json:"metadata"`
	Data     interface{}       `json:"data"`
	Links    map[string]string `json:"links"`
}

// ResourceMetadata contains metadata about the resource response.
type ResourceMetadata struct {
	Timestamp   string         `json:"timestamp"`
	Count       int            `json:"count"`
	ResourceURI string         `json:"resource_uri"`
	Filters     map[string]any `json:"filters,omitempty"`
}

const (
	accountsURI       = "feedsync://accounts"
	unreadArticlesURI = "feedsync://articles/unread"
	todayArticlesURI  = "feedsync://articles/today"
	statsURI          = "feedsync://stats"
)

// StatsOutput summarizes every account.
type StatsOutput struct {
	UnreadTotal int            `json:"unread_total"`
	Accounts    []AccountStats `json:"accounts"`
}

type AccountStats struct {
	AccountOutput
	Folders    int            `json:"folders"`
	Starred    int            `json:"starred"`
	Today      int            `json:"today"`
	TopUnread  map[string]int `json:"top_unread,omitempty"`
	LastUpdate string         `json:"last_update,omitempty"`
}

func (s *Server) registerResources() {
	s.registerAccountsResource()
	s.registerArticlesResource(unreadArticlesURI, "Unread Articles",
		"Unread articles across every active account, newest first",
		models.UnreadQuery(0), map[string]any{"read": false})
	s.registerArticlesResource(todayArticlesURI, "Today's Articles",
		"Articles that arrived or were published since midnight local time across every active account, regardless of read status",
		models.TodayQuery(0), map[string]any{"since": "today"})
	s.registerStatsResource()
}

func (s *Server) registerAccountsResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         accountsURI,
			Name:        "Accounts",
			Description: "Every configured account with kind, display name, active flag, feed count, and unread count",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			accounts := lo.Map(s.registry.Accounts(), func(a *account.Account, _ int) AccountOutput {
				return accountOutput(a)
			})
			return s.resourceResult(request, ResourceData{
				Metadata: s.metadata(accountsURI, len(accounts), nil),
				Data:     accounts,
				Links: map[string]string{
					"unread_articles": unreadArticlesURI,
					"today_articles":  todayArticlesURI,
					"stats":           statsURI,
				},
			})
		},
	)
}

func (s *Server) registerArticlesResource(uri, name, description string, query models.FetchQuery, filters map[string]any) {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         uri,
			Name:        name,
			Description: description,
			MIMEType:    "application/json",
		},
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			var articles []*models.Article
			for _, acct := range s.registry.ActiveAccounts() {
				found, err := acct.FetchArticles(ctx, query)
				if err != nil {
					return nil, fmt.Errorf("failed to list articles for %s: %w", acct.ID(), err)
				}
				articles = append(articles, found...)
			}
			sortNewestFirst(articles)
			out := lo.Map(articles, func(a *models.Article, _ int) ArticleOutput { return articleOutput(a, false) })

			return s.resourceResult(request, ResourceData{
				Metadata: s.metadata(uri, len(out), filters),
				Data:     out,
				Links: map[string]string{
					"accounts": accountsURI,
					"stats":    statsURI,
				},
			})
		},
	)
}

func (s *Server) registerStatsResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         statsURI,
			Name:        "Statistics",
			Description: "Per-account statistics: feeds, folders, unread, starred, and today's counts, plus the feeds with the most unread articles",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			stats := StatsOutput{UnreadTotal: s.registry.UnreadCount()}
			for _, acct := range s.registry.Accounts() {
				entry, err := s.accountStats(ctx, acct)
				if err != nil {
					return nil, err
				}
				stats.Accounts = append(stats.Accounts, entry)
			}
			return s.resourceResult(request, ResourceData{
				Metadata: s.metadata(statsURI, len(stats.Accounts), nil),
				Data:     stats,
				Links: map[string]string{
					"accounts":        accountsURI,
					"unread_articles": unreadArticlesURI,
					"today_articles":  todayArticlesURI,
				},
			})
		},
	)
}

const topUnreadFeeds = 5

// topUnread returns the n feeds with the most unread articles by display name.
func topUnread(acct *account.Account, n int) map[string]int {
	feeds := lo.Filter(acct.Tree().FlattenedFeeds(), func(f *tree.Feed, _ int) bool {
		return acct.FeedUnreadCount(f.ID) > 0
	})
	sort.SliceStable(feeds, func(i, j int) bool {
		return acct.FeedUnreadCount(feeds[i].ID) > acct.FeedUnreadCount(feeds[j].ID)
	})
	if len(feeds) > n {
		feeds = feeds[:n]
	}
	return lo.SliceToMap(feeds, func(f *tree.Feed) (string, int) {
		return f.NameForDisplay(), acct.FeedUnreadCount(f.ID)
	})
}

func (s *Server) accountStats(ctx context.Context, acct *account.Account) (AccountStats, error) {
	starred, err := acct.FetchArticles(ctx, models.StarredQuery(0))
	if err != nil {
		return AccountStats{}, fmt.Errorf("failed to count starred for %s: %w", acct.ID(), err)
	}
	today, err := acct.FetchArticles(ctx, models.TodayQuery(0))
	if err != nil {
		return AccountStats{}, fmt.Errorf("failed to count today for %s: %w", acct.ID(), err)
	}

	entry := AccountStats{
		AccountOutput: accountOutput(acct),
		Folders:       len(acct.Tree().Folders()),
		Starred:       len(starred),
		Today:         len(today),
		TopUnread:     topUnread(acct, topUnreadFeeds),
	}
	if end := acct.Settings().LastArticleFetchEnd; end != nil {
		entry.LastUpdate = end.Format(time.RFC3339)
	}
	return entry, nil
}

func (s *Server) metadata(uri string, count int, filters map[string]any) ResourceMetadata {
	return ResourceMetadata{
		Timestamp:   s.now().Format(time.RFC3339),
		Count:       count,
		ResourceURI: uri,
		Filters:     filters,
	}
}

func (s *Server) resourceResult(request mcp.ReadResourceRequest, data ResourceData) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
