// ABOUTME: MCP tool definitions and handlers for account, feed, and article operations
// ABOUTME: Every tool takes an optional account ID and falls back to the local account

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/timeutil"
	"github.com/harper/feedsync/internal/transform"
	"github.com/harper/feedsync/internal/tree"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

// Type definitions for input/output structures

type AccountOutput struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Refreshing bool   `json:"refreshing"`
	Feeds      int    `json:"feeds"`
	Unread     int    `json:"unread"`
}

type ListAccountsOutput struct {
	Accounts []AccountOutput `json:"accounts"`
	Count    int             `json:"count"`
}

type AccountInput struct {
	Account *string `json:"account,omitempty"`
}

type FeedOutput struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	HomePageURL string   `json:"home_page_url,omitempty"`
	Folders     []string `json:"folders,omitempty"`
	Unread      int      `json:"unread"`
}

type ListFeedsOutput struct {
	Account string       `json:"account"`
	Feeds   []FeedOutput `json:"feeds"`
	Count   int          `json:"count"`
	Folders []string     `json:"folders"`
}

type AddFeedInput struct {
	Account *string `json:"account,omitempty"`
	URL     string  `json:"url"`
	Name    *string `json:"name,omitempty"`
	Folder  *string `json:"folder,omitempty"`
}

type RefreshOutput struct {
	Accounts    []string `json:"accounts"`
	Errors      []string `json:"errors,omitempty"`
	UnreadTotal int      `json:"unread_total"`
}

type ListArticlesInput struct {
	Account *string `json:"account,omitempty"`
	Filter  *string `json:"filter,omitempty"`
	FeedID  *string `json:"feed_id,omitempty"`
	Folder  *string `json:"folder,omitempty"`
	Search  *string `json:"search,omitempty"`
	Since   *string `json:"since,omitempty"`
	Limit   *int    `json:"limit,omitempty"`
	Offset  *int    `json:"offset,omitempty"`
}

type ArticleOutput struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	FeedID      string     `json:"feed_id"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Read        bool       `json:"read"`
	Starred     bool       `json:"starred"`
	Content     string     `json:"content,omitempty"`
}

type ListArticlesOutput struct {
	Articles []ArticleOutput `json:"articles"`
	Count    int             `json:"count"`
	Filters  map[string]any  `json:"filters"`
}

type GetArticleInput struct {
	Account   *string `json:"account,omitempty"`
	ArticleID string  `json:"article_id"`
}

type MarkArticlesInput struct {
	Account    *string  `json:"account,omitempty"`
	ArticleIDs []string `json:"article_ids"`
	Action     string   `json:"action"`
}

type MarkArticlesOutput struct {
	Action  string   `json:"action"`
	Changed []string `json:"changed"`
	Count   int      `json:"count"`
}

type UnreadCountsOutput struct {
	Total    int            `json:"total"`
	Accounts map[string]int `json:"accounts"`
	Feeds    map[string]int `json:"feeds,omitempty"`
}

type ImportOPMLInput struct {
	Account *string `json:"account,omitempty"`
	OPML    string  `json:"opml"`
}

type ImportOPMLOutput struct {
	Account string `json:"account"`
	Feeds   int    `json:"feeds"`
	Folders int    `json:"folders"`
}

// Tool registration

func (s *Server) registerTools() {
	s.registerListAccountsTool()
	s.registerListFeedsTool()
	s.registerAddFeedTool()
	s.registerRefreshTool()
	s.registerListArticlesTool()
	s.registerGetArticleTool()
	s.registerMarkArticlesTool()
	s.registerUnreadCountsTool()
	s.registerImportOPMLTool()
}

var accountProperty = map[string]interface{}{
	"type":        "string",
	"description": "Optional account ID from list_accounts. Defaults to the local account. Example: 'local'",
}

func (s *Server) registerListAccountsTool() {
	tool := mcp.Tool{
		Name:        "list_accounts",
		Description: "List every configured account (the local account plus any cloud or sync service accounts) with its kind, display name, active flag, feed count, and unread count. Use the returned IDs as the 'account' argument of other tools.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListAccounts)
}

func (s *Server) registerListFeedsTool() {
	tool := mcp.Tool{
		Name:        "list_feeds",
		Description: "List the feeds of one account with their folders and unread counts. Folder names are returned separately so you can file new feeds consistently.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListFeeds)
}

func (s *Server) registerAddFeedTool() {
	tool := mcp.Tool{
		Name:        "add_feed",
		Description: "Subscribe an account to a feed. The URL may be a feed URL or a web page that links to one; the feed is discovered, added to the optional folder (created if needed), and fetched once. Fails if the account is already subscribed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The feed or site URL. Example: 'https://example.com/feed.xml'",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Optional display name overriding the feed's own title. Example: 'My Favorite Blog'",
				},
				"folder": map[string]interface{}{
					"type":        "string",
					"description": "Optional folder to file the feed under. Example: 'Tech'",
				},
			},
			Required: []string{"url"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleAddFeed)
}

func (s *Server) registerRefreshTool() {
	tool := mcp.Tool{
		Name:        "refresh",
		Description: "Refresh feeds and sync statuses. With an account ID only that account refreshes; otherwise every active account refreshes concurrently. One account failing does not stop the others; failures are listed in 'errors'.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleRefresh)
}

func (s *Server) registerListArticlesTool() {
	tool := mcp.Tool{
		Name:        "list_articles",
		Description: "List articles from one account, newest first. 'filter' selects unread, starred, today, or all. Narrow to a feed_id or folder, run a full-text search, or drop articles older than 'since' ('today', 'yesterday', 'week', 'month', or YYYY-MM-DD). Use get_article to read full content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
				"filter": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"unread", "starred", "today", "all"},
					"description": "Which articles to list. Default: 'unread'",
				},
				"feed_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional feed ID from list_feeds. Example: 'https://example.com/feed.xml'",
				},
				"folder": map[string]interface{}{
					"type":        "string",
					"description": "Optional folder name. Example: 'Tech'",
				},
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Optional full-text search over titles and content. Example: 'golang generics'",
				},
				"since": map[string]interface{}{
					"type":        "string",
					"description": "Only articles published on or after this date. Example: 'week'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of articles to return. Example: 50",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of articles to skip for pagination. Example: 20",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListArticles)
}

func (s *Server) registerGetArticleTool() {
	tool := mcp.Tool{
		Name:        "get_article",
		Description: "Get one article including its content as Markdown. Use after list_articles to read the full text.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
				"article_id": map[string]interface{}{
					"type":        "string",
					"description": "The article ID from list_articles.",
				},
			},
			Required: []string{"article_id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetArticle)
}

func (s *Server) registerMarkArticlesTool() {
	tool := mcp.Tool{
		Name:        "mark_articles",
		Description: "Mark articles read, unread, starred, or unstarred. Only articles whose status actually changes are reported back; sync accounts queue the change for the next status push. Some services refuse to mark old articles unread.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
				"article_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Article IDs from list_articles.",
				},
				"action": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"read", "unread", "star", "unstar"},
					"description": "The status change to apply.",
				},
			},
			Required: []string{"article_ids", "action"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleMarkArticles)
}

func (s *Server) registerUnreadCountsTool() {
	tool := mcp.Tool{
		Name:        "unread_counts",
		Description: "Report unread counts: the total across active accounts, each account's total, and with an account ID the per-feed counts of that account.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleUnreadCounts)
}

func (s *Server) registerImportOPMLTool() {
	tool := mcp.Tool{
		Name:        "import_opml",
		Description: "Import an OPML subscription list into an account. Duplicate feeds in a folder collapse to one and nesting deeper than one folder is flattened. Accounts whose service does not allow imports return an error. Only one import runs per account at a time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"account": accountProperty,
				"opml": map[string]interface{}{
					"type":        "string",
					"description": "The OPML document as XML text.",
				},
			},
			Required: []string{"opml"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleImportOPML)
}

// Handler implementations

func (s *Server) handleListAccounts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accounts := lo.Map(s.registry.Accounts(), func(a *account.Account, _ int) AccountOutput {
		return accountOutput(a)
	})
	return jsonResult(ListAccountsOutput{Accounts: accounts, Count: len(accounts)})
}

func (s *Server) handleListFeeds(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input AccountInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}

	t := acct.Tree()
	feeds := lo.Map(t.FlattenedFeeds(), func(f *tree.Feed, _ int) FeedOutput {
		return feedOutput(acct, f)
	})
	folders := lo.Map(t.Folders(), func(f *tree.Folder, _ int) string { return f.Name() })
	sort.Strings(folders)

	return jsonResult(ListFeedsOutput{
		Account: acct.ID(),
		Feeds:   feeds,
		Count:   len(feeds),
		Folders: folders,
	})
}

func (s *Server) handleAddFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input AddFeedInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("feed URL must use http or https scheme, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("feed URL must have a host")
	}

	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}
	container, err := acct.EnsureFolder(ctx, lo.FromPtr(input.Folder))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare folder %s: %w", formatFolder(lo.FromPtr(input.Folder)), err)
	}
	feed, err := acct.CreateFeed(ctx, input.URL, lo.FromPtr(input.Name), container)
	if err != nil {
		return nil, fmt.Errorf("failed to add feed: %w", err)
	}
	if err := acct.Save(); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return jsonResult(feedOutput(acct, feed))
}

func (s *Server) handleRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input AccountInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var output RefreshOutput
	if input.Account != nil && *input.Account != "" {
		acct, err := s.accountFor(input.Account)
		if err != nil {
			return nil, err
		}
		output.Accounts = []string{acct.ID()}
		if err := acct.RefreshAll(ctx); err != nil {
			output.Errors = append(output.Errors, err.Error())
		}
	} else {
		output.Accounts = lo.Map(s.registry.ActiveAccounts(), func(a *account.Account, _ int) string { return a.ID() })
		var mu sync.Mutex
		err := s.registry.RefreshAll(ctx, func(err error) {
			mu.Lock()
			output.Errors = append(output.Errors, err.Error())
			mu.Unlock()
		})
		if err != nil {
			return nil, fmt.Errorf("refresh failed: %w", err)
		}
		sort.Strings(output.Errors)
	}
	output.UnreadTotal = s.registry.UnreadCount()
	return jsonResult(output)
}

func (s *Server) handleListArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListArticlesInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	limit, offset := lo.FromPtr(input.Limit), lo.FromPtr(input.Offset)
	if limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must be non-negative, got %d", offset)
	}

	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}
	filter := lo.FromPtr(input.Filter)
	if filter == "" {
		filter = "unread"
	}
	filters := map[string]any{"account": acct.ID(), "filter": filter}

	query, err := s.queryFor(acct, filter, input, filters)
	if err != nil {
		return nil, err
	}
	articles, err := acct.FetchArticles(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	articles = postFilter(articles, filter, input.FeedID, query)

	if input.Since != nil && *input.Since != "" {
		since, err := s.parseDateString(*input.Since)
		if err != nil {
			return nil, err
		}
		articles = lo.Filter(articles, func(a *models.Article, _ int) bool { return !a.Date().Before(since) })
		filters["since"] = since
	}

	sortNewestFirst(articles)
	articles = paginate(articles, offset, limit)

	out := lo.Map(articles, func(a *models.Article, _ int) ArticleOutput { return articleOutput(a, false) })
	return jsonResult(ListArticlesOutput{Articles: out, Count: len(out), Filters: filters})
}

// queryFor picks the narrowest FetchQuery for the input.
func (s *Server) queryFor(acct *account.Account, filter string, input ListArticlesInput, filters map[string]any) (models.FetchQuery, error) {
	if text := lo.FromPtr(input.Search); text != "" {
		filters["search"] = text
		return models.SearchQuery(text), nil
	}
	if id := lo.FromPtr(input.FeedID); id != "" {
		feed := acct.ExistingFeed(id)
		if feed == nil {
			return models.FetchQuery{}, fmt.Errorf("feed not found: %s", id)
		}
		filters["feed_id"] = id
		return models.ForFeedQuery(feed), nil
	}
	if name := lo.FromPtr(input.Folder); name != "" {
		folder := acct.Tree().ExistingFolder(name)
		if folder == nil {
			return models.FetchQuery{}, fmt.Errorf("folder not found: %s", name)
		}
		filters["folder"] = name
		return models.InContainerQuery(folder, filter == "unread"), nil
	}

	switch filter {
	case "unread":
		return models.UnreadQuery(0), nil
	case "starred":
		return models.StarredQuery(0), nil
	case "today":
		return models.TodayQuery(0), nil
	case "all":
		return models.InContainerQuery(acct.Tree(), false), nil
	}
	return models.FetchQuery{}, fmt.Errorf("unknown filter %q: use unread, starred, today, or all", filter)
}

// postFilter applies the status filter to queries that cannot express it.
func postFilter(articles []*models.Article, filter string, feedID *string, q models.FetchQuery) []*models.Article {
	if q.Kind != models.QuerySearch && q.Kind != models.QueryForFeed && q.Kind != models.QueryInContainer {
		return articles
	}
	if q.Kind == models.QuerySearch && lo.FromPtr(feedID) != "" {
		articles = lo.Filter(articles, func(a *models.Article, _ int) bool { return a.FeedID == *feedID })
	}
	switch filter {
	case "unread":
		return lo.Filter(articles, func(a *models.Article, _ int) bool { return a.IsUnread() })
	case "starred":
		return lo.Filter(articles, func(a *models.Article, _ int) bool { return a.Status.Starred })
	}
	return articles
}

func sortNewestFirst(articles []*models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date().After(articles[j].Date())
	})
}

func paginate(articles []*models.Article, offset, limit int) []*models.Article {
	if offset >= len(articles) {
		return []*models.Article{}
	}
	articles = articles[offset:]
	if limit > 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return articles
}

func (s *Server) handleGetArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input GetArticleInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if input.ArticleID == "" {
		return nil, fmt.Errorf("article_id is required")
	}
	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}
	articles, err := acct.FetchArticles(ctx, models.ByArticleIDsQuery([]string{input.ArticleID}))
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("article not found: %s", input.ArticleID)
	}
	return jsonResult(articleOutput(articles[0], true))
}

func (s *Server) handleMarkArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input MarkArticlesInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if len(input.ArticleIDs) == 0 {
		return nil, fmt.Errorf("article_ids must not be empty")
	}
	key, flag, err := parseAction(input.Action)
	if err != nil {
		return nil, err
	}
	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}
	changed, err := acct.Mark(ctx, input.ArticleIDs, key, flag)
	if err != nil {
		return nil, fmt.Errorf("failed to mark articles: %w", err)
	}
	if changed == nil {
		changed = []string{}
	}
	return jsonResult(MarkArticlesOutput{Action: input.Action, Changed: changed, Count: len(changed)})
}

// parseAction maps a mark action to the status key and flag it sets.
func parseAction(action string) (models.StatusKey, bool, error) {
	switch action {
	case "read":
		return models.StatusRead, true, nil
	case "unread":
		return models.StatusRead, false, nil
	case "star":
		return models.StatusStarred, true, nil
	case "unstar":
		return models.StatusStarred, false, nil
	}
	return "", false, fmt.Errorf("unknown action %q: use read, unread, star, or unstar", action)
}

func (s *Server) handleUnreadCounts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input AccountInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	output := UnreadCountsOutput{
		Total:    s.registry.UnreadCount(),
		Accounts: make(map[string]int),
	}
	for _, a := range s.registry.Accounts() {
		output.Accounts[a.ID()] = a.UnreadCount()
	}
	if input.Account != nil && *input.Account != "" {
		acct, err := s.accountFor(input.Account)
		if err != nil {
			return nil, err
		}
		output.Feeds = make(map[string]int)
		for _, f := range acct.Tree().FlattenedFeeds() {
			output.Feeds[f.ID] = acct.FeedUnreadCount(f.ID)
		}
	}
	return jsonResult(output)
}

func (s *Server) handleImportOPML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ImportOPMLInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(input.OPML) == "" {
		return nil, fmt.Errorf("opml must not be empty")
	}
	acct, err := s.accountFor(input.Account)
	if err != nil {
		return nil, err
	}
	if err := acct.ImportOPMLReader(ctx, strings.NewReader(input.OPML)); err != nil {
		return nil, fmt.Errorf("failed to import OPML: %w", err)
	}
	t := acct.Tree()
	return jsonResult(ImportOPMLOutput{
		Account: acct.ID(),
		Feeds:   len(t.FlattenedFeeds()),
		Folders: len(t.Folders()),
	})
}

// Helper functions

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func accountOutput(a *account.Account) AccountOutput {
	return AccountOutput{
		ID:         a.ID(),
		Kind:       a.Kind().String(),
		Name:       a.Name(),
		Active:     a.IsActive(),
		Refreshing: a.IsRefreshing(),
		Feeds:      len(a.Tree().FlattenedFeeds()),
		Unread:     a.UnreadCount(),
	}
}

func feedOutput(acct *account.Account, f *tree.Feed) FeedOutput {
	folders := lo.FilterMap(acct.Tree().ContainersOf(f), func(c tree.Container, _ int) (string, bool) {
		folder, ok := c.(*tree.Folder)
		if !ok {
			return "", false
		}
		return folder.Name(), true
	})
	return FeedOutput{
		ID:          f.ID,
		URL:         f.URL,
		Name:        f.NameForDisplay(),
		HomePageURL: f.Metadata().HomePageURL,
		Folders:     folders,
		Unread:      acct.FeedUnreadCount(f.ID),
	}
}

func articleOutput(a *models.Article, withContent bool) ArticleOutput {
	out := ArticleOutput{
		ID:          a.ID,
		AccountID:   a.AccountID,
		FeedID:      a.FeedID,
		Title:       a.Title,
		URL:         lo.CoalesceOrEmpty(a.URL, a.ExternalURL),
		Author:      a.Author,
		PublishedAt: a.DatePublished,
		Read:        a.Status.Read,
		Starred:     a.Status.Starred,
	}
	if withContent {
		out.Content = articleMarkdown(a)
	}
	return out
}

// articleMarkdown prefers the pipeline's text rendering and converts raw
// HTML otherwise.
func articleMarkdown(a *models.Article) string {
	if a.ContentText != "" {
		return a.ContentText
	}
	if a.ContentHTML != "" {
		return transform.ToMarkdown(a.ContentHTML)
	}
	return a.Summary
}

func (s *Server) parseDateString(value string) (time.Time, error) {
	if t, ok := timeutil.ParsePeriod(value, s.now()); ok {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse date: use yesterday, week, month, today, or YYYY-MM-DD format")
}

// formatFolder returns a human-readable folder name for messages
func formatFolder(folder string) string {
	if folder == "" {
		return "root level"
	}
	return fmt.Sprintf("'%s'", folder)
}
