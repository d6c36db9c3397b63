// ABOUTME: MCP prompt definitions and handlers
// ABOUTME: Provides workflow templates for reading, catching up, and curating synced feeds

package mcp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.registerDailyDigestPrompt()
	s.registerCatchUpPrompt()
	s.registerCurateFeedsPrompt()
}

func (s *Server) registerDailyDigestPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "daily-digest",
			Description: "Summarize today's articles across every active account",
			Arguments:   []mcp.PromptArgument{},
		},
		s.handleDailyDigest,
	)
}

func (s *Server) handleDailyDigest(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	template := `# Daily Digest

## Overview
Review and summarize today's articles from every active account so the reader can catch up in a few minutes.

## Workflow Steps

### Step 1: Refresh
Call the **refresh** tool with no account to refresh every active account concurrently. Note any entries in 'errors'; a failing sync service does not block the others.

### Step 2: Check the Numbers
Read **feedsync://stats** for per-account unread and today's counts and the feeds with the most unread articles.

### Step 3: Scan Today's Articles
Read **feedsync://articles/today**, or call **list_articles** with filter='today' and an account ID to focus on one account.

### Step 4: Read What Matters
Call **get_article** for the few articles worth a closer look. Content arrives as Markdown.

### Step 5: Summarize
Group the day's articles by theme. For each theme give two or three sentences and the article IDs.

### Step 6: Clean Up
Call **mark_articles** with action='read' for everything covered by the summary. Use action='star' for articles to keep.

## Output Format

    # Digest for <date>
    ## <Theme>
    - <title> (<feed>) - one line takeaway
    ...
    Marked read: <n>   Starred: <n>   Still unread: <n>
`

	return &mcp.GetPromptResult{
		Description: "Daily digest workflow",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}

func (s *Server) registerCatchUpPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "catch-up",
			Description: "Triage a backlog of unread articles from the past few days",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "days",
					Description: "Number of days to look back (default: 7)",
					Required:    false,
				},
			},
		},
		s.handleCatchUp,
	)
}

func (s *Server) handleCatchUp(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	days := "7"
	if req.Params.Arguments != nil {
		if d, ok := req.Params.Arguments["days"]; ok && d != "" {
			if n, err := strconv.Atoi(d); err != nil || n <= 0 {
				return nil, fmt.Errorf("days must be a positive integer, got %q", d)
			}
			days = d
		}
	}

	template := fmt.Sprintf(`# Catch Up on Missed Articles

## Overview
Work through the unread backlog from the past %s days without reading every article.

## Workflow Steps

### Step 1: Assess the Backlog
Call **unread_counts**. For the account with the largest total, call it again with that account ID to see per-feed counts.

### Step 2: Triage Feed by Feed
For each feed with unread articles, call **list_articles** with filter='unread', the feed_id, and since set to %s days ago (YYYY-MM-DD). Sort the titles into:
- Must read: call **get_article** and summarize.
- Skim: one line from the title is enough.
- Skip: no value.

### Step 3: Mark Progress
After each feed call **mark_articles** with action='read' for skimmed and skipped articles and action='star' for anything saved for later. Only changed articles are reported back.

### Step 4: Report
List the must-read summaries, the number of articles cleared per feed, and the remaining unread total from **unread_counts**.
`, days, days)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Catch-up workflow for the past %s days", days),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}

func (s *Server) registerCurateFeedsPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "curate-feeds",
			Description: "Review subscriptions and suggest feeds to drop, refile, or add",
			Arguments:   []mcp.PromptArgument{},
		},
		s.handleCurateFeeds,
	)
}

func (s *Server) handleCurateFeeds(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	template := `# Curate Feeds

## Overview
Keep subscriptions high signal by finding feeds that pile up unread articles, feeds filed inconsistently, and gaps worth filling.

## Workflow Steps

### Step 1: Inventory
Call **list_accounts**, then **list_feeds** for each active account. Note folders and per-feed unread counts.

### Step 2: Find Noise
Read **feedsync://stats**. Feeds in 'top_unread' with many unread and few starred articles are candidates to drop. Check with **list_articles** filter='starred' and the feed_id.

### Step 3: Find Misfiled Feeds
Compare folder names across feeds. Some sync services allow a feed in only one folder; suggest a single best folder for each feed.

### Step 4: Fill Gaps
Suggest new sources for topics the reader stars often. Add approved ones with **add_feed**, passing a folder so they land in the right place. Bulk additions can go through **import_opml**.

## Output Format

    ## Drop
    - <feed> - <unread> unread, <starred> starred
    ## Refile
    - <feed>: <from> -> <to>
    ## Add
    - <url> in <folder> - reason
`

	return &mcp.GetPromptResult{
		Description: "Feed curation workflow",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}
