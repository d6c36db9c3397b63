// ABOUTME: List command for viewing articles with filtering options
// ABOUTME: Displays articles with read and starred status, title, and date using color formatting

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/timeutil"
	"github.com/harper/feedsync/internal/tree"
)

// listFilter holds the list command's flags.
type listFilter struct {
	all     bool
	starred bool
	today   bool
	feed    string
	folder  string
	search  string
	since   string
	limit   int
	offset  int
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List articles",
	Long: `List articles in the selected account, newest first.

Shows unread articles by default. Use --all to include read ones, or
--starred, --today, --feed, --folder, and --search to narrow the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var f listFilter
		f.all, _ = cmd.Flags().GetBool("all")
		if unread, _ := cmd.Flags().GetBool("unread"); !unread {
			f.all = true
		}
		f.starred, _ = cmd.Flags().GetBool("starred")
		f.today, _ = cmd.Flags().GetBool("today")
		f.feed, _ = cmd.Flags().GetString("feed")
		f.folder, _ = cmd.Flags().GetString("folder")
		f.search, _ = cmd.Flags().GetString("search")
		f.since, _ = cmd.Flags().GetString("since")
		f.limit, _ = cmd.Flags().GetInt("limit")
		f.offset, _ = cmd.Flags().GetInt("offset")

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		articles, err := listArticles(cmd.Context(), acct, f, time.Now())
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No articles found")
			return nil
		}
		printArticles(acct, articles)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("unread", "u", true, "show only unread articles")
	listCmd.Flags().BoolP("all", "a", false, "show all articles including read")
	listCmd.Flags().BoolP("starred", "s", false, "show only starred articles")
	listCmd.Flags().Bool("today", false, "show only articles that arrived today")
	listCmd.Flags().StringP("feed", "f", "", "filter by feed ID, URL, or name")
	listCmd.Flags().StringP("folder", "c", "", "filter by folder")
	listCmd.Flags().StringP("search", "q", "", "full-text search")
	listCmd.Flags().String("since", "", "only articles since today, yesterday, week, or month")
	listCmd.Flags().IntP("limit", "n", config.DefaultListLimit, "max articles to show (0 for no limit)")
	listCmd.Flags().IntP("offset", "o", 0, "number of articles to skip (for pagination)")

	listCmd.MarkFlagsMutuallyExclusive("unread", "all")
	listCmd.MarkFlagsMutuallyExclusive("feed", "folder")
	listCmd.MarkFlagsMutuallyExclusive("starred", "today")
}

// listArticles picks the narrowest fetch query for f, then applies the
// remaining filters, newest-first ordering, and pagination.
func listArticles(ctx context.Context, acct *account.Account, f listFilter, now time.Time) ([]*models.Article, error) {
	if f.limit < 0 || f.offset < 0 {
		return nil, fmt.Errorf("limit and offset must not be negative")
	}
	var since time.Time
	if f.since != "" {
		var ok bool
		if since, ok = timeutil.ParsePeriod(f.since, now); !ok {
			return nil, fmt.Errorf("invalid --since %q: use today, yesterday, week, or month", f.since)
		}
	}

	var q models.FetchQuery
	var scope map[string]bool
	switch {
	case f.feed != "":
		feed, err := findFeed(acct, f.feed)
		if err != nil {
			return nil, err
		}
		q = models.ForFeedQuery(feed)
		scope = map[string]bool{feed.ID: true}
	case f.folder != "":
		folder, err := findFolder(acct, f.folder)
		if err != nil {
			return nil, err
		}
		q = models.InContainerQuery(folder, false)
		scope = lo.SliceToMap(folder.FlattenedFeeds(), func(feed *tree.Feed) (string, bool) { return feed.ID, true })
	case f.starred:
		q = models.StarredQuery(0)
	case f.today:
		q = models.TodayQuery(0)
	case f.all:
		q = models.InContainerQuery(acct.Tree(), false)
	default:
		q = models.UnreadQuery(0)
	}
	if f.search != "" {
		q = models.SearchQuery(f.search)
	}

	articles, err := acct.FetchArticles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	startOfToday := timeutil.StartOfDay(now)
	articles = lo.Filter(articles, func(a *models.Article, _ int) bool {
		if scope != nil && !scope[a.FeedID] {
			return false
		}
		if !f.all && !f.starred && !a.IsUnread() {
			return false
		}
		if f.starred && !a.Status.Starred {
			return false
		}
		if f.today && a.Status.DateArrived.Before(startOfToday) {
			return false
		}
		return since.IsZero() || !a.Date().Before(since)
	})

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Date().After(articles[j].Date())
	})

	if f.offset >= len(articles) {
		return nil, nil
	}
	articles = articles[f.offset:]
	if f.limit > 0 && len(articles) > f.limit {
		articles = articles[:f.limit]
	}
	return articles, nil
}

func printArticles(acct *account.Account, articles []*models.Article) {
	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, a := range articles {
		fmt.Print(faint(shortID(a.ID)))
		fmt.Print(" ")

		switch {
		case a.Status.Starred:
			fmt.Print(yellow("★ "))
		case !a.IsUnread():
			fmt.Print("✓ ")
		default:
			fmt.Print("  ")
		}

		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Print(title)

		if d := a.Date(); !d.IsZero() {
			fmt.Print(" ")
			fmt.Print(faint(d.Format(config.DateFormatShort)))
		}
		if feed := acct.ExistingFeed(a.FeedID); feed != nil {
			fmt.Print(" ")
			fmt.Print(faint("· " + feed.NameForDisplay()))
		}
		fmt.Println()
	}
}
