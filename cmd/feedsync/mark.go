// ABOUTME: Mark commands for changing read and starred state
// ABOUTME: Supports individual article IDs or bulk marking by feed, folder, and date

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/timeutil"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Change read and starred state",
	Long:  "Mark articles read, unread, starred, or unstarred",
}

var markReadCmd = &cobra.Command{
	Use:   "read [article-id...]",
	Short: "Mark articles as read",
	Long: `Mark articles as read by ID, or mark every unread article in a feed or
folder with --feed or --folder. --before limits bulk marking to articles
older than yesterday, week, month, or a YYYY-MM-DD date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		feedRef, _ := cmd.Flags().GetString("feed")
		folderName, _ := cmd.Flags().GetString("folder")
		before, _ := cmd.Flags().GetString("before")

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			if feedRef != "" || folderName != "" || before != "" {
				return fmt.Errorf("cannot combine article IDs with --feed, --folder, or --before")
			}
			return markArticles(cmd.Context(), acct, args, models.StatusRead, true)
		}
		if feedRef == "" && folderName == "" && before == "" {
			return fmt.Errorf("provide article IDs or use --feed, --folder, or --before for bulk marking")
		}

		ids, err := bulkUnreadIDs(cmd.Context(), acct, feedRef, folderName, before, time.Now())
		if err != nil {
			return err
		}
		changed, err := acct.MarkAsRead(cmd.Context(), ids)
		if err != nil {
			return fmt.Errorf("failed to mark articles as read: %w", err)
		}
		if len(changed) == 0 {
			fmt.Println("No unread articles matched")
			return nil
		}
		fmt.Printf("Marked %d article(s) as read\n", len(changed))
		return nil
	},
}

var markUnreadCmd = &cobra.Command{
	Use:   "unread <article-id...>",
	Short: "Mark articles as unread",
	Long:  "Mark articles as unread. Synced accounts may refuse articles older than their service keeps.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markSelected(cmd, args, models.StatusRead, false)
	},
}

var markStarCmd = &cobra.Command{
	Use:   "star <article-id...>",
	Short: "Star articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markSelected(cmd, args, models.StatusStarred, true)
	},
}

var markUnstarCmd = &cobra.Command{
	Use:   "unstar <article-id...>",
	Short: "Remove stars from articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return markSelected(cmd, args, models.StatusStarred, false)
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.AddCommand(markReadCmd, markUnreadCmd, markStarCmd, markUnstarCmd)

	markReadCmd.Flags().StringP("feed", "f", "", "mark every unread article in this feed")
	markReadCmd.Flags().StringP("folder", "c", "", "mark every unread article in this folder")
	markReadCmd.Flags().String("before", "", "only articles older than yesterday, week, month, or YYYY-MM-DD")
	markReadCmd.MarkFlagsMutuallyExclusive("feed", "folder")
}

func markSelected(cmd *cobra.Command, refs []string, key models.StatusKey, flag bool) error {
	acct, err := selectedAccount()
	if err != nil {
		return err
	}
	return markArticles(cmd.Context(), acct, refs, key, flag)
}

func markArticles(ctx context.Context, acct *account.Account, refs []string, key models.StatusKey, flag bool) error {
	articles, err := findArticles(ctx, acct, refs)
	if err != nil {
		return err
	}
	changed, err := acct.Mark(ctx, models.ArticleIDs(articles), key, flag)
	if err != nil {
		return fmt.Errorf("failed to mark articles: %w", err)
	}

	done := make(map[string]bool, len(changed))
	for _, id := range changed {
		done[id] = true
	}
	verb := markVerb(key, flag)
	for _, a := range articles {
		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		if done[a.ID] {
			fmt.Printf("Marked as %s: %s\n", verb, title)
		} else {
			fmt.Printf("Unchanged: %s\n", title)
		}
	}
	return nil
}

func markVerb(key models.StatusKey, flag bool) string {
	switch {
	case key == models.StatusRead && flag:
		return "read"
	case key == models.StatusRead:
		return "unread"
	case flag:
		return "starred"
	default:
		return "unstarred"
	}
}

// bulkUnreadIDs returns the unread articles in the feed or folder scope
// dated before the cutoff named by before.
func bulkUnreadIDs(ctx context.Context, acct *account.Account, feedRef, folderName, before string, now time.Time) ([]string, error) {
	var cutoff time.Time
	if before != "" {
		var ok bool
		if cutoff, ok = timeutil.ParsePeriod(before, now); !ok {
			parsed, err := time.ParseInLocation("2006-01-02", before, now.Location())
			if err != nil {
				return nil, fmt.Errorf("invalid period %q: use yesterday, week, month, or YYYY-MM-DD", before)
			}
			cutoff = parsed
		}
	}

	q := models.UnreadQuery(0)
	switch {
	case feedRef != "":
		feed, err := findFeed(acct, feedRef)
		if err != nil {
			return nil, err
		}
		q = models.ForFeedQuery(feed)
	case folderName != "":
		folder, err := findFolder(acct, folderName)
		if err != nil {
			return nil, err
		}
		q = models.InContainerQuery(folder, true)
	}

	articles, err := acct.FetchArticles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	return lo.FilterMap(articles, func(a *models.Article, _ int) (string, bool) {
		return a.ID, a.IsUnread() && (cutoff.IsZero() || a.Date().Before(cutoff))
	}), nil
}
