// ABOUTME: Read command for viewing article content
// ABOUTME: Displays full article details with markdown rendering and marks as read

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/transform"
)

var readCmd = &cobra.Command{
	Use:   "read <article-id>",
	Short: "Read an article",
	Long:  "Display the full content of an article and mark it as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noMark, _ := cmd.Flags().GetBool("no-mark")

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		found, err := findArticles(cmd.Context(), acct, args)
		if err != nil {
			return err
		}
		article := found[0]

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Println(strings.Repeat("─", config.SeparatorWidth))

		title := article.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Printf("%s\n\n", bold(title))

		if feed := acct.ExistingFeed(article.FeedID); feed != nil {
			fmt.Printf("%s %s\n", faint("Feed:"), feed.NameForDisplay())
		}
		if article.Author != "" {
			fmt.Printf("%s %s\n", faint("Author:"), article.Author)
		}
		if article.DatePublished != nil {
			fmt.Printf("%s %s\n", faint("Published:"), article.DatePublished.Format(config.DateFormatLong))
		}
		if link := articleLink(article); link != "" {
			fmt.Printf("%s %s\n", faint("Link:"), cyan(link))
		}

		fmt.Println(strings.Repeat("─", config.SeparatorWidth))

		if markdown := articleMarkdown(article); markdown != "" {
			rendered, err := glamour.Render(markdown, "dark")
			if err != nil {
				fmt.Printf("%s\n", faint("(markdown rendering unavailable, showing plain text)"))
				fmt.Printf("\n%s\n", markdown)
			} else {
				fmt.Print(rendered)
			}
		} else {
			fmt.Println("\n(No content available)")
		}

		fmt.Println()

		if !noMark && article.IsUnread() {
			if _, err := acct.MarkAsRead(cmd.Context(), []string{article.ID}); err != nil {
				return fmt.Errorf("failed to mark article as read: %w", err)
			}
			fmt.Printf("%s\n", faint("Marked as read"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Bool("no-mark", false, "don't mark the article as read")
}

func articleLink(a *models.Article) string {
	if a.URL != "" {
		return a.URL
	}
	return a.ExternalURL
}

// articleMarkdown prefers plain text, then converted HTML, then the summary.
func articleMarkdown(a *models.Article) string {
	switch {
	case a.ContentText != "":
		return a.ContentText
	case a.ContentHTML != "":
		return transform.ToMarkdown(a.ContentHTML)
	default:
		return transform.ToMarkdown(a.Summary)
	}
}
