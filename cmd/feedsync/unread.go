// ABOUTME: Unread command showing unread counts per account, folder, and feed
// ABOUTME: Totals skip inactive accounts

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
)

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show unread counts",
	Long:  "Show unread counts for every account, or per feed with --feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		perFeed, _ := cmd.Flags().GetBool("feeds")

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		accounts := appCtx.Registry.Accounts()
		if accountFlag != "" {
			acct, err := selectedAccount()
			if err != nil {
				return err
			}
			accounts = []*account.Account{acct}
		}

		for _, acct := range accounts {
			suffix := ""
			if !acct.IsActive() {
				suffix = faint(" (inactive)")
			}
			fmt.Printf("%s %d%s\n", bold(acct.Name()), acct.UnreadCount(), suffix)
			if !perFeed {
				continue
			}
			t := acct.Tree()
			for _, feed := range t.TopLevelFeeds() {
				if n := acct.FeedUnreadCount(feed.ID); n > 0 {
					fmt.Printf("  %s %d\n", feed.NameForDisplay(), n)
				}
			}
			for _, folder := range t.Folders() {
				n := acct.ContainerUnreadCount(folder)
				if n == 0 {
					continue
				}
				fmt.Printf("  %s %d\n", bold(folder.Name()), n)
				for _, feed := range folder.TopLevelFeeds() {
					if n := acct.FeedUnreadCount(feed.ID); n > 0 {
						fmt.Printf("    %s %d\n", feed.NameForDisplay(), n)
					}
				}
			}
		}

		if accountFlag == "" {
			fmt.Println()
			fmt.Printf("Total: %d unread\n", appCtx.Registry.UnreadCount())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unreadCmd)

	unreadCmd.Flags().Bool("feeds", false, "break counts down by folder and feed")
}
