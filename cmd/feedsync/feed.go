// ABOUTME: Feed management commands for adding, listing, moving, renaming, and removing feeds
// ABOUTME: Edits go through the selected account's backend and persist on exit

package main

import (
	"fmt"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/tree"
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	Aliases: []string{"f"},
	Short:   "Manage feed subscriptions",
	Long:    "Add, list, move, rename, and remove feeds in the selected account",
}

var feedAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe to a feed",
	Long:  "Subscribe to a feed or a page that advertises one, optionally inside a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderName, _ := cmd.Flags().GetString("folder")
		title, _ := cmd.Flags().GetString("title")

		u, err := url.Parse(args[0])
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid feed URL: %s", args[0])
		}

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		container, err := acct.EnsureFolder(cmd.Context(), folderName)
		if err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}
		feed, err := acct.CreateFeed(cmd.Context(), u.String(), title, container)
		if err != nil {
			return fmt.Errorf("failed to add feed: %w", err)
		}

		if folderName != "" {
			fmt.Printf("Added feed to folder '%s': %s\n", folderName, feed.NameForDisplay())
		} else {
			fmt.Printf("Added feed: %s\n", feed.NameForDisplay())
		}
		fmt.Printf("Feed ID: %s\n", feed.ID)
		if n := acct.FeedUnreadCount(feed.ID); n > 0 {
			fmt.Printf("%d unread\n", n)
		}
		return nil
	},
}

var feedListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all feeds",
	Long:    "List the selected account's feeds grouped by folder with unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		t := acct.Tree()
		if len(t.FlattenedFeeds()) == 0 {
			fmt.Println("No feeds found. Add a feed with 'feedsync feed add <url>'")
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("Found %d feed(s) in %s:\n\n", len(t.FlattenedFeeds()), acct.Name())
		printFeeds(acct, t.TopLevelFeeds(), "")
		for _, folder := range t.Folders() {
			fmt.Printf("%s %s\n", bold(folder.Name()), unreadBadge(acct.ContainerUnreadCount(folder)))
			printFeeds(acct, folder.TopLevelFeeds(), "  ")
		}
		return nil
	},
}

var feedRemoveCmd = &cobra.Command{
	Use:     "remove <feed>",
	Aliases: []string{"rm"},
	Short:   "Unsubscribe from a feed",
	Long:    "Remove a feed from one folder with --folder, or from everywhere in the account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderName, _ := cmd.Flags().GetString("folder")

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		feed, err := findFeed(acct, args[0])
		if err != nil {
			return err
		}

		containers := acct.Tree().ContainersOf(feed)
		if folderName != "" {
			folder, err := findFolder(acct, folderName)
			if err != nil {
				return err
			}
			if !folder.ContainsFeed(feed) {
				return fmt.Errorf("feed %s is not in folder %q", feed.NameForDisplay(), folderName)
			}
			containers = []tree.Container{folder}
		}
		for _, c := range containers {
			if err := acct.RemoveFeed(cmd.Context(), feed, c); err != nil {
				return fmt.Errorf("failed to remove feed: %w", err)
			}
		}

		fmt.Printf("Removed feed: %s\n", feed.NameForDisplay())
		return nil
	},
}

var feedMoveCmd = &cobra.Command{
	Use:     "move <feed> <folder>",
	Aliases: []string{"mv"},
	Short:   "Move a feed to another folder",
	Long:    `Move a feed into a folder. Use "" as the folder to move it to the top level.`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromName, _ := cmd.Flags().GetString("from")

		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		feed, err := findFeed(acct, args[0])
		if err != nil {
			return err
		}
		from, err := sourceContainer(acct, feed, fromName)
		if err != nil {
			return err
		}
		to, err := acct.EnsureFolder(cmd.Context(), args[1])
		if err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}
		if from == to {
			return nil
		}
		if err := acct.MoveFeed(cmd.Context(), feed, from, to); err != nil {
			return fmt.Errorf("failed to move feed: %w", err)
		}

		dest := args[1]
		if dest == "" {
			dest = "top level"
		}
		fmt.Printf("Moved %s to %s\n", feed.NameForDisplay(), dest)
		return nil
	},
}

var feedRenameCmd = &cobra.Command{
	Use:   "rename <feed> <name>",
	Short: "Rename a feed",
	Long:  `Set a feed's display name. Use "" to go back to the feed's own title.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		feed, err := findFeed(acct, args[0])
		if err != nil {
			return err
		}
		if err := acct.RenameFeed(cmd.Context(), feed, args[1]); err != nil {
			return fmt.Errorf("failed to rename feed: %w", err)
		}
		fmt.Printf("Renamed feed to %s\n", feed.NameForDisplay())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedAddCmd)
	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedRemoveCmd)
	feedCmd.AddCommand(feedMoveCmd)
	feedCmd.AddCommand(feedRenameCmd)

	feedAddCmd.Flags().StringP("folder", "f", "", "folder to organize feed in")
	feedAddCmd.Flags().StringP("title", "t", "", "feed title (defaults to the feed's own)")
	feedRemoveCmd.Flags().StringP("folder", "f", "", "only remove the feed from this folder")
	feedMoveCmd.Flags().String("from", "", "folder to move the feed out of when it is in several")
}

// sourceContainer picks the container a feed moves out of. A feed in more
// than one container needs --from.
func sourceContainer(acct *account.Account, feed *tree.Feed, fromName string) (tree.Container, error) {
	if fromName != "" {
		folder, err := findFolder(acct, fromName)
		if err != nil {
			return nil, err
		}
		if !folder.ContainsFeed(feed) {
			return nil, fmt.Errorf("feed %s is not in folder %q", feed.NameForDisplay(), fromName)
		}
		return folder, nil
	}
	containers := acct.Tree().ContainersOf(feed)
	switch len(containers) {
	case 0:
		return nil, fmt.Errorf("feed %s is not in the tree", feed.NameForDisplay())
	case 1:
		return containers[0], nil
	default:
		return nil, fmt.Errorf("feed %s is in %d folders, pick one with --from", feed.NameForDisplay(), len(containers))
	}
}

func printFeeds(acct *account.Account, feeds []*tree.Feed, indent string) {
	faint := color.New(color.Faint).SprintFunc()
	for _, feed := range feeds {
		fmt.Printf("%s%s %s\n", indent, feed.NameForDisplay(), unreadBadge(acct.FeedUnreadCount(feed.ID)))
		fmt.Printf("%s  %s %s\n", indent, faint("URL:"), feed.URL)
	}
}

func unreadBadge(n int) string {
	if n == 0 {
		return ""
	}
	return color.New(color.FgCyan).Sprintf("(%d)", n)
}
