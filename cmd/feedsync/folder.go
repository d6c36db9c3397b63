// ABOUTME: Folder management commands for organizing feeds
// ABOUTME: Creates, lists, renames, and removes folders in the selected account

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage feed folders",
	Long:  "Create, list, rename, and remove folders for organizing feeds",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		if acct.Tree().ExistingFolder(args[0]) != nil {
			return fmt.Errorf("folder already exists: %s", args[0])
		}
		folder, err := acct.CreateFolder(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to add folder: %w", err)
		}
		fmt.Printf("Created folder: %s\n", folder.Name())
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all folders",
	Long:    "List all folders with their feed and unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		folders := acct.Tree().Folders()
		if len(folders) == 0 {
			fmt.Println("No folders found. Create a folder with 'feedsync folder add <name>'")
			return nil
		}

		fmt.Printf("Found %d folder(s):\n\n", len(folders))
		for _, folder := range folders {
			fmt.Printf("%s (%d feed(s)) %s\n", folder.Name(), len(folder.TopLevelFeeds()), unreadBadge(acct.ContainerUnreadCount(folder)))
		}
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <folder> <name>",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		folder, err := findFolder(acct, args[0])
		if err != nil {
			return err
		}
		if err := acct.RenameFolder(cmd.Context(), folder, args[1]); err != nil {
			return fmt.Errorf("failed to rename folder: %w", err)
		}
		fmt.Printf("Renamed folder %s to %s\n", args[0], folder.Name())
		return nil
	},
}

var folderRemoveCmd = &cobra.Command{
	Use:     "remove <folder>",
	Aliases: []string{"rm"},
	Short:   "Remove a folder and the feeds in it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		folder, err := findFolder(acct, args[0])
		if err != nil {
			return err
		}
		count := len(folder.TopLevelFeeds())
		if err := acct.RemoveFolder(cmd.Context(), folder); err != nil {
			return fmt.Errorf("failed to remove folder: %w", err)
		}
		fmt.Printf("Removed folder %s (%d feed(s))\n", args[0], count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderAddCmd)
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderRemoveCmd)
}
