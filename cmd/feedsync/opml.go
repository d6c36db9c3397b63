// ABOUTME: Import and export commands for OPML subscription lists
// ABOUTME: Import normalizes and merges into the selected account; export writes to stdout

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import subscriptions from OPML",
	Long: `Import feeds and folders from an OPML file into the selected account.

Duplicate feeds are skipped, nested folders are flattened, and feeds that
are already subscribed keep their current folder.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open OPML: %w", err)
		}
		defer f.Close()

		before := len(acct.Tree().FlattenedFeeds())
		if err := acct.ImportOPMLReader(cmd.Context(), f); err != nil {
			return fmt.Errorf("failed to import OPML: %w", err)
		}
		after := len(acct.Tree().FlattenedFeeds())

		fmt.Printf("Imported %d new feed(s) into %s (%d total)\n", after-before, acct.Name(), after)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export OPML to stdout",
	Long:  "Export the selected account's feeds and folders in OPML format to standard output",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		return acct.OPML().Write(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
