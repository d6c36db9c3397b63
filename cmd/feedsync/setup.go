// ABOUTME: Cobra command for interactive account setup
// ABOUTME: Launches a bubbletea TUI wizard to pick a kind and enter service credentials
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup [kind]",
	Short: "Add an account interactively",
	Long:  "Interactive wizard to add an account and store its service credentials.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	kind := ""
	if len(args) == 1 {
		kind = args[0]
	}
	model := tui.NewSetupModel(kind, appCtx.Registry.DuplicateServiceAccount)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup canceled.")
		return nil
	}

	acct, err := addAccount(final.Result())
	if err != nil {
		return err
	}
	if err := acct.Save(); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	fmt.Printf("Account %s saved under %s\n", acct.Name(), acct.Dir())
	return nil
}
