// ABOUTME: Account management commands for add, list, rename, activate, and remove
// ABOUTME: Stores service credentials alongside the account settings

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/backend"
	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/tui"
)

var accountCmd = &cobra.Command{
	Use:     "account",
	Aliases: []string{"accounts"},
	Short:   "Manage accounts",
	Long:    "Add, list, rename, activate, deactivate, and remove accounts",
}

var accountListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		faint := color.New(color.Faint).SprintFunc()
		bold := color.New(color.Bold).SprintFunc()

		for _, acct := range appCtx.Registry.Accounts() {
			state := ""
			if !acct.IsActive() {
				state = faint(" (inactive)")
			}
			fmt.Printf("%s %s%s\n", faint(shortID(acct.ID())), bold(acct.Name()), state)
			fmt.Printf("    %s %s", faint("kind:"), acct.Kind())
			if user := acct.Settings().Username; user != "" {
				fmt.Printf("  %s %s", faint("user:"), user)
			}
			fmt.Printf("  %s %d  %s %d\n", faint("feeds:"), len(acct.Tree().FlattenedFeeds()), faint("unread:"), acct.UnreadCount())
		}
		return nil
	},
}

var accountAddCmd = &cobra.Command{
	Use:   "add <kind>",
	Short: "Add an account",
	Long: `Add an account of the given kind.

Kinds: ` + kindList() + `

Service accounts need --username and --secret. Local and cloud accounts
take neither.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := backend.ParseKind(args[0])
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")
		secret, _ := cmd.Flags().GetString("secret")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		name, _ := cmd.Flags().GetString("name")

		acct, err := addAccount(tui.AccountSetup{
			Kind:     kind,
			Username: username,
			Secret:   secret,
			Endpoint: endpoint,
		})
		if err != nil {
			return err
		}
		if name != "" {
			acct.SetName(name)
		}
		if err := acct.Save(); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Added account %s (%s)\n", green("✓"), acct.Name(), shortID(acct.ID()))
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:     "remove <account>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove an account and its data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := findAccount(args[0])
		if err != nil {
			return err
		}
		name := acct.Name()
		if err := appCtx.Registry.DeleteAccount(cmd.Context(), acct.ID()); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		fmt.Printf("Removed account %s\n", name)
		return nil
	},
}

var accountRenameCmd = &cobra.Command{
	Use:   "rename <account> <name>",
	Short: "Rename an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := findAccount(args[0])
		if err != nil {
			return err
		}
		acct.SetName(args[1])
		if err := acct.Save(); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		fmt.Printf("Renamed account to %s\n", acct.Name())
		return nil
	},
}

var accountActivateCmd = &cobra.Command{
	Use:   "activate <account>",
	Short: "Include an account in refreshes and unread totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], true)
	},
}

var accountDeactivateCmd = &cobra.Command{
	Use:   "deactivate <account>",
	Short: "Exclude an account from refreshes and unread totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd, accountAddCmd, accountRemoveCmd, accountRenameCmd, accountActivateCmd, accountDeactivateCmd)

	accountAddCmd.Flags().StringP("username", "u", "", "service username or email")
	accountAddCmd.Flags().StringP("secret", "p", "", "service password or API token")
	accountAddCmd.Flags().String("endpoint", "", "API endpoint for self-hosted services")
	accountAddCmd.Flags().StringP("name", "n", "", "display name for the account")
}

func kindList() string {
	return strings.Join(lo.Map(backend.Kinds(), func(k backend.Kind, _ int) string { return k.String() }), ", ")
}

// addAccount creates the account described by setup and stores its secret.
// Singleton kinds return the existing account.
func addAccount(setup tui.AccountSetup) (*account.Account, error) {
	if !setup.Kind.IsRemote() {
		return appCtx.Registry.CreateAccount(setup.Kind)
	}

	if setup.Username == "" || setup.Secret == "" {
		return nil, fmt.Errorf("%s accounts need a username and secret", setup.Kind)
	}
	if appCtx.Registry.DuplicateServiceAccount(setup.Kind, setup.Username) {
		return nil, fmt.Errorf("a %s account for %s already exists", setup.Kind, setup.Username)
	}

	creds := credentials.Credentials{
		Type:     credentialType(setup.Kind),
		Username: setup.Username,
		Secret:   setup.Secret,
	}
	if err := appCtx.Credentials.Set(setup.Kind.String(), creds); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	acct, err := appCtx.Registry.CreateAccount(setup.Kind)
	if err != nil {
		_ = appCtx.Credentials.Delete(setup.Kind.String(), setup.Username)
		return nil, err
	}
	acct.SetCredentialsInfo(setup.Username, setup.Endpoint)
	return acct, nil
}

func credentialType(kind backend.Kind) credentials.Type {
	switch kind {
	case backend.KindFeedly, backend.KindInoreader:
		return credentials.TypeOAuthAccess
	case backend.KindNewsBlur, backend.KindFeedbin:
		return credentials.TypeBasic
	default:
		return credentials.TypeAPIKey
	}
}

func setAccountActive(ref string, active bool) error {
	acct, err := findAccount(ref)
	if err != nil {
		return err
	}
	acct.SetActive(active)
	if err := acct.Save(); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	state := "inactive"
	if active {
		state = "active"
	}
	fmt.Printf("%s is now %s\n", acct.Name(), state)
	return nil
}

func shortID(id string) string {
	if len(id) > config.DisplayIDLength {
		return id[:config.DisplayIDLength]
	}
	return id
}
