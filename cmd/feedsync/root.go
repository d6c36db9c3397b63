// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads config, builds the app context, and resolves the selected account

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/app"
	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/syncerr"
)

var (
	configPath  string
	accountFlag string
	verbose     bool
	offline     bool
	appCtx      *app.App
)

var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "Multi-account feed reader and sync engine",
	Long: `
███████╗███████╗███████╗██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔════╝██╔════╝██╔════╝██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
█████╗  █████╗  █████╗  ██║  ██║███████╗ ╚████╔╝ ██╔██╗ ██║██║
██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║     ███████╗███████╗██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚═╝     ╚══════╝╚══════╝╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝

Read RSS, Atom, and JSON feeds across local and synced accounts.

Keep subscriptions and read state in one place, sync them to Charm Cloud,
and expose everything over MCP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if offline {
			cfg.Offline = true
		}

		appCtx, err = app.New(app.Options{
			Config: cfg,
			Logger: newLogger(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize accounts: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appCtx == nil {
			return nil
		}
		err := appCtx.Close()
		appCtx = nil
		if err != nil {
			return fmt.Errorf("failed to close accounts: %w", err)
		}
		return nil
	},
}

// Execute runs the root command, cancelling on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/feedsync/config.json)")
	rootCmd.PersistentFlags().StringVarP(&accountFlag, "account", "A", "", "account ID, ID prefix, or name (default: the local account)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "skip all network access")
}

func newLogger() *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		Prefix:          "feedsync",
	})
}

// selectedAccount returns the account named by --account, or the default.
func selectedAccount() (*account.Account, error) {
	if accountFlag == "" {
		return appCtx.Registry.DefaultAccount(), nil
	}
	return findAccount(accountFlag)
}

// findAccount matches ref against account IDs, then ID prefixes, then names.
func findAccount(ref string) (*account.Account, error) {
	if acct, err := appCtx.Registry.Account(ref); err == nil {
		return acct, nil
	}

	var matches []*account.Account
	for _, acct := range appCtx.Registry.Accounts() {
		if strings.HasPrefix(acct.ID(), ref) || strings.EqualFold(acct.Name(), ref) {
			matches = append(matches, acct)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("account %q: %w", ref, syncerr.ErrAccountNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("account %q is ambiguous (%d matches)", ref, len(matches))
	}
}
