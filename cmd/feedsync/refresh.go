// ABOUTME: Refresh and sync commands that fan out across accounts
// ABOUTME: Prints a per-account summary; one account failing does not stop the others

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/syncerr"
)

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"fetch"},
	Short:   "Fetch new articles",
	Long: `Refresh every active account, or only the one named by --account.

Local accounts download each feed with conditional requests. Synced
accounts pull subscriptions, articles, and read state from their service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAcrossAccounts(cmd.Context(), "Refreshing",
			func(ctx context.Context, acct *account.Account) error { return acct.RefreshAll(ctx) },
			func(ctx context.Context, onError func(error)) error {
				return appCtx.Registry.RefreshAll(ctx, onError)
			})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync read and starred state",
	Long: `Send queued read and starred changes to each synced account's service,
then pull the service's current state back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAcrossAccounts(cmd.Context(), "Syncing",
			func(ctx context.Context, acct *account.Account) error { return acct.SyncArticleStatus(ctx) },
			func(ctx context.Context, onError func(error)) error {
				return appCtx.Registry.SyncArticleStatusAll(ctx, onError)
			})
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(syncCmd)
}

// runAcrossAccounts runs one when --account is set and all otherwise, then
// prints how each account's unread count moved.
func runAcrossAccounts(ctx context.Context, verb string,
	one func(context.Context, *account.Account) error,
	all func(context.Context, func(error)) error,
) error {
	targets := appCtx.Registry.ActiveAccounts()
	if accountFlag != "" {
		acct, err := selectedAccount()
		if err != nil {
			return err
		}
		targets = []*account.Account{acct}
	}
	before := make(map[string]int, len(targets))
	for _, acct := range targets {
		before[acct.ID()] = acct.UnreadCount()
	}

	fmt.Printf("%s %d account(s)...\n", verb, len(targets))

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	onError := func(err error) {
		id := ""
		var acctErr *syncerr.AccountError
		if errors.As(err, &acctErr) {
			id = acctErr.AccountID
		}
		mu.Lock()
		failed[id] = err
		mu.Unlock()
	}

	var err error
	if accountFlag != "" {
		if runErr := one(ctx, targets[0]); runErr != nil {
			if errors.Is(runErr, syncerr.ErrOffline) || errors.Is(runErr, context.Canceled) {
				return runErr
			}
			onError(syncerr.Wrap(runErr, targets[0].ID(), targets[0].Name()))
		}
	} else {
		err = all(ctx, onError)
	}
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, acct := range targets {
		fmt.Printf("  %s ", acct.Name())
		if failure, ok := failed[acct.ID()]; ok {
			fmt.Printf("%s %s\n", red("x"), failure.Error())
			if syncerr.IsCredentials(failure) {
				fmt.Printf("    %s\n", faint("re-enter credentials with 'feedsync setup'"))
			}
			continue
		}
		after := acct.UnreadCount()
		if delta := after - before[acct.ID()]; delta != 0 {
			fmt.Printf("%s %d unread (%+d)\n", green("v"), after, delta)
		} else {
			fmt.Printf("%s %d unread\n", green("v"), after)
		}
	}
	if stray, ok := failed[""]; ok {
		fmt.Printf("  %s %s\n", red("x"), stray.Error())
	}

	fmt.Println()
	fmt.Printf("Summary: %d unread across active accounts\n", appCtx.Registry.UnreadCount())
	if len(failed) > 0 {
		fmt.Printf("  %s %d account(s) failed\n", red("x"), len(failed))
	}
	return nil
}
