// ABOUTME: AccountRegistry owns the default local account and every configured sync account
// ABOUTME: Accounts live in {kind}_{id} folders under the data directory and refresh concurrently

package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/backend"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/progress"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/transform"
	"github.com/harper/feedsync/internal/tree"
	"github.com/samber/lo"
)

// DefaultAccountID is the ID of the local account every registry has.
const DefaultAccountID = "local"

// CloudAccountID is the ID of the singleton cloud account.
const CloudAccountID = "cloud"

// BackendFactory builds the backend for an account.
type BackendFactory func(kind backend.Kind, accountID string, settings account.Settings) (backend.Backend, error)

// Connectivity reports whether the network is reachable.
type Connectivity interface {
	IsOnline() bool
}

// Online is a Connectivity with a fixed answer.
type Online bool

func (o Online) IsOnline() bool { return bool(o) }

// Options configures New.
type Options struct {
	DataDir      string
	Backends     BackendFactory
	Bus          *events.Bus
	Transformers *transform.Registry
	Credentials  credentials.Store
	Network      Connectivity
	Logger       *log.Logger
	Now          func() time.Time
}

// Registry holds the process's accounts.
type Registry struct {
	opts   Options
	logger *log.Logger

	mu       sync.RWMutex
	accounts map[string]*account.Account
	total    int

	// totalMu serializes recomputing the combined unread total.
	totalMu sync.Mutex

	unsubscribe []func()
}

// FolderName returns the folder an account lives in.
func FolderName(kind backend.Kind, id string) string {
	return strconv.Itoa(int(kind)) + "_" + id
}

// ParseFolderName splits an account folder name into kind and ID.
func ParseFolderName(name string) (backend.Kind, string, bool) {
	raw, id, found := strings.Cut(name, "_")
	if !found || id == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "", false
	}
	kind := backend.Kind(n)
	if !kind.Valid() {
		return 0, "", false
	}
	return kind, id, true
}

// New loads every account found in opts.DataDir and creates the default
// local account if it does not exist.
func New(opts Options) (*Registry, error) {
	if opts.DataDir == "" || opts.Backends == nil {
		return nil, fmt.Errorf("registry: data dir and backend factory are required")
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Transformers == nil {
		opts.Transformers = transform.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Network == nil {
		opts.Network = Online(true)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &Registry{
		opts:     opts,
		logger:   opts.Logger,
		accounts: make(map[string]*account.Account),
	}
	r.unsubscribe = append(r.unsubscribe,
		events.Subscribe(opts.Bus, func(e events.UnreadCountChanged) {
			if e.AccountID != "" && e.FeedID == "" {
				r.updateTotal()
			}
		}),
		events.Subscribe(opts.Bus, func(e events.ActiveChanged) { r.updateTotal() }),
		events.Subscribe(opts.Bus, func(e events.RefreshProgressChanged) {
			if e.AccountID != "" {
				opts.Bus.Publish(events.RefreshProgressChanged{Progress: r.CombinedProgress()})
			}
		}),
	)

	if err := r.load(); err != nil {
		r.Close()
		return nil, err
	}
	if _, ok := r.accounts[DefaultAccountID]; !ok {
		if _, err := r.open(backend.KindLocal, DefaultAccountID, true); err != nil {
			r.Close()
			return nil, fmt.Errorf("create default account: %w", err)
		}
	}
	for _, a := range r.Accounts() {
		a.UpdateUnreadCounts(context.Background())
	}
	return r, nil
}

func (r *Registry) load() error {
	entries, err := os.ReadDir(r.opts.DataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kind, id, ok := ParseFolderName(entry.Name())
		if !ok {
			r.logger.Warn("ignoring unrecognized account folder", "folder", entry.Name())
			continue
		}
		if id == DefaultAccountID && kind != backend.KindLocal {
			r.logger.Warn("ignoring account folder with reserved id", "folder", entry.Name())
			continue
		}
		if _, err := r.open(kind, id, false); err != nil {
			r.logger.Warn("skipping account", "folder", entry.Name(), "err", err)
		}
	}
	return nil
}

func (r *Registry) open(kind backend.Kind, id string, save bool) (*account.Account, error) {
	dir := filepath.Join(r.opts.DataDir, FolderName(kind, id))
	settings, err := account.LoadSettings(dir)
	if err != nil {
		return nil, err
	}
	b, err := r.opts.Backends(kind, id, settings)
	if err != nil {
		return nil, err
	}
	a, err := account.Open(account.Options{
		ID:           id,
		Kind:         kind,
		Dir:          dir,
		Backend:      b,
		Bus:          r.opts.Bus,
		Transformers: r.opts.Transformers,
		Logger:       r.logger,
		Now:          r.opts.Now,
	})
	if err != nil {
		return nil, err
	}
	if save {
		if err := a.Save(); err != nil {
			a.Close()
			return nil, err
		}
	}
	r.mu.Lock()
	r.accounts[id] = a
	r.mu.Unlock()
	return a, nil
}

// Bus returns the event bus accounts publish on.
func (r *Registry) Bus() *events.Bus { return r.opts.Bus }

// DefaultAccount returns the local account.
func (r *Registry) DefaultAccount() *account.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[DefaultAccountID]
}

// Account returns the account with id.
func (r *Registry) Account(id string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, syncerr.ErrAccountNotFound)
	}
	return a, nil
}

// Accounts returns every account, the default first and the rest by name.
func (r *Registry) Accounts() []*account.Account {
	r.mu.RLock()
	list := lo.Values(r.accounts)
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if (list[i].ID() == DefaultAccountID) != (list[j].ID() == DefaultAccountID) {
			return list[i].ID() == DefaultAccountID
		}
		ni, nj := strings.ToLower(list[i].Name()), strings.ToLower(list[j].Name())
		if ni != nj {
			return ni < nj
		}
		return list[i].ID() < list[j].ID()
	})
	return list
}

// ActiveAccounts returns the active accounts in display order.
func (r *Registry) ActiveAccounts() []*account.Account {
	return lo.Filter(r.Accounts(), func(a *account.Account, _ int) bool { return a.IsActive() })
}

// AccountsOfKind returns the accounts using kind.
func (r *Registry) AccountsOfKind(kind backend.Kind) []*account.Account {
	return lo.Filter(r.Accounts(), func(a *account.Account, _ int) bool { return a.Kind() == kind })
}

// CreateAccount adds an account of kind. Singleton kinds return the
// existing account when there is one.
func (r *Registry) CreateAccount(kind backend.Kind) (*account.Account, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("create account: %w: unknown kind %d", syncerr.ErrInvalidParameter, int(kind))
	}
	if kind.IsSingleton() {
		if existing := r.AccountsOfKind(kind); len(existing) > 0 {
			return existing[0], nil
		}
	}

	id := uuid.New().String()
	switch kind {
	case backend.KindLocal:
		id = DefaultAccountID
	case backend.KindCloud:
		id = CloudAccountID
	}

	a, err := r.open(kind, id, true)
	if err != nil {
		return nil, fmt.Errorf("create %s account: %w", kind, err)
	}
	r.opts.Bus.Publish(events.AccountAdded{AccountID: id})
	r.updateTotal()
	return a, nil
}

// DuplicateServiceAccount reports whether an account of kind already uses username.
func (r *Registry) DuplicateServiceAccount(kind backend.Kind, username string) bool {
	return lo.ContainsBy(r.AccountsOfKind(kind), func(a *account.Account) bool {
		return a.Settings().Username == username
	})
}

// DeleteAccount removes an account, its folder, and its stored credentials.
// The default account cannot be deleted.
func (r *Registry) DeleteAccount(ctx context.Context, id string) error {
	if id == DefaultAccountID {
		return fmt.Errorf("delete account: %w: the default account cannot be deleted", syncerr.ErrInvalidParameter)
	}
	a, err := r.Account(id)
	if err != nil {
		return err
	}
	if a.IsRefreshing() {
		return syncerr.Wrap(syncerr.ErrRefreshInProgress, a.ID(), a.Name())
	}

	if err := a.PrepareForDeletion(ctx); err != nil {
		r.logger.Warn("backend cleanup failed", "account", id, "err", err)
	}
	r.mu.Lock()
	delete(r.accounts, id)
	r.mu.Unlock()

	if err := a.Close(); err != nil {
		r.logger.Warn("close deleted account failed", "account", id, "err", err)
	}
	if err := os.RemoveAll(a.Dir()); err != nil {
		return fmt.Errorf("remove account folder: %w", err)
	}
	if username := a.Settings().Username; username != "" && r.opts.Credentials != nil {
		if err := r.opts.Credentials.Delete(a.Kind().String(), username); err != nil {
			r.logger.Warn("delete credentials failed", "account", id, "err", err)
		}
	}

	r.opts.Bus.Publish(events.AccountDeleted{AccountID: id})
	r.updateTotal()
	return nil
}

// ExistingFeed resolves a feed reference to a live feed, or nil when the
// account or feed is gone.
func (r *Registry) ExistingFeed(key tree.FeedKey) *tree.Feed {
	a, err := r.Account(key.AccountID)
	if err != nil {
		return nil
	}
	return a.ExistingFeed(key.FeedID)
}

// UnreadCount returns the total across active accounts.
func (r *Registry) UnreadCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

func (r *Registry) updateTotal() {
	r.totalMu.Lock()
	total := lo.SumBy(r.ActiveAccounts(), func(a *account.Account) int { return a.UnreadCount() })
	r.mu.Lock()
	changed := total != r.total
	r.total = total
	r.mu.Unlock()
	r.totalMu.Unlock()
	if changed {
		r.opts.Bus.Publish(events.UnreadCountChanged{Count: total})
	}
}

// CombinedProgress sums the refresh progress of the active accounts.
func (r *Registry) CombinedProgress() progress.Snapshot {
	return progress.Combine(lo.Map(r.ActiveAccounts(), func(a *account.Account, _ int) progress.Snapshot {
		return a.Progress().Snapshot()
	})...)
}

// IsRefreshing reports whether any account is refreshing.
func (r *Registry) IsRefreshing() bool {
	return lo.ContainsBy(r.Accounts(), func(a *account.Account) bool { return a.IsRefreshing() })
}

// SuspendNetworkAll stops all accounts from starting network requests.
func (r *Registry) SuspendNetworkAll() {
	for _, a := range r.Accounts() {
		a.SuspendNetwork()
	}
}

// ResumeAll allows network requests again.
func (r *Registry) ResumeAll() {
	for _, a := range r.Accounts() {
		a.Resume()
	}
}

// SaveAll writes every account's files. Failures are logged.
func (r *Registry) SaveAll() {
	for _, a := range r.Accounts() {
		if err := a.Save(); err != nil {
			r.logger.Warn("account save failed", "account", a.ID(), "err", err)
		}
	}
}

// Close saves and closes every account.
func (r *Registry) Close() error {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.mu.Lock()
	accounts := lo.Values(r.accounts)
	r.accounts = make(map[string]*account.Account)
	r.mu.Unlock()

	var firstErr error
	for _, a := range accounts {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
