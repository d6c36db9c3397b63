// ABOUTME: Tests for the account registry: loading, creation rules, deletion, and fan-out
// ABOUTME: Backends are local backends, optionally wrapped to fail or to impersonate other kinds

package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/backend"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Registry Feed</title>
  <item><title>One</title><guid>one</guid></item>
  <item><title>Two</title><guid>two</guid></item>
</channel></rss>`

var errServiceDown = errors.New("service down")

// kindBackend is a local backend reporting another kind; it can be made to
// fail every refresh.
type kindBackend struct {
	*backend.Local
	kind backend.Kind
	fail bool
}

func (k *kindBackend) Kind() backend.Kind { return k.kind }

func (k *kindBackend) RefreshAll(ctx context.Context, h backend.Host) error {
	if k.fail {
		return errServiceDown
	}
	return k.Local.RefreshAll(ctx, h)
}

func testFactory(failing ...backend.Kind) BackendFactory {
	return func(kind backend.Kind, _ string, _ account.Settings) (backend.Backend, error) {
		f := fetch.New(5 * time.Second)
		b := &kindBackend{Local: backend.NewLocal(backend.Deps{Fetcher: f, Discoverer: discover.New(f)}), kind: kind}
		for _, k := range failing {
			if k == kind {
				b.fail = true
			}
		}
		return b, nil
	}
}

func newTestRegistry(t *testing.T, dir string, opts Options) *Registry {
	t.Helper()
	opts.DataDir = dir
	if opts.Backends == nil {
		opts.Backends = testFactory()
	}
	r, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFolderNames(t *testing.T) {
	assert.Equal(t, "1_local", FolderName(backend.KindLocal, "local"))

	kind, id, ok := ParseFolderName("17_abc-def")
	require.True(t, ok)
	assert.Equal(t, backend.KindFeedbin, kind)
	assert.Equal(t, "abc-def", id)

	for _, bad := range []string{"junk", "99_x", "x_1", "17_", "1"} {
		_, _, ok := ParseFolderName(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewCreatesDefaultAccount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "junk"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "99_nope"), 0755))

	r := newTestRegistry(t, dir, Options{})
	def := r.DefaultAccount()
	require.NotNil(t, def)
	assert.Equal(t, DefaultAccountID, def.ID())
	assert.DirExists(t, filepath.Join(dir, "1_local"))
	assert.FileExists(t, filepath.Join(dir, "1_local", account.SettingsFile))
	assert.Len(t, r.Accounts(), 1)
}

func TestReloadFindsAccounts(t *testing.T) {
	dir := t.TempDir()
	r, err := New(Options{DataDir: dir, Backends: testFactory()})
	require.NoError(t, err)
	feedbin, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	feedbin.SetName("My Feedbin")
	require.NoError(t, r.Close())

	reloaded := newTestRegistry(t, dir, Options{})
	require.Len(t, reloaded.Accounts(), 2)
	a, err := reloaded.Account(feedbin.ID())
	require.NoError(t, err)
	assert.Equal(t, "My Feedbin", a.Name())
	assert.Equal(t, backend.KindFeedbin, a.Kind())
}

func TestCreateAccountSingletons(t *testing.T) {
	bus := events.NewBus()
	var added []string
	events.Subscribe(bus, func(e events.AccountAdded) { added = append(added, e.AccountID) })
	r := newTestRegistry(t, t.TempDir(), Options{Bus: bus})

	cloud, err := r.CreateAccount(backend.KindCloud)
	require.NoError(t, err)
	assert.Equal(t, CloudAccountID, cloud.ID())
	again, err := r.CreateAccount(backend.KindCloud)
	require.NoError(t, err)
	assert.Same(t, cloud, again)

	local, err := r.CreateAccount(backend.KindLocal)
	require.NoError(t, err)
	assert.Same(t, r.DefaultAccount(), local)

	one, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	two, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	assert.NotEqual(t, one.ID(), two.ID())

	assert.Equal(t, []string{CloudAccountID, one.ID(), two.ID()}, added)

	_, err = r.CreateAccount(backend.Kind(99))
	assert.True(t, errors.Is(err, syncerr.ErrInvalidParameter))
}

func TestAccountsSorted(t *testing.T) {
	r := newTestRegistry(t, t.TempDir(), Options{})
	b, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	b.SetName("beta")
	a, err := r.CreateAccount(backend.KindNewsBlur)
	require.NoError(t, err)
	a.SetName("Alpha")

	accounts := r.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, DefaultAccountID, accounts[0].ID())
	assert.Equal(t, "Alpha", accounts[1].Name())
	assert.Equal(t, "beta", accounts[2].Name())
	assert.Len(t, r.AccountsOfKind(backend.KindFeedbin), 1)
}

func TestDuplicateServiceAccount(t *testing.T) {
	r := newTestRegistry(t, t.TempDir(), Options{})
	a, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	a.SetCredentialsInfo("me@example.com", "")

	assert.True(t, r.DuplicateServiceAccount(backend.KindFeedbin, "me@example.com"))
	assert.False(t, r.DuplicateServiceAccount(backend.KindFeedbin, "you@example.com"))
	assert.False(t, r.DuplicateServiceAccount(backend.KindNewsBlur, "me@example.com"))
}

func TestDeleteAccount(t *testing.T) {
	creds := credentials.NewMemoryStore()
	bus := events.NewBus()
	var deleted []string
	events.Subscribe(bus, func(e events.AccountDeleted) { deleted = append(deleted, e.AccountID) })
	r := newTestRegistry(t, t.TempDir(), Options{Bus: bus, Credentials: creds})
	ctx := context.Background()

	err := r.DeleteAccount(ctx, DefaultAccountID)
	assert.True(t, errors.Is(err, syncerr.ErrInvalidParameter))

	a, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)
	a.SetCredentialsInfo("me", "")
	require.NoError(t, creds.Set("feedbin", credentials.Credentials{Type: credentials.TypeBasic, Username: "me", Secret: "pw"}))

	require.NoError(t, r.DeleteAccount(ctx, a.ID()))
	assert.NoDirExists(t, a.Dir())
	_, err = r.Account(a.ID())
	assert.True(t, errors.Is(err, syncerr.ErrAccountNotFound))
	_, err = creds.Get("feedbin", "me")
	assert.True(t, errors.Is(err, credentials.ErrNotFound))
	assert.Equal(t, []string{a.ID()}, deleted)

	err = r.DeleteAccount(ctx, "missing")
	assert.True(t, errors.Is(err, syncerr.ErrAccountNotFound))
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	server := feedServer(t)
	bus := events.NewBus()
	var combined []events.RefreshProgressChanged
	var mu sync.Mutex
	events.Subscribe(bus, func(e events.RefreshProgressChanged) {
		if e.AccountID == "" {
			mu.Lock()
			combined = append(combined, e)
			mu.Unlock()
		}
	})
	r := newTestRegistry(t, t.TempDir(), Options{Bus: bus, Backends: testFactory(backend.KindFeedbin)})
	ctx := context.Background()

	r.DefaultAccount().Tree().AddFeedToTreeAtTopLevel(tree.NewFeed(DefaultAccountID, "", server.URL))
	failing, err := r.CreateAccount(backend.KindFeedbin)
	require.NoError(t, err)

	var errs []error
	require.NoError(t, r.RefreshAll(ctx, func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errServiceDown))
	var ae *syncerr.AccountError
	require.True(t, errors.As(errs[0], &ae))
	assert.Equal(t, failing.ID(), ae.AccountID)

	assert.Equal(t, 2, r.DefaultAccount().UnreadCount())
	assert.Equal(t, 2, r.UnreadCount())
	assert.NotEmpty(t, combined)
	assert.True(t, r.CombinedProgress().IsComplete())
}

func TestRefreshAllOffline(t *testing.T) {
	server := feedServer(t)
	r := newTestRegistry(t, t.TempDir(), Options{Network: Online(false)})
	r.DefaultAccount().Tree().AddFeedToTreeAtTopLevel(tree.NewFeed(DefaultAccountID, "", server.URL))

	err := r.RefreshAll(context.Background(), nil)
	assert.True(t, errors.Is(err, syncerr.ErrOffline))
	assert.Zero(t, r.UnreadCount())
}

func TestUnreadTotalSkipsInactiveAccounts(t *testing.T) {
	server := feedServer(t)
	bus := events.NewBus()
	var totals []int
	events.Subscribe(bus, func(e events.UnreadCountChanged) {
		if e.AccountID == "" {
			totals = append(totals, e.Count)
		}
	})
	r := newTestRegistry(t, t.TempDir(), Options{Bus: bus})
	ctx := context.Background()

	_, err := r.DefaultAccount().CreateFeed(ctx, server.URL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.UnreadCount())

	r.DefaultAccount().SetActive(false)
	assert.Zero(t, r.UnreadCount())
	assert.Equal(t, []int{2, 0}, totals)
}

func TestUnreadTotalConvergesUnderConcurrentChanges(t *testing.T) {
	server := feedServer(t)
	r := newTestRegistry(t, t.TempDir(), Options{})
	ctx := context.Background()

	acct := r.DefaultAccount()
	_, err := acct.CreateFeed(ctx, server.URL, "", nil)
	require.NoError(t, err)
	require.Equal(t, 2, r.UnreadCount())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				acct.SetActive(false)
				acct.SetActive(true)
			}
		}()
	}
	wg.Wait()

	require.True(t, acct.Settings().Active)
	assert.Equal(t, 2, r.UnreadCount())
}

func TestExistingFeed(t *testing.T) {
	r := newTestRegistry(t, t.TempDir(), Options{})
	feed := tree.NewFeed(DefaultAccountID, "", "https://example.com/feed")
	r.DefaultAccount().Tree().AddFeedToTreeAtTopLevel(feed)

	assert.Same(t, feed, r.ExistingFeed(feed.Key()))
	assert.Nil(t, r.ExistingFeed(tree.FeedKey{AccountID: "gone", FeedID: feed.ID}))
	assert.Nil(t, r.ExistingFeed(tree.FeedKey{AccountID: DefaultAccountID, FeedID: "nope"}))
}
