// ABOUTME: Process context wiring config, logger, event bus, transformers, credentials, and the account registry
// ABOUTME: Builds each account's backend from its kind; the cloud KV client is created on first use

package app

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/harper/feedsync/internal/account"
	"github.com/harper/feedsync/internal/backend"
	"github.com/harper/feedsync/internal/charm"
	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/events"
	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/registry"
	"github.com/harper/feedsync/internal/transform"
)

// ServiceFactory returns the client a remote account syncs through. creds
// is nil when nothing is stored for the account's username.
type ServiceFactory func(kind backend.Kind, settings account.Settings, creds *credentials.Credentials) (backend.RemoteService, error)

// Options configures New. Only Config is required.
type Options struct {
	Config      *config.Config
	Logger      *log.Logger
	Credentials credentials.Store
	Services    ServiceFactory
	Cloud       backend.CloudStore
}

// Network reports connectivity. It starts from the configured offline flag
// and can be flipped at runtime.
type Network struct {
	offline atomic.Bool
}

func (n *Network) IsOnline() bool       { return !n.offline.Load() }
func (n *Network) SetOffline(off bool) { n.offline.Store(off) }

// App is the explicit context handed to commands and servers.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Bus          *events.Bus
	Transformers *transform.Registry
	Credentials  credentials.Store
	Network      *Network
	Registry     *registry.Registry

	fetcher    *fetch.Fetcher
	discoverer *discover.Discoverer
	services   ServiceFactory

	cloudOnce sync.Once
	cloud     backend.CloudStore
	cloudErr  error
}

// New wires the process context and loads every account.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Credentials == nil {
		opts.Credentials = credentials.NewFileStore(opts.Config.CredentialsPath())
	}

	fetcher := fetch.New(opts.Config.HTTPTimeout)
	a := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Bus:          events.NewBus(),
		Transformers: transform.Default(),
		Credentials:  opts.Credentials,
		Network:      &Network{},
		fetcher:      fetcher,
		discoverer:   discover.New(fetcher),
		services:     opts.Services,
		cloud:        opts.Cloud,
	}
	a.Network.SetOffline(opts.Config.Offline)

	reg, err := registry.New(registry.Options{
		DataDir:      opts.Config.GetDataDir(),
		Backends:     a.backendFor,
		Bus:          a.Bus,
		Transformers: a.Transformers,
		Credentials:  a.Credentials,
		Network:      a.Network,
		Logger:       a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	a.Registry = reg
	return a, nil
}

func (a *App) backendFor(kind backend.Kind, accountID string, settings account.Settings) (backend.Backend, error) {
	deps := backend.Deps{
		Fetcher:     a.fetcher,
		Discoverer:  a.discoverer,
		Concurrency: a.Config.RefreshConcurrency,
	}
	switch {
	case kind == backend.KindCloud:
		store, err := a.cloudStore()
		if err != nil {
			return nil, fmt.Errorf("cloud account %s: %w", accountID, err)
		}
		deps.Cloud = store
	case kind.IsRemote() && a.services != nil:
		creds, err := a.Credentials.Get(kind.String(), settings.Username)
		if err != nil && !errors.Is(err, credentials.ErrNotFound) {
			return nil, fmt.Errorf("load credentials for %s: %w", accountID, err)
		}
		service, err := a.services(kind, settings, creds)
		if err != nil {
			return nil, fmt.Errorf("%s service for %s: %w", kind, accountID, err)
		}
		deps.Service = service
	}
	return backend.New(kind, deps)
}

func (a *App) cloudStore() (backend.CloudStore, error) {
	a.cloudOnce.Do(func() {
		if a.cloud != nil {
			return
		}
		client, err := charm.NewClient(a.Config.CharmHost)
		if err != nil {
			a.cloudErr = err
			return
		}
		a.cloud = client
	})
	return a.cloud, a.cloudErr
}

// Close saves and closes every account.
func (a *App) Close() error {
	if a.Registry == nil {
		return nil
	}
	return a.Registry.Close()
}
