// ABOUTME: SyncBackend interface, the account-side Host it drives, and the factory keyed by kind
// ABOUTME: One implementation per service family: local, cloud, full-sync and incremental remote

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/progress"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncerr"
	"github.com/harper/feedsync/internal/transform"
	"github.com/harper/feedsync/internal/tree"
)

// Host is the account a backend works on behalf of.
type Host interface {
	ID() string
	Name() string
	Tree() *tree.Tree
	Store() storage.ArticleStore
	Queue() *storage.StatusQueue
	Transformers() *transform.Registry
	Progress() *progress.Tracker
	Logger() *log.Logger

	// UpdateFromRemote merges one feed's items and publishes the result.
	UpdateFromRemote(ctx context.Context, feedID string, items []models.ParsedItem, deleteOlder bool) (models.ArticleChanges, error)
	// UpdateFromRemoteMultiFeed merges items for many feeds at once.
	UpdateFromRemoteMultiFeed(ctx context.Context, feedItems map[string][]models.ParsedItem, defaultRead bool) (models.ArticleChanges, error)
	// ApplyRemoteStatus reconciles statuses reported by a service without
	// queueing them to be sent back.
	ApplyRemoteStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) error

	SyncToken() string
	SetSyncToken(token string)
}

// Backend implements account operations against one kind of service.
type Backend interface {
	Kind() Kind
	Behaviors() Behaviors

	RefreshAll(ctx context.Context, h Host) error
	SendArticleStatus(ctx context.Context, h Host) error
	RefreshArticleStatus(ctx context.Context, h Host) error
	ImportOPML(ctx context.Context, h Host, outlines []opml.Outline) error

	CreateFolder(ctx context.Context, h Host, name string) (*tree.Folder, error)
	RenameFolder(ctx context.Context, h Host, folder *tree.Folder, name string) error
	RemoveFolder(ctx context.Context, h Host, folder *tree.Folder) error
	RestoreFolder(ctx context.Context, h Host, folder *tree.Folder) error

	CreateFeed(ctx context.Context, h Host, url, name string, container tree.Container) (*tree.Feed, error)
	RenameFeed(ctx context.Context, h Host, feed *tree.Feed, name string) error
	AddFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error
	RemoveFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error
	MoveFeed(ctx context.Context, h Host, feed *tree.Feed, from, to tree.Container) error
	RestoreFeed(ctx context.Context, h Host, feed *tree.Feed, container tree.Container) error

	// MarkArticles records a local status change so it can reach the service.
	MarkArticles(ctx context.Context, h Host, articleIDs []string, key models.StatusKey, flag bool) error

	ValidateCredentials(ctx context.Context, creds credentials.Credentials, endpoint string) (*credentials.Credentials, error)

	SuspendNetwork()
	Resume()
	AccountWillBeDeleted(ctx context.Context, h Host) error
}

// ConditionalGetMaxAge is how long stored validators are trusted.
const ConditionalGetMaxAge = 8 * 24 * time.Hour

// DefaultConcurrency bounds parallel feed downloads within one account.
const DefaultConcurrency = 8

// Deps are the collaborators a backend may need.
type Deps struct {
	Fetcher     Fetcher
	Discoverer  *discover.Discoverer
	Service     RemoteService
	Cloud       CloudStore
	Concurrency int
	Now         func() time.Time
}

// Fetcher downloads feeds.
type Fetcher interface {
	Fetch(ctx context.Context, url string, cg *tree.ConditionalGet) (*fetch.Result, error)
}

// New builds the backend for kind.
func New(kind Kind, deps Deps) (Backend, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}

	switch kind.Family() {
	case FamilyLocal:
		if !kind.Valid() {
			break
		}
		if deps.Fetcher == nil {
			return nil, fmt.Errorf("local backend: %w: fetcher is required", syncerr.ErrInvalidParameter)
		}
		return NewLocal(deps), nil
	case FamilyCloud:
		if deps.Fetcher == nil || deps.Cloud == nil {
			return nil, fmt.Errorf("cloud backend: %w: fetcher and cloud store are required", syncerr.ErrInvalidParameter)
		}
		return NewCloud(deps), nil
	case FamilyFullSync, FamilyIncremental:
		if deps.Service == nil {
			return nil, fmt.Errorf("%s backend: %w: no service client configured", kind, syncerr.ErrNotSupported)
		}
		return NewRemote(kind, deps)
	}
	return nil, fmt.Errorf("%w: unknown backend kind %d", syncerr.ErrInvalidParameter, int(kind))
}
