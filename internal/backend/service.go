// ABOUTME: Protocol-agnostic client contract for third-party sync services
// ABOUTME: Full-sync services list state; incremental services also report changes since a token

package backend

import (
	"context"

	"github.com/harper/feedsync/internal/credentials"
	"github.com/harper/feedsync/internal/models"
)

// RemoteFolder is a folder, tag, or label on a service.
type RemoteFolder struct {
	ID   string
	Name string
}

// Subscription is a feed the service account follows.
type Subscription struct {
	// ID identifies the subscription and becomes the feed's external ID.
	ID string
	// FeedID is the service's feed identifier and becomes the feed ID.
	FeedID      string
	URL         string
	Title       string
	HomePageURL string
	Folders     []RemoteFolder
}

// Entry is an article reported by a service. Item.SyncServiceID holds the
// service's article ID.
type Entry struct {
	FeedID string
	Item   models.ParsedItem
}

// ChangeSet is everything that changed on the service since a sync token.
type ChangeSet struct {
	Entries   []Entry
	Read      []string
	Unread    []string
	Starred   []string
	Unstarred []string
	Token     string
}

// RemoteService is implemented by each service's wire client.
type RemoteService interface {
	ValidateCredentials(ctx context.Context, creds credentials.Credentials, endpoint string) (*credentials.Credentials, error)

	Subscriptions(ctx context.Context) ([]Subscription, error)
	Folders(ctx context.Context) ([]RemoteFolder, error)

	CreateFolder(ctx context.Context, name string) (RemoteFolder, error)
	RenameFolder(ctx context.Context, folderID, name string) error
	DeleteFolder(ctx context.Context, folderID string) error

	Subscribe(ctx context.Context, url string) (Subscription, error)
	RenameSubscription(ctx context.Context, subscriptionID, name string) error
	Unsubscribe(ctx context.Context, subscriptionID string) error
	AddToFolder(ctx context.Context, subscriptionID, folderID string) error
	RemoveFromFolder(ctx context.Context, subscriptionID, folderID string) error

	UnreadIDs(ctx context.Context) ([]string, error)
	StarredIDs(ctx context.Context) ([]string, error)
	Entries(ctx context.Context, articleIDs []string) ([]Entry, error)
	SetStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) error
}

// IncrementalService reports changes since an opaque token.
type IncrementalService interface {
	RemoteService
	Changes(ctx context.Context, since string) (*ChangeSet, error)
}
