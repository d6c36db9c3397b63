// ABOUTME: Event types published by accounts and the account registry
// ABOUTME: An empty AccountID on unread and progress events means the process-wide aggregate

package events

import (
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/progress"
)

const (
	KindRefreshBegan           Kind = "refresh-began"
	KindRefreshFinished        Kind = "refresh-finished"
	KindRefreshProgressChanged Kind = "refresh-progress-changed"
	KindArticlesDownloaded     Kind = "articles-downloaded"
	KindStatusesChanged        Kind = "statuses-changed"
	KindStructureChanged       Kind = "structure-changed"
	KindUnreadCountChanged     Kind = "unread-count-changed"
	KindAccountAdded           Kind = "account-added"
	KindAccountDeleted         Kind = "account-deleted"
	KindDisplayNameChanged     Kind = "display-name-changed"
	KindActiveChanged          Kind = "active-changed"
)

type RefreshBegan struct {
	AccountID string
}

type RefreshFinished struct {
	AccountID string
	Err       error
}

type RefreshProgressChanged struct {
	AccountID string
	Progress  progress.Snapshot
}

// ArticlesDownloaded carries the result of merging fetched items.
type ArticlesDownloaded struct {
	AccountID string
	Changes   models.ArticleChanges
	FeedIDs   []string
}

// StatusesChanged carries exactly the articles whose flag flipped.
type StatusesChanged struct {
	AccountID  string
	ArticleIDs []string
	Key        models.StatusKey
	Flag       bool
	FeedIDs    []string
}

type StructureChanged struct {
	AccountID string
}

// UnreadCountChanged reports a new count. FeedID is empty for an account
// total; AccountID is empty for the total across active accounts.
type UnreadCountChanged struct {
	AccountID string
	FeedID    string
	Count     int
}

type AccountAdded struct {
	AccountID string
}

type AccountDeleted struct {
	AccountID string
}

type DisplayNameChanged struct {
	AccountID string
	Name      string
}

type ActiveChanged struct {
	AccountID string
	Active    bool
}

func (RefreshBegan) Kind() Kind           { return KindRefreshBegan }
func (RefreshFinished) Kind() Kind        { return KindRefreshFinished }
func (RefreshProgressChanged) Kind() Kind { return KindRefreshProgressChanged }
func (ArticlesDownloaded) Kind() Kind     { return KindArticlesDownloaded }
func (StatusesChanged) Kind() Kind        { return KindStatusesChanged }
func (StructureChanged) Kind() Kind       { return KindStructureChanged }
func (UnreadCountChanged) Kind() Kind     { return KindUnreadCountChanged }
func (AccountAdded) Kind() Kind           { return KindAccountAdded }
func (AccountDeleted) Kind() Kind         { return KindAccountDeleted }
func (DisplayNameChanged) Kind() Kind     { return KindDisplayNameChanged }
func (ActiveChanged) Kind() Kind          { return KindActiveChanged }
