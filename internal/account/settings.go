// ABOUTME: Per-account files: settings record, feed metadata record, and OPML snapshot
// ABOUTME: Every file is written atomically; missing files load as defaults

package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/feedsync/internal/fsutil"
	"github.com/harper/feedsync/internal/opml"
	"github.com/harper/feedsync/internal/tree"
)

// File names inside an account folder.
const (
	SettingsFile      = "settings.json"
	FeedMetadataFile  = "FeedMetadata.json"
	SubscriptionsFile = "Subscriptions.opml"
	ArticlesDBFile    = "DB.sqlite3"
	SyncDBFile        = "Sync.sqlite3"
)

// Settings is the persisted per-account settings record.
type Settings struct {
	Name                  string     `json:"name,omitempty"`
	Active                bool       `json:"active"`
	Username              string     `json:"username,omitempty"`
	Endpoint              string     `json:"endpoint,omitempty"`
	SyncToken             string     `json:"syncToken,omitempty"`
	LastArticleFetchStart *time.Time `json:"lastArticleFetchStartTime,omitempty"`
	LastArticleFetchEnd   *time.Time `json:"lastArticleFetchEndTime,omitempty"`
}

// feedRecord is one entry of FeedMetadata.json.
type feedRecord struct {
	tree.Metadata
	ExternalID string `json:"externalID,omitempty"`
}

// LoadSettings reads the settings record in dir. A missing file yields the
// defaults of a new, active account.
func LoadSettings(dir string) (Settings, error) {
	s := Settings{Active: true}
	data, err := os.ReadFile(filepath.Join(dir, SettingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, data)
}

func loadFeedMetadata(dir string) (map[string]feedRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, FeedMetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed metadata: %w", err)
	}
	var records map[string]feedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse feed metadata: %w", err)
	}
	return records, nil
}

func feedMetadataFor(t *tree.Tree) map[string]feedRecord {
	feeds := t.FlattenedFeeds()
	records := make(map[string]feedRecord, len(feeds))
	for _, f := range feeds {
		records[f.ID] = feedRecord{Metadata: f.Metadata(), ExternalID: f.ExternalID}
	}
	return records
}

// loadTree rebuilds the feed tree from the OPML snapshot and applies the
// stored feed metadata.
func loadTree(dir string, t *tree.Tree) error {
	doc, err := opml.ParseFile(filepath.Join(dir, SubscriptionsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	opml.Materialize(t, doc.Outlines, nil)

	records, err := loadFeedMetadata(dir)
	if err != nil {
		return err
	}
	for _, f := range t.FlattenedFeeds() {
		rec, ok := records[f.ID]
		if !ok {
			continue
		}
		f.UpdateMetadata(func(m *tree.Metadata) { *m = rec.Metadata })
		if rec.ExternalID != "" {
			f.ExternalID = rec.ExternalID
		}
	}
	return nil
}
