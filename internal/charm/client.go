// ABOUTME: Charm KV client holding the cloud account's subscriptions and article statuses
// ABOUTME: Short-lived transactional connections; status writes resolve conflicts by last writer wins

package charm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/harper/feedsync/internal/models"
)

const (
	// Key prefixes for KV store
	FeedPrefix   = "feed:"
	StatusPrefix = "status:"

	// Default Charm server
	DefaultCharmHost = "charm.2389.dev"

	// DBName is the name of the charm kv database for feedsync.
	DBName = "feedsync"
)

// Subscription is a feed the cloud account follows.
type Subscription struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name,omitempty"`
	HomePageURL string    `json:"homePageURL,omitempty"`
	Folders     []string  `json:"folders,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Status is one article flag as last written by any device.
type Status struct {
	ArticleID string           `json:"articleID"`
	Key       models.StatusKey `json:"key"`
	Flag      bool             `json:"flag"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Client holds configuration for KV operations. It does not hold a
// persistent connection; each operation opens the database and closes it.
type Client struct {
	dbName   string
	autoSync bool
}

// NewClient creates a client talking to host. An empty host keeps CHARM_HOST
// or falls back to DefaultCharmHost.
func NewClient(host string) (*Client, error) {
	if host != "" {
		os.Setenv("CHARM_HOST", host)
	} else if os.Getenv("CHARM_HOST") == "" {
		os.Setenv("CHARM_HOST", DefaultCharmHost)
	}

	return &Client{
		dbName:   DBName,
		autoSync: true,
	}, nil
}

// NewTestClientWithDBName creates a Client with a custom database name.
// Use this when you need isolated test databases.
func NewTestClientWithDBName(dbName string, autoSync bool) *Client {
	return &Client{
		dbName:   dbName,
		autoSync: autoSync,
	}
}

// DoReadOnly executes a function with read-only database access.
func (c *Client) DoReadOnly(fn func(k *kv.KV) error) error {
	return kv.DoReadOnly(c.dbName, fn)
}

// Do executes a function with write access to the database, syncing
// afterwards when auto-sync is enabled.
func (c *Client) Do(fn func(k *kv.KV) error) error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		if err := fn(k); err != nil {
			return err
		}
		if c.autoSync {
			return k.Sync()
		}
		return nil
	})
}

// SetAutoSync enables or disables automatic sync after writes.
func (c *Client) SetAutoSync(enabled bool) {
	c.autoSync = enabled
}

// Sync pulls and pushes changes with the Charm server.
func (c *Client) Sync() error {
	if !c.autoSync {
		return nil
	}
	return kv.Do(c.dbName, func(k *kv.KV) error {
		return k.Sync()
	})
}

// Reset wipes all local data.
func (c *Client) Reset() error {
	return kv.Do(c.dbName, func(k *kv.KV) error {
		return k.Reset()
	})
}

// ID returns the user's Charm ID for status display.
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", err
	}
	return cc.ID()
}

func feedKey(id string) []byte {
	return []byte(FeedPrefix + id)
}

func statusKey(articleID string, key models.StatusKey) []byte {
	return []byte(StatusPrefix + articleID + ":" + string(key))
}

// PutSubscription stores or replaces a subscription.
func (c *Client) PutSubscription(s Subscription) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	return c.Do(func(k *kv.KV) error {
		return k.Set(feedKey(s.ID), data)
	})
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(id string) error {
	return c.Do(func(k *kv.KV) error {
		return k.Delete(feedKey(id))
	})
}

// Subscriptions returns all subscriptions sorted by URL. Corrupt records are skipped.
func (c *Client) Subscriptions() ([]Subscription, error) {
	var subs []Subscription
	err := c.DoReadOnly(func(k *kv.KV) error {
		return eachWithPrefix(k, FeedPrefix, func(data []byte) {
			var s Subscription
			if json.Unmarshal(data, &s) == nil {
				subs = append(subs, s)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].URL < subs[j].URL })
	return subs, nil
}

// PutStatuses writes statuses, keeping an existing record when it is newer.
// It returns how many records were written.
func (c *Client) PutStatuses(statuses []Status) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	written := 0
	err := c.Do(func(k *kv.KV) error {
		for _, s := range statuses {
			key := statusKey(s.ArticleID, s.Key)
			if data, err := k.Get(key); err == nil && data != nil {
				var existing Status
				if json.Unmarshal(data, &existing) == nil && existing.UpdatedAt.After(s.UpdatedAt) {
					continue
				}
			}
			data, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("marshal status: %w", err)
			}
			if err := k.Set(key, data); err != nil {
				return fmt.Errorf("set status: %w", err)
			}
			written++
		}
		return nil
	})
	return written, err
}

// Statuses returns every stored status.
func (c *Client) Statuses() ([]Status, error) {
	var out []Status
	err := c.DoReadOnly(func(k *kv.KV) error {
		return eachWithPrefix(k, StatusPrefix, func(data []byte) {
			var s Status
			if json.Unmarshal(data, &s) == nil {
				out = append(out, s)
			}
		})
	})
	return out, err
}

func eachWithPrefix(k *kv.KV, prefix string, fn func(data []byte)) error {
	keys, err := k.Keys()
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(string(key), prefix) {
			continue
		}
		data, err := k.Get(key)
		if err != nil {
			continue
		}
		fn(data)
	}
	return nil
}
