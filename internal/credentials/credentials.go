// ABOUTME: Credential records for sync services and stores keyed by service and username
// ABOUTME: FileStore persists to a private JSON file, MemoryStore serves tests and ephemeral use

package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/harper/feedsync/internal/fsutil"
)

// Type distinguishes how a secret is presented to a service.
type Type string

const (
	TypeBasic        Type = "basic"
	TypeAPIKey       Type = "apiKey"
	TypeOAuthAccess  Type = "oauthAccessToken"
	TypeOAuthRefresh Type = "oauthRefreshToken"
)

// Credentials authenticate one user with one service.
type Credentials struct {
	Type     Type   `json:"type"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// ErrNotFound is returned when no credentials are stored for a key.
var ErrNotFound = errors.New("credentials not found")

// Store keeps credentials keyed by (service, username).
type Store interface {
	Get(service, username string) (*Credentials, error)
	Set(service string, c Credentials) error
	Delete(service, username string) error
	Usernames(service string) ([]string, error)
}

func storeKey(service, username string) string {
	return service + "\x00" + username
}

type entry struct {
	Service     string      `json:"service"`
	Credentials Credentials `json:"credentials"`
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (m *MemoryStore) Get(service, username string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[storeKey(service, username)]
	if !ok {
		return nil, ErrNotFound
	}
	c := e.Credentials
	return &c, nil
}

func (m *MemoryStore) Set(service string, c Credentials) error {
	if service == "" || c.Username == "" {
		return fmt.Errorf("service and username are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[storeKey(service, c.Username)] = entry{Service: service, Credentials: c}
	return nil
}

func (m *MemoryStore) Delete(service, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, storeKey(service, username))
	return nil
}

func (m *MemoryStore) Usernames(service string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, e := range m.entries {
		if e.Service == service {
			names = append(names, e.Credentials.Username)
		}
	}
	sort.Strings(names)
	return names, nil
}

// FileStore persists credentials as JSON readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (*MemoryStore, error) {
	mem := NewMemoryStore()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return mem, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	for _, e := range entries {
		mem.entries[storeKey(e.Service, e.Credentials.Username)] = e
	}
	return mem, nil
}

func (f *FileStore) save(mem *MemoryStore) error {
	entries := make([]entry, 0, len(mem.entries))
	for _, e := range mem.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return storeKey(entries[i].Service, entries[i].Credentials.Username) <
			storeKey(entries[j].Service, entries[j].Credentials.Username)
	})
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := fsutil.AtomicWrite(f.path, data); err != nil {
		return err
	}
	return os.Chmod(f.path, 0600)
}

func (f *FileStore) Get(service, username string) (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, err := f.load()
	if err != nil {
		return nil, err
	}
	return mem.Get(service, username)
}

func (f *FileStore) Set(service string, c Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, err := f.load()
	if err != nil {
		return err
	}
	if err := mem.Set(service, c); err != nil {
		return err
	}
	return f.save(mem)
}

func (f *FileStore) Delete(service, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, err := f.load()
	if err != nil {
		return err
	}
	if _, err := mem.Get(service, username); errors.Is(err, ErrNotFound) {
		return nil
	}
	mem.Delete(service, username)
	return f.save(mem)
}

func (f *FileStore) Usernames(service string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, err := f.load()
	if err != nil {
		return nil, err
	}
	return mem.Usernames(service)
}
