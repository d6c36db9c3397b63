// ABOUTME: Tests for credential stores
// ABOUTME: Covers keying by service and username, file persistence, and permissions

package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	_, err := s.Get("feedbin", "ann")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("feedbin", Credentials{Type: TypeBasic, Username: "ann", Secret: "one"}))
	require.NoError(t, s.Set("feedbin", Credentials{Type: TypeBasic, Username: "bob", Secret: "two"}))
	require.NoError(t, s.Set("feedly", Credentials{Type: TypeOAuthAccess, Username: "ann", Secret: "tok"}))

	got, err := s.Get("feedbin", "ann")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Secret)

	got, err = s.Get("feedly", "ann")
	require.NoError(t, err)
	assert.Equal(t, TypeOAuthAccess, got.Type)

	names, err := s.Usernames("feedbin")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, names)

	require.NoError(t, s.Delete("feedbin", "ann"))
	require.NoError(t, s.Delete("feedbin", "ann"))
	_, err = s.Get("feedbin", "ann")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set("", Credentials{Username: "x"}))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	exerciseStore(t, NewFileStore(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened := NewFileStore(path)
	got, err := reopened.Get("feedbin", "bob")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Secret)
}
