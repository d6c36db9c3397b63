// ABOUTME: Tests for the feed tree containers
// ABOUTME: Covers cache invalidation, lookup indexes, folder idempotency, and identity

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveFeedInvalidatesCaches(t *testing.T) {
	tr := New("acct")
	a := NewFeed("acct", "", "https://a.example/feed.xml")
	b := NewFeed("acct", "", "https://b.example/feed.xml")
	tr.AddFeedToTreeAtTopLevel(a)
	tr.AddFeedToTreeAtTopLevel(b)

	// Build both caches before mutating.
	require.Len(t, tr.FlattenedFeeds(), 2)
	require.NotNil(t, tr.ExistingFeedByID(a.ID))

	tr.RemoveFeedFromTreeAtTopLevel(a)

	assert.Nil(t, tr.ExistingFeedByID(a.ID))
	flat := tr.FlattenedFeeds()
	require.Len(t, flat, 1)
	assert.Equal(t, b.ID, flat[0].ID)
}

func TestFolderMutationInvalidatesTreeCaches(t *testing.T) {
	tr := New("acct")
	folder := tr.EnsureFolder("Tech")
	require.Empty(t, tr.FlattenedFeeds())

	f := NewFeed("acct", "", "https://x/feed.xml")
	f.ExternalID = "ext-1"
	folder.AddFeedToTreeAtTopLevel(f)

	assert.Len(t, tr.FlattenedFeeds(), 1)
	assert.Same(t, f, tr.ExistingFeedByExternalID("ext-1"))

	folder.RemoveFeedFromTreeAtTopLevel(f)
	assert.Empty(t, tr.FlattenedFeeds())
	assert.Nil(t, tr.ExistingFeedByExternalID("ext-1"))
}

func TestFlattenedFeedsDeduplicatesAcrossFolders(t *testing.T) {
	tr := New("acct")
	f := NewFeed("acct", "", "https://x/feed.xml")
	tr.AddFeedToTreeAtTopLevel(f)
	tr.EnsureFolder("One").AddFeedToTreeAtTopLevel(f)
	tr.EnsureFolder("Two").AddFeedToTreeAtTopLevel(f)

	assert.Len(t, tr.FlattenedFeeds(), 1)
	assert.Len(t, tr.ContainersOf(f), 3)

	tr.RemoveFeedEverywhere(f)
	assert.Empty(t, tr.FlattenedFeeds())
	assert.Empty(t, tr.ContainersOf(f))
}

func TestEnsureFolder(t *testing.T) {
	tr := New("acct")

	tech := tr.EnsureFolder("Tech")
	require.NotNil(t, tech)
	assert.Same(t, tech, tr.EnsureFolder("Tech"))
	assert.NotSame(t, tech, tr.EnsureFolder("tech"), "names compare case-sensitively")
	assert.Len(t, tr.Folders(), 2)

	assert.Nil(t, tr.EnsureFolder(""))
	assert.Same(t, tech, tr.EnsureFolderPath([]string{"Outer", "Tech"}))
	assert.Nil(t, tr.EnsureFolderPath(nil))
}

func TestOnChangeAndBatch(t *testing.T) {
	tr := New("acct")
	calls := 0
	tr.OnChange(func() { calls++ })

	f := NewFeed("acct", "", "https://x/feed.xml")
	tr.AddFeedToTreeAtTopLevel(f)
	assert.Equal(t, 1, calls)

	// Adding the same feed again is not a change.
	tr.AddFeedToTreeAtTopLevel(f)
	assert.Equal(t, 1, calls)

	tr.Batch(func() {
		for _, url := range []string{"https://a/1", "https://a/2", "https://a/3"} {
			tr.AddFeedToTreeAtTopLevel(NewFeed("acct", "", url))
		}
		tr.EnsureFolder("News")
	})
	assert.Equal(t, 2, calls)
	assert.Len(t, tr.FlattenedFeeds(), 4)
}

func TestRenameAndRestoreFolder(t *testing.T) {
	tr := New("acct")
	folder := tr.EnsureFolder("Old")
	f := NewFeed("acct", "", "https://x/feed.xml")
	folder.AddFeedToTreeAtTopLevel(f)
	tr.EnsureFolder("Taken")

	assert.False(t, tr.RenameFolder(folder, "Taken"))
	assert.True(t, tr.RenameFolder(folder, "New"))
	assert.Equal(t, "New", folder.Name())
	assert.Nil(t, tr.ExistingFolder("Old"))

	require.True(t, tr.RemoveFolder(folder))
	assert.Nil(t, tr.ExistingFeedByID(f.ID))

	restored := tr.AddFolder(folder)
	assert.Same(t, folder, restored)
	assert.Same(t, f, tr.ExistingFeedByID(f.ID))
}

func TestFeedIdentityIncludesAccount(t *testing.T) {
	a := NewFeed("acct-1", "42", "https://x/feed.xml")
	b := NewFeed("acct-2", "42", "https://x/feed.xml")

	assert.False(t, a.Equal(b))
	set := NewFeedSet(a, b)
	assert.Len(t, set, 2)
	assert.True(t, set.Contains(a))
	assert.True(t, set.Contains(b))
}

func TestNameForDisplay(t *testing.T) {
	f := NewFeed("acct", "", "https://x/feed.xml")
	assert.Equal(t, "Untitled", f.NameForDisplay())

	f.SetName("Feed Title")
	assert.Equal(t, "Feed Title", f.NameForDisplay())

	f.SetEditedName("Mine")
	assert.Equal(t, "Mine", f.NameForDisplay())

	f.SetEditedName("")
	assert.Equal(t, "Feed Title", f.NameForDisplay())
}
