// ABOUTME: Bridges outline documents and account feed trees
// ABOUTME: Materialize builds folders and feeds from outlines, FromTree snapshots a tree back to OPML

package opml

import "github.com/harper/feedsync/internal/tree"

// IDFunc chooses the feed ID for a new feed created from an outline.
type IDFunc func(o Outline) string

// Materialize normalizes outlines and adds the result to t. Feeds already in
// the tree are reused by URL. It returns the feeds that were newly created.
func Materialize(t *tree.Tree, outlines []Outline, idFor IDFunc) []*tree.Feed {
	var created []*tree.Feed
	t.Batch(func() {
		for _, o := range Normalize(outlines) {
			if o.IsFeed() {
				if f, isNew := feedFor(t, o, idFor); f != nil {
					t.AddFeedToTreeAtTopLevel(f)
					if isNew {
						created = append(created, f)
					}
				}
				continue
			}
			folder := t.EnsureFolder(o.Name())
			if folder == nil {
				continue
			}
			if o.ExternalID != "" && folder.ExternalID() == "" {
				folder.SetExternalID(o.ExternalID)
			}
			for _, child := range o.Children {
				if f, isNew := feedFor(t, child, idFor); f != nil {
					folder.AddFeedToTreeAtTopLevel(f)
					if isNew {
						created = append(created, f)
					}
				}
			}
		}
	})
	return created
}

func feedFor(t *tree.Tree, o Outline, idFor IDFunc) (*tree.Feed, bool) {
	if !o.IsFeed() {
		return nil, false
	}
	if existing := t.ExistingFeedByURL(o.XMLURL); existing != nil {
		return existing, false
	}

	id := o.FeedID
	if id == "" && idFor != nil {
		id = idFor(o)
	}
	f := tree.NewFeed(t.AccountID(), id, o.XMLURL)
	f.ExternalID = o.ExternalID
	f.UpdateMetadata(func(m *tree.Metadata) {
		m.Name = o.Name()
		m.HomePageURL = o.HTMLURL
	})
	return f, true
}

// FromTree builds a document describing the tree's current structure.
func FromTree(title string, t *tree.Tree) *Document {
	doc := NewDocument(title)
	for _, f := range t.TopLevelFeeds() {
		doc.Outlines = append(doc.Outlines, feedOutline(f))
	}
	for _, folder := range t.Folders() {
		o := Outline{
			Text:       folder.Name(),
			Title:      folder.Name(),
			ExternalID: folder.ExternalID(),
		}
		for _, f := range folder.TopLevelFeeds() {
			o.Children = append(o.Children, feedOutline(f))
		}
		doc.Outlines = append(doc.Outlines, o)
	}
	return doc
}

func feedOutline(f *tree.Feed) Outline {
	meta := f.Metadata()
	name := f.NameForDisplay()
	return Outline{
		Text:       name,
		Title:      name,
		Type:       "rss",
		XMLURL:     f.URL,
		HTMLURL:    meta.HomePageURL,
		FeedID:     f.ID,
		ExternalID: f.ExternalID,
	}
}
