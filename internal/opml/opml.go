// ABOUTME: OPML parsing and writing for subscription import and account snapshots
// ABOUTME: Outlines carry optional feed and external IDs so snapshots round-trip sync identities

package opml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/harper/feedsync/internal/fsutil"
)

// Version is the OPML version written by this package.
const Version = "2.0"

// Document represents an OPML document with a title and hierarchical outlines
type Document struct {
	Title    string
	Outlines []Outline
}

// Outline is either a feed (XMLURL set) or a folder (children, no XMLURL).
type Outline struct {
	Text       string
	Title      string
	Type       string
	XMLURL     string
	HTMLURL    string
	FeedID     string
	ExternalID string
	Children   []Outline
}

// Feed is a flattened view of one feed outline and its folder.
type Feed struct {
	URL    string
	Title  string
	Folder string
}

type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text       string       `xml:"text,attr"`
	Title      string       `xml:"title,attr,omitempty"`
	Type       string       `xml:"type,attr,omitempty"`
	XMLURL     string       `xml:"xmlUrl,attr,omitempty"`
	HTMLURL    string       `xml:"htmlUrl,attr,omitempty"`
	FeedID     string       `xml:"feedID,attr,omitempty"`
	ExternalID string       `xml:"externalID,attr,omitempty"`
	Children   []outlineXML `xml:"outline,omitempty"`
}

// NewDocument creates an empty document.
func NewDocument(title string) *Document {
	return &Document{Title: title}
}

// IsFeed reports whether the outline references a feed.
func (o Outline) IsFeed() bool {
	return o.XMLURL != ""
}

// IsFolder reports whether the outline groups other outlines.
func (o Outline) IsFolder() bool {
	return o.XMLURL == "" && (len(o.Children) > 0 || o.Type == "")
}

// Name returns the outline's title, falling back to its text.
func (o Outline) Name() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Text
}

// Parse reads OPML data from an io.Reader and returns a Document
func Parse(r io.Reader) (*Document, error) {
	var doc opmlXML
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	return &Document{
		Title:    doc.Head.Title,
		Outlines: fromXML(doc.Body.Outlines),
	}, nil
}

// ParseFile reads OPML data from a file and returns a Document
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// AllFeeds returns every feed outline with the name of its enclosing folder.
func (d *Document) AllFeeds() []Feed {
	var feeds []Feed
	for _, outline := range d.Outlines {
		feeds = append(feeds, collectFeeds(outline, "")...)
	}
	return feeds
}

func collectFeeds(o Outline, folder string) []Feed {
	if o.IsFeed() {
		return []Feed{{URL: o.XMLURL, Title: o.Name(), Folder: folder}}
	}
	if name := o.Name(); name != "" {
		folder = name
	}
	var feeds []Feed
	for _, child := range o.Children {
		feeds = append(feeds, collectFeeds(child, folder)...)
	}
	return feeds
}

// Write serializes the document as indented OPML XML.
func (d *Document) Write(w io.Writer) error {
	doc := opmlXML{
		Version: Version,
		Head:    headXML{Title: d.Title},
		Body:    bodyXML{Outlines: toXML(d.Outlines)},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile atomically replaces path with the serialized document.
func (d *Document) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, buf.Bytes())
}

func fromXML(in []outlineXML) []Outline {
	if len(in) == 0 {
		return nil
	}
	out := make([]Outline, len(in))
	for i, o := range in {
		out[i] = Outline{
			Text:       o.Text,
			Title:      o.Title,
			Type:       o.Type,
			XMLURL:     o.XMLURL,
			HTMLURL:    o.HTMLURL,
			FeedID:     o.FeedID,
			ExternalID: o.ExternalID,
			Children:   fromXML(o.Children),
		}
	}
	return out
}

func toXML(in []Outline) []outlineXML {
	if len(in) == 0 {
		return nil
	}
	out := make([]outlineXML, len(in))
	for i, o := range in {
		text := o.Text
		if text == "" {
			text = o.Title
		}
		out[i] = outlineXML{
			Text:       text,
			Title:      o.Title,
			Type:       o.Type,
			XMLURL:     o.XMLURL,
			HTMLURL:    o.HTMLURL,
			FeedID:     o.FeedID,
			ExternalID: o.ExternalID,
			Children:   toXML(o.Children),
		}
	}
	return out
}

// Folders returns the names of top-level folders in document order.
func (d *Document) Folders() []string {
	var names []string
	for _, o := range d.Outlines {
		if !o.IsFeed() && o.Name() != "" {
			names = append(names, o.Name())
		}
	}
	return names
}

// FeedsInFolder returns feeds filed under the named folder. An empty name
// returns feeds outside of any folder.
func (d *Document) FeedsInFolder(folder string) []Feed {
	var out []Feed
	for _, f := range d.AllFeeds() {
		if f.Folder == folder {
			out = append(out, f)
		}
	}
	return out
}
