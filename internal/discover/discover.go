// ABOUTME: Feed discovery for subscribing from a site or feed URL
// ABOUTME: Tries the URL as a feed, then HTML alternate links, then common feed paths

package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/parse"
	"github.com/harper/feedsync/internal/syncerr"
	"golang.org/x/net/html"
)

// Common feed paths to probe when other discovery methods fail
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/atom.xml",
	"/atom",
	"/index.xml",
	"/feed/rss",
	"/feed/atom",
	"/feeds/posts/default",
}

// Errors returned by discovery. Both match the sync error taxonomy with errors.Is.
var (
	ErrNoFeedFound = fmt.Errorf("%w: no RSS/Atom feed found at URL", syncerr.ErrFeedNotFound)
	ErrInvalidURL  = fmt.Errorf("%w: invalid URL", syncerr.ErrInvalidParameter)
)

// DiscoveredFeed is a verified feed along with its parsed content.
type DiscoveredFeed struct {
	URL    string
	Title  string
	Parsed *models.ParsedFeed
}

// Discoverer finds feeds using a fetcher.
type Discoverer struct {
	fetcher *fetch.Fetcher
}

// New creates a Discoverer.
func New(fetcher *fetch.Fetcher) *Discoverer {
	return &Discoverer{fetcher: fetcher}
}

// Discover attempts to find an RSS/Atom feed from the given URL.
// It tries the following strategies in order:
//  1. Parse URL as a direct feed
//  2. Parse URL as HTML and extract <link rel="alternate"> headers
//  3. Probe common feed URL patterns
func (d *Discoverer) Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	feed, body, err := d.tryDirectFeed(ctx, inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		return feed, nil
	}

	for _, candidate := range extractFeedLinks(body, parsedURL) {
		verified, _, verifyErr := d.tryDirectFeed(ctx, candidate.URL)
		if verifyErr != nil || verified == nil {
			continue
		}
		if verified.Title == "" {
			verified.Title = candidate.Title
		}
		return verified, nil
	}

	probeBase := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}
	for _, path := range commonFeedPaths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		feed, _, err := d.tryDirectFeed(ctx, probeBase.String()+path)
		if err == nil && feed != nil {
			return feed, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryDirectFeed fetches the URL and parses it as a feed. A body that is not a
// feed is returned with a nil feed so the caller can look for links in it.
func (d *Discoverer) tryDirectFeed(ctx context.Context, feedURL string) (*DiscoveredFeed, []byte, error) {
	result, err := d.fetcher.Fetch(ctx, feedURL, nil)
	if err != nil {
		return nil, nil, err
	}

	parsed, parseErr := parse.Parse(result.Body, feedURL)
	if parseErr != nil {
		return nil, result.Body, nil //nolint:nilerr // parseErr means not a feed, which is expected
	}

	return &DiscoveredFeed{URL: feedURL, Title: parsed.Title, Parsed: parsed}, result.Body, nil
}

type feedLink struct {
	URL   string
	Title string
}

// extractFeedLinks returns absolute feed URLs from <link rel="alternate"> elements.
func extractFeedLinks(htmlBody []byte, baseURL *url.URL) []feedLink {
	doc, err := html.Parse(bytes.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var links []feedLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			attrs := make(map[string]string, len(n.Attr))
			for _, attr := range n.Attr {
				attrs[attr.Key] = attr.Val
			}
			if strings.EqualFold(attrs["rel"], "alternate") && isFeedContentType(attrs["type"]) && attrs["href"] != "" {
				if ref, err := url.Parse(attrs["href"]); err == nil {
					links = append(links, feedLink{
						URL:   baseURL.ResolveReference(ref).String(),
						Title: attrs["title"],
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

// isFeedContentType checks if the content type indicates a feed
func isFeedContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "rss") ||
		strings.Contains(contentType, "atom") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "feed+json")
}
