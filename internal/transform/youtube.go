// ABOUTME: YouTube transformer that finds channel feeds and embeds video players
// ABOUTME: Channel and handle URLs are rewritten to YouTube's Atom feed endpoint

package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/harper/feedsync/internal/models"
)

const youtubeFeedBase = "https://www.youtube.com/feeds/videos.xml"

var (
	channelPattern = regexp.MustCompile(`^/channel/([A-Za-z0-9_-]+)`)
	handlePattern  = regexp.MustCompile(`^/@([A-Za-z0-9_.-]+)`)
	userPattern    = regexp.MustCompile(`^/(?:user|c)/([^/?#]+)`)

	// Video links written out in item bodies.
	videoLinkPattern = regexp.MustCompile(`https?://(?:www\.|m\.)?(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})[^\s"'<]*`)
)

// YouTube recognises YouTube channel feeds.
type YouTube struct{}

// NewYouTube creates the YouTube transformer.
func NewYouTube() *YouTube { return &YouTube{} }

func (*YouTube) Identifier() string { return "youtube" }
func (*YouTube) Priority() int      { return 100 }

// CanTransform reports whether feedURL is on a YouTube host.
func (*YouTube) CanTransform(feedURL string) bool {
	u, err := url.Parse(feedURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be":
		return true
	}
	return false
}

// CorrectFeedURL maps channel, handle, user, and custom URLs to the feed
// endpoint. URLs that are already feeds are left alone.
func (y *YouTube) CorrectFeedURL(feedURL string) (string, bool) {
	if !y.CanTransform(feedURL) {
		return "", false
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", false
	}
	if strings.HasPrefix(u.Path, "/feeds/") {
		return "", false
	}
	if m := channelPattern.FindStringSubmatch(u.Path); m != nil {
		return youtubeFeedBase + "?channel_id=" + url.QueryEscape(m[1]), true
	}
	if m := handlePattern.FindStringSubmatch(u.Path); m != nil {
		return youtubeFeedBase + "?user=" + url.QueryEscape(m[1]), true
	}
	if m := userPattern.FindStringSubmatch(u.Path); m != nil {
		return youtubeFeedBase + "?user=" + url.QueryEscape(m[1]), true
	}
	return "", false
}

// Transform embeds players. Items that link to a video get the player ahead
// of their content; otherwise bare video links in the content become players.
func (*YouTube) Transform(feed *models.ParsedFeed, _ string) *models.ParsedFeed {
	for i := range feed.Items {
		item := &feed.Items[i]
		if id := VideoID(item.URL); id != "" {
			item.ContentHTML = Embed(id) + item.ContentHTML
			continue
		}
		item.ContentHTML = embedBareLinks(item.ContentHTML)
	}
	return feed
}

// VideoID extracts the video ID from a watch, shorts, or youtu.be URL.
func VideoID(link string) string {
	m := videoLinkPattern.FindStringSubmatchIndex(link)
	if m == nil || m[0] != 0 {
		return ""
	}
	return link[m[2]:m[3]]
}

// Embed returns player markup for a video.
func Embed(videoID string) string {
	return fmt.Sprintf(`<div class="youtube-embed"><iframe src="https://www.youtube.com/embed/%s?rel=0" width="560" height="315" frameborder="0" allowfullscreen></iframe></div>`, videoID)
}

// embedBareLinks replaces video links that are not inside an attribute.
func embedBareLinks(content string) string {
	matches := videoLinkPattern.FindAllStringSubmatchIndex(content, -1)
	if matches == nil {
		return content
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && (content[start-1] == '"' || content[start-1] == '\'' || content[start-1] == '=') {
			continue
		}
		b.WriteString(content[last:start])
		b.WriteString(Embed(content[m[2]:m[3]]))
		last = end
	}
	b.WriteString(content[last:])
	return b.String()
}
