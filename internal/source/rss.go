package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher turns the items of one RSS or Atom feed into documents.
type RSSFetcher struct {
	URL    string
	parser *gofeed.Parser
}

// NewRSSFetcher returns a fetcher for feedURL. A nil client gets a 30s
// timeout.
func NewRSSFetcher(feedURL string, client *http.Client) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	fp := gofeed.NewParser()
	fp.Client = client
	return &RSSFetcher{URL: feedURL, parser: fp}
}

func (f *RSSFetcher) Name() string { return "rss:" + f.URL }

// Fetch downloads and parses the feed. Each item's text is its title
// followed by its content, or its description when content is empty.
func (f *RSSFetcher) Fetch(ctx context.Context) ([]Document, error) {
	if !strings.HasPrefix(f.URL, "http://") && !strings.HasPrefix(f.URL, "https://") {
		return nil, fmt.Errorf("feed %q: url must be http or https", f.URL)
	}
	feed, err := f.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.URL, err)
	}

	docs := make([]Document, 0, len(feed.Items))
	for i, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		if title == "" && strings.TrimSpace(body) == "" {
			continue
		}

		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			id = fmt.Sprintf("%s#%d", f.URL, i)
		}

		doc := Document{
			ID:          KindRSS + ":" + id,
			Kind:        KindRSS,
			ContentType: "text/html; charset=utf-8",
			Raw:         []byte("<h1>" + escapeText(title) + "</h1>\n" + body),
			Title:       title,
			Link:        item.Link,
			Published:   item.PublishedParsed,
		}
		if doc.Published == nil {
			doc.Published = item.UpdatedParsed
		}
		if item.Author != nil {
			doc.AuthorName = item.Author.Name
			doc.AuthorEmail = item.Author.Email
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
