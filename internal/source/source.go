// Package source retrieves raw source documents for ingestion.
package source

import (
	"context"
	"time"
)

// Document kinds.
const (
	KindMail = "mail"
	KindRSS  = "rss"
)

// Document is one raw source document: an email message or an RSS item.
// Raw is opaque to the fetcher; ContentType tells the text extractor how to
// read it. The remaining fields are provenance known before extraction.
type Document struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	ContentType string     `json:"content_type"`
	Raw         []byte     `json:"-"`
	Title       string     `json:"title,omitempty"`
	Link        string     `json:"link,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
	AuthorName  string     `json:"author_name,omitempty"`
	AuthorEmail string     `json:"author_email,omitempty"`
}

// Fetcher retrieves a batch of documents from one source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Document, error)
}
