package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaildirFetcher reads RFC 5322 messages from a directory. It accepts a
// plain directory of .eml files or a maildir with new/ and cur/ folders.
type MaildirFetcher struct {
	Dir string
}

// NewMaildirFetcher returns a fetcher over dir.
func NewMaildirFetcher(dir string) *MaildirFetcher {
	return &MaildirFetcher{Dir: dir}
}

func (f *MaildirFetcher) Name() string { return "maildir:" + f.Dir }

// Fetch returns every message in name order. Document IDs are the path
// relative to Dir, so the same file always yields the same ID.
func (f *MaildirFetcher) Fetch(ctx context.Context) ([]Document, error) {
	info, err := os.Stat(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("maildir %s: %w", f.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("maildir %s: not a directory", f.Dir)
	}

	var paths []string
	maildir := false
	for _, sub := range []string{"new", "cur"} {
		entries, err := os.ReadDir(filepath.Join(f.Dir, sub))
		if err != nil {
			continue
		}
		maildir = true
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				paths = append(paths, filepath.Join(sub, e.Name()))
			}
		}
	}
	if !maildir {
		entries, err := os.ReadDir(f.Dir)
		if err != nil {
			return nil, fmt.Errorf("maildir %s: %w", f.Dir, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
				paths = append(paths, e.Name())
			}
		}
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(f.Dir, rel))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		docs = append(docs, Document{
			ID:          KindMail + ":" + filepath.ToSlash(rel),
			Kind:        KindMail,
			ContentType: "message/rfc822",
			Raw:         raw,
		})
	}
	return docs, nil
}
