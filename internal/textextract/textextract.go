// Package textextract pulls a plain-text body out of raw source messages.
//
// Multipart messages prefer the first text/plain part; when only text/html
// is present it is converted to text. Quoted-printable and base64 transfer
// encodings are decoded.
package textextract

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// maxDepth bounds recursion into nested multipart bodies.
const maxDepth = 8

// Message is a parsed RFC 5322 message reduced to what ingestion needs.
type Message struct {
	Subject     string
	AuthorName  string
	AuthorEmail string
	Date        *time.Time
	Body        string
}

// ExtractBody returns the plain-text body of raw. An empty contentType or
// message/rfc822 means raw is a full message with headers; any other value
// is the media type of raw itself. It returns model.ErrBodyExtraction when
// no textual part exists or the text is empty.
func ExtractBody(raw []byte, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || strings.HasPrefix(ct, "message/rfc822") {
		msg, err := ParseMessage(raw)
		if err != nil {
			return "", err
		}
		return msg.Body, nil
	}
	text, err := bodyText(bytes.NewReader(raw), contentType, "", 0)
	if err != nil {
		return "", err
	}
	return finish(text)
}

// ParseMessage parses raw as an RFC 5322 message and extracts its body and
// provenance headers.
func ParseMessage(raw []byte) (*Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBodyExtraction, err)
	}

	out := &Message{Subject: decodeHeader(m.Header.Get("Subject"))}
	if from, err := mail.ParseAddress(m.Header.Get("From")); err == nil {
		out.AuthorName = from.Name
		out.AuthorEmail = from.Address
	}
	if d, err := m.Header.Date(); err == nil {
		out.Date = &d
	}

	ct := m.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	text, err := bodyText(m.Body, ct, m.Header.Get("Content-Transfer-Encoding"), 0)
	if err != nil {
		return nil, err
	}
	out.Body, err = finish(text)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", model.ErrBodyExtraction)
	}
	return text, nil
}

// bodyText decodes r according to its media type and transfer encoding.
func bodyText(r io.Reader, contentType, encoding string, depth int) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q: %v", model.ErrBodyExtraction, contentType, err)
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return "", fmt.Errorf("%w: multipart without boundary", model.ErrBodyExtraction)
		}
		return multipartText(multipart.NewReader(decodeTransfer(r, encoding), boundary), depth)
	case mediaType == "text/plain":
		b, err := io.ReadAll(decodeTransfer(r, encoding))
		if err != nil {
			return "", fmt.Errorf("%w: read text/plain: %v", model.ErrBodyExtraction, err)
		}
		return string(b), nil
	case mediaType == "text/html":
		b, err := io.ReadAll(decodeTransfer(r, encoding))
		if err != nil {
			return "", fmt.Errorf("%w: read text/html: %v", model.ErrBodyExtraction, err)
		}
		return HTMLToText(string(b)), nil
	default:
		return "", fmt.Errorf("%w: unsupported media type %s", model.ErrBodyExtraction, mediaType)
	}
}

// multipartText prefers the first text/plain leaf anywhere in the tree and
// falls back to the first text/html leaf.
func multipartText(mr *multipart.Reader, depth int) (string, error) {
	var parts leaves
	if err := parts.walk(mr, depth); err != nil {
		return "", err
	}
	switch {
	case parts.havePlain:
		return parts.plain, nil
	case parts.haveHTML:
		return parts.html, nil
	}
	return "", fmt.Errorf("%w: no text/plain or text/html part", model.ErrBodyExtraction)
}

type leaves struct {
	plain, html         string
	havePlain, haveHTML bool
}

func (l *leaves) walk(mr *multipart.Reader, depth int) error {
	if depth >= maxDepth {
		return fmt.Errorf("%w: multipart nesting too deep", model.ErrBodyExtraction)
	}
	for !l.havePlain {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: multipart: %v", model.ErrBodyExtraction, err)
		}

		ct := p.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(ct)
		if err != nil || isAttachment(p.Header) {
			continue
		}

		// NextPart already strips quoted-printable and removes the header.
		enc := p.Header.Get("Content-Transfer-Encoding")
		switch {
		case mediaType == "text/plain":
			text, err := bodyText(p, ct, enc, depth+1)
			if err == nil && strings.TrimSpace(text) != "" {
				l.plain, l.havePlain = text, true
			}
		case mediaType == "text/html" && !l.haveHTML:
			text, err := bodyText(p, ct, enc, depth+1)
			if err == nil && strings.TrimSpace(text) != "" {
				l.html, l.haveHTML = text, true
			}
		case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
			if err := l.walk(multipart.NewReader(decodeTransfer(p, enc), params["boundary"]), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func isAttachment(h textproto.MIMEHeader) bool {
	disp, _, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	return err == nil && disp == "attachment"
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	default:
		return r
	}
}

// newlineStripper drops CR and LF so wrapped base64 decodes cleanly.
type newlineStripper struct {
	r io.Reader
}

func (s *newlineStripper) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		j := 0
		for _, b := range p[:n] {
			if b != '\r' && b != '\n' {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}

func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
