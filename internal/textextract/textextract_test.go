package textextract

import (
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_PlainText(t *testing.T) {
	raw := crlf(`From: "Events Office" <events@amherst.edu>
To: students@amherst.edu
Subject: Literature Speaker Event
Date: Tue, 05 Nov 2024 09:30:00 -0500
Content-Type: text/plain; charset=utf-8

Join us at 6pm in Keefe Campus Center.
`)
	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Subject != "Literature Speaker Event" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.AuthorName != "Events Office" || msg.AuthorEmail != "events@amherst.edu" {
		t.Errorf("From = %q <%s>", msg.AuthorName, msg.AuthorEmail)
	}
	if msg.Date == nil || msg.Date.Day() != 5 {
		t.Errorf("Date = %v", msg.Date)
	}
	if msg.Body != "Join us at 6pm in Keefe Campus Center." {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestExtractBody_MultipartPrefersPlain(t *testing.T) {
	raw := crlf(`Subject: Test
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>HTML version</p>
--b1
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Plain version with a soft=
 break
--b1--
`)
	got, err := ExtractBody(raw, "")
	if err != nil {
		t.Fatalf("ExtractBody: %v", err)
	}
	if got != "Plain version with a soft break" {
		t.Errorf("ExtractBody = %q", got)
	}
}

func TestExtractBody_NestedHTMLOnly(t *testing.T) {
	raw := crlf(`Subject: Test
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/related; boundary="inner"

--inner
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: base64

PGh0bWw+PGJvZHk+PGgxPkNvbmNlcnQ8L2gxPjxwPkZyaWRheSAmYW1wOyBTYXR1cmRh
eTwvcD48L2JvZHk+PC9odG1sPg==
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="flyer.pdf"

%PDF-1.4
--outer--
`)
	got, err := ExtractBody(raw, "message/rfc822")
	if err != nil {
		t.Fatalf("ExtractBody: %v", err)
	}
	if got != "Concert\nFriday & Saturday" {
		t.Errorf("ExtractBody = %q", got)
	}
}

func TestExtractBody_BareContentType(t *testing.T) {
	got, err := ExtractBody([]byte("<div>Poetry <b>Night</b></div>"), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("ExtractBody: %v", err)
	}
	if got != "Poetry Night" {
		t.Errorf("ExtractBody = %q", got)
	}
}

func TestExtractBody_Errors(t *testing.T) {
	for _, tc := range []struct {
		name        string
		raw         string
		contentType string
	}{
		{"NoTextPart", "Subject: x\r\nContent-Type: multipart/mixed; boundary=\"b\"\r\n\r\n--b\r\nContent-Type: image/png\r\n\r\nPNG\r\n--b--\r\n", ""},
		{"EmptyBody", "Subject: x\r\nContent-Type: text/plain\r\n\r\n   \r\n", ""},
		{"UnsupportedType", "binary", "application/octet-stream"},
		{"BadContentType", "text", ";;;"},
		{"NotAMessage", "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractBody([]byte(tc.raw), tc.contentType)
			if !errors.Is(err, model.ErrBodyExtraction) {
				t.Fatalf("expected ErrBodyExtraction, got %v", err)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	for _, tc := range []struct {
		name, in, want string
	}{
		{"Empty", "", ""},
		{"DropsScriptAndStyle", "<style>p{}</style><p>Hi</p><script>alert(1)</script>", "Hi"},
		{"BlockBreaks", "<p>One</p><p>Two</p>", "One\nTwo"},
		{"LineBreak", "Line<br>Next", "Line\nNext"},
		{"CollapsesBlankRuns", "<div>A</div>\n\n\n<div></div><div>B</div>", "A\nB"},
		{"Entities", "Tom &amp; Jerry&nbsp;Show", "Tom & Jerry Show"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTMLToText(tc.in); got != tc.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
