package gmail

import (
	"encoding/base64"
	"testing"

	"google.golang.org/api/gmail/v1"
)

func encodeRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestPlainTextBodyPrefersNestedPlainPart(t *testing.T) {
	msg := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: encodeRaw("<p>hello</p>")},
			},
			{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: encodeRaw("hello plain")},
					},
				},
			},
		},
	}

	if got := PlainTextBody(msg); got != "hello plain" {
		t.Fatalf("body = %q, want nested text/plain content", got)
	}
}

func TestPlainTextBodyTopLevelPart(t *testing.T) {
	msg := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("padded body"))},
	}
	if got := PlainTextBody(msg); got != "padded body" {
		t.Fatalf("body = %q", got)
	}
}

func TestPlainTextBodyHandlesMissingPlainPart(t *testing.T) {
	msg := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: encodeRaw("<p>only html</p>")},
			},
		},
	}
	if got := PlainTextBody(msg); got != "" {
		t.Fatalf("body = %q, want empty", got)
	}
	if got := PlainTextBody(nil); got != "" {
		t.Fatalf("nil part body = %q, want empty", got)
	}
}

func TestDecodeBodyAcceptsBothPaddings(t *testing.T) {
	// Gmail sends base64url, sometimes without padding.
	cases := []string{
		base64.URLEncoding.EncodeToString([]byte("hello")),
		base64.RawURLEncoding.EncodeToString([]byte("hello")),
	}
	for _, data := range cases {
		if got := decodeBody(data); got != "hello" {
			t.Fatalf("decodeBody(%q) = %q", data, got)
		}
	}
	if got := decodeBody("%%%not-base64%%%"); got != "" {
		t.Fatalf("invalid input decoded to %q", got)
	}
}

func TestHeaderIsCaseInsensitive(t *testing.T) {
	p := &gmail.MessagePart{
		Headers: []*gmail.MessagePartHeader{
			{Name: "FROM", Value: "Acme Recruiting <no-reply@acme.example>"},
			{Name: "subject", Value: "Interview invitation"},
		},
	}
	if got := header(p, "From"); got != "Acme Recruiting <no-reply@acme.example>" {
		t.Fatalf("From = %q", got)
	}
	if got := header(p, "Subject"); got != "Interview invitation" {
		t.Fatalf("Subject = %q", got)
	}
	if got := header(p, "Date"); got != "" {
		t.Fatalf("missing header = %q", got)
	}
}
