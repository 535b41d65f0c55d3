package responder

import (
	"io"
	"strings"

	"github.com/emersion/go-message"
)

// Message holds the headers of a fetched mail that the responder
// needs: who sent it, what it was about, and the identifiers that let
// a reply thread correctly.
type Message struct {
	// From is the bare sender address, lowercase, no display name.
	From string
	// Subject is the decoded subject line.
	Subject string
	// MessageID is the RFC Message-ID header. Unlike IMAP sequence
	// numbers it is stable across sessions, which makes it the dedup key.
	MessageID string
	// References is the raw References header chain, possibly empty.
	References string
}

// parseMessage reads a raw RFC822 message and extracts the
// reply-relevant headers. Unknown charsets are tolerated since only
// headers are consumed.
func parseMessage(r io.Reader) (*Message, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	h := entity.Header

	subject, err := h.Text("Subject")
	if err != nil {
		subject = h.Get("Subject")
	}
	if subject == "" {
		subject = "(no subject)"
	}

	from, err := h.Text("From")
	if err != nil {
		from = h.Get("From")
	}

	return &Message{
		From:       normalizeAddress(from),
		Subject:    subject,
		MessageID:  strings.TrimSpace(h.Get("Message-Id")),
		References: strings.TrimSpace(h.Get("References")),
	}, nil
}

// normalizeAddress reduces a From header to a bare lowercase address.
// Handles both "Name <mail@example.com>" and "mail@example.com".
func normalizeAddress(from string) string {
	if i := strings.Index(from, "<"); i >= 0 {
		if j := strings.Index(from[i:], ">"); j > 0 {
			from = from[i+1 : i+j]
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}
