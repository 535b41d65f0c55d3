package responder

import (
	"strings"
	"testing"
)

func TestParseMessageHeaders(t *testing.T) {
	t.Parallel()

	raw := `From: Jane <Jane@Example.com>
To: me@example.com
Subject: Task
Message-Id: <a@b>
References: <x@y>
Content-Type: text/plain

Please do the thing.
`

	msg, err := parseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	if msg.From != "jane@example.com" {
		t.Errorf("unexpected from: %q", msg.From)
	}
	if msg.Subject != "Task" {
		t.Errorf("unexpected subject: %q", msg.Subject)
	}
	if msg.MessageID != "<a@b>" {
		t.Errorf("unexpected message id: %q", msg.MessageID)
	}
	if msg.References != "<x@y>" {
		t.Errorf("unexpected references: %q", msg.References)
	}
}

func TestParseMessageWithoutThreadingHeaders(t *testing.T) {
	t.Parallel()

	raw := `From: jane@example.com
Subject: Hello
Content-Type: text/plain

Hi.
`

	msg, err := parseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	if msg.MessageID != "" {
		t.Errorf("expected empty message id, got %q", msg.MessageID)
	}
	if msg.References != "" {
		t.Errorf("expected empty references, got %q", msg.References)
	}
}

func TestParseMessageDefaultsSubject(t *testing.T) {
	t.Parallel()

	raw := `From: jane@example.com
Message-Id: <a@b>
Content-Type: text/plain

Hi.
`

	msg, err := parseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	// A missing subject gets a placeholder so the reply never goes out
	// as a bare "Re: ".
	if msg.Subject != "(no subject)" {
		t.Errorf("unexpected subject: %q", msg.Subject)
	}
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Jane <Jane@Example.com>": "jane@example.com",
		"jane@example.com":        "jane@example.com",
		"  JANE@EXAMPLE.COM  ":    "jane@example.com",
		"<boss@co.com>":           "boss@co.com",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Errorf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}
