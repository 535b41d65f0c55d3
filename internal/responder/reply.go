package responder

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	gomail "gopkg.in/gomail.v2"
)

// ReplyEnvelope carries everything needed to send one threaded reply.
type ReplyEnvelope struct {
	To         string
	From       string
	Subject    string
	Body       string
	InReplyTo  string
	References string
}

// composeReply builds the reply envelope for a source message. The
// subject gets a single "Re: " prefix, and the threading headers chain
// the source Message-ID onto its References so standards-compliant
// clients group the reply with the original.
func composeReply(src *Message, body, from string) ReplyEnvelope {
	subject := src.Subject
	if !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}

	env := ReplyEnvelope{
		To:      src.From,
		From:    from,
		Subject: subject,
		Body:    body,
	}

	if src.MessageID != "" {
		env.InReplyTo = src.MessageID
		if src.References != "" {
			env.References = src.References + " " + src.MessageID
		} else {
			env.References = src.MessageID
		}
	}

	return env
}

// rawMessage serializes the envelope into RFC822 bytes.
func rawMessage(env ReplyEnvelope) ([]byte, error) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", env.From)
	msg.SetHeader("To", env.To)
	msg.SetHeader("Subject", env.Subject)

	if env.InReplyTo != "" {
		msg.SetHeader("In-Reply-To", env.InReplyTo)
		msg.SetHeader("References", env.References)
	}

	msg.SetBody("text/plain", env.Body)

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// gmailSender submits replies through the Gmail API so they land in
// the right conversation and in the account's Sent folder.
type gmailSender struct {
	svc *gmail.Service
}

// NewGmailSender wraps an authorized Gmail service.
func NewGmailSender(svc *gmail.Service) ReplySender {
	return &gmailSender{svc: svc}
}

// Profile returns the authenticated account's primary address.
func (g *gmailSender) Profile(ctx context.Context) (string, error) {
	profile, err := g.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", &AuthError{Err: err}
	}
	return profile.EmailAddress, nil
}

// FindThread returns the conversation id of the most recent message
// from fromAddress, or "" when there is none.
func (g *gmailSender) FindThread(ctx context.Context, fromAddress string) (string, error) {
	list, err := g.svc.Users.Messages.List("me").
		Q("from:" + fromAddress).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}

	if len(list.Messages) == 0 {
		return "", nil
	}

	return list.Messages[0].ThreadId, nil
}

// Send submits the reply and returns the sent message id. A non-empty
// threadID makes Gmail group the reply with the original conversation.
// The sender never retries; the caller owns the no-thread-id fallback.
func (g *gmailSender) Send(ctx context.Context, env ReplyEnvelope, threadID string) (string, error) {
	raw, err := rawMessage(env)
	if err != nil {
		return "", &SendError{Err: err}
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if threadID != "" {
		msg.ThreadId = threadID
	}

	sent, err := g.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", &SendError{Err: err}
	}

	slog.Info("Reply sent", "id", sent.Id, "to", env.To, "subject", env.Subject)
	return sent.Id, nil
}
