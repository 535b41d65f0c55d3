package responder

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/textproto"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	idle "github.com/emersion/go-imap-idle"
	"github.com/emersion/go-sasl"
)

// WaitResult is the outcome of one AwaitChange cycle.
type WaitResult int

const (
	// WaitChanged means the server reported a mailbox change. It does
	// not say which message changed; callers re-run their search.
	WaitChanged WaitResult = iota
	// WaitTimedOut means nothing happened within the timeout. Not an
	// error; the connection stays usable.
	WaitTimedOut
	// WaitError means the connection broke while waiting. The whole
	// session must be discarded and re-dialed.
	WaitError
)

// xoauth2Client implements the SASL XOAUTH2 mechanism: the bearer
// token is carried in the initial response, there is no challenge round.
type xoauth2Client struct {
	username string
	token    string
}

func newXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// XOAUTH2 only challenges to deliver an error blob; an empty
	// response makes the server follow up with its tagged NO.
	return nil, nil
}

// session owns one authenticated IMAP connection with the INBOX
// selected. Any error on it invalidates the connection as a whole:
// callers reconnect with dialSession rather than retrying a command on
// the same socket.
type session struct {
	c       *client.Client
	updates chan client.Update
}

// dialSession connects to the IMAP server over TLS, authenticates with
// XOAUTH2 and selects the INBOX.
func dialSession(server string, port int, account, accessToken string) (*session, error) {
	address := fmt.Sprintf("%s:%d", server, port)

	// ServerName ensures correct certificate validation
	tlsConfig := &tls.Config{ServerName: server}

	c, err := client.DialTLS(address, tlsConfig)
	if err != nil {
		return nil, &ConnectError{Err: fmt.Errorf("failed to connect to IMAP server: %w", err)}
	}

	if err := c.Authenticate(newXOAuth2(account, accessToken)); err != nil {
		_ = c.Logout() // clean up if login fails
		return nil, &AuthError{Err: err}
	}

	if _, err := c.Select("INBOX", false); err != nil {
		_ = c.Logout()
		return nil, &ConnectError{Err: fmt.Errorf("failed to select INBOX: %w", err)}
	}

	// Unsolicited updates arrive on this channel while idling. Buffered
	// so the reader goroutine never blocks on a slow consumer.
	updates := make(chan client.Update, 64)
	c.Updates = updates

	return &session{c: c, updates: updates}, nil
}

// AwaitChange blocks in IDLE until the server reports a mailbox change
// or the timeout elapses. The IDLE command is always terminated before
// this method returns, so the connection is ready for other commands
// afterwards (the protocol forbids interleaving anything else while
// idling).
func (s *session) AwaitChange(timeout time.Duration) WaitResult {
	stop := make(chan struct{})
	done := make(chan error, 1)

	idleClient := idle.NewClient(s.c)
	go func() { done <- idleClient.IdleWithFallback(stop, 0) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := WaitTimedOut

waiting:
	for {
		select {
		case update := <-s.updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				result = WaitChanged
				break waiting
			}
			// Expunge and status updates re-arm the wait.
		case err := <-done:
			// IDLE ended on its own: the connection is gone.
			if err != nil {
				slog.Error("IDLE terminated", "error", err)
			}
			return WaitError
		case <-timer.C:
			break waiting
		}
	}

	close(stop)
	if err := <-done; err != nil {
		slog.Error("Failed to leave IDLE", "error", err)
		return WaitError
	}

	return result
}

// SearchUnseenFrom returns the sequence numbers of unseen messages the
// server attributes to sender. Server-side FROM matching is a
// substring match, so callers must re-check the exact address on the
// fetched message. Protocol errors degrade to an empty result; a
// failed search is never fatal to the monitor loop.
func (s *session) SearchUnseenFrom(sender string) []uint32 {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header = textproto.MIMEHeader{}
	criteria.Header.Add("From", sender)

	seqNums, err := s.c.Search(criteria)
	if err != nil {
		slog.Error("Search failed", "sender", sender, "error", err)
		return nil
	}

	return seqNums
}

// Fetch retrieves one message whole and parses its headers. A nil
// result means the message is gone or unparseable; both are skippable.
func (s *session) Fetch(seqNum uint32) *Message {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNum)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := s.c.Fetch(seqset, items, messages); err != nil {
		slog.Warn("Fetch failed", "seq", seqNum, "error", err)
		return nil
	}

	msg := <-messages
	if msg == nil {
		return nil
	}

	body := msg.GetBody(section)
	if body == nil {
		slog.Warn("No body in fetched message", "seq", seqNum)
		return nil
	}

	parsed, err := parseMessage(body)
	if err != nil {
		slog.Warn("Failed to parse message", "seq", seqNum, "error", err)
		return nil
	}

	return parsed
}

// Keepalive sends a NOOP to hold the connection open without entering
// IDLE. Used after a timed-out wait.
func (s *session) Keepalive() error {
	if err := s.c.Noop(); err != nil {
		return &ConnectError{Err: err}
	}
	return nil
}

// Close logs out best-effort; the connection is being discarded anyway.
func (s *session) Close() {
	if err := s.c.Logout(); err != nil {
		slog.Debug("Logout failed", "error", err)
	}
}
