package responder

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/meko-christian/mail-autoreply/internal/auth"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// idleTimeout bounds one IDLE wait; on expiry a NOOP keeps the
// connection alive before the next wait.
const idleTimeout = 5 * time.Minute

// reconnectDelay is the fixed pause before rebuilding a failed
// connection. No backoff: acceptable for one low-traffic mailbox,
// a known limit for anything bigger.
var reconnectDelay = 5 * time.Second

// MailSession is the mailbox capability the monitor loop runs against.
// Implemented by session; faked in tests.
type MailSession interface {
	AwaitChange(timeout time.Duration) WaitResult
	SearchUnseenFrom(sender string) []uint32
	Fetch(seqNum uint32) *Message
	Keepalive() error
	Close()
}

// SessionDialer opens a fresh authenticated MailSession for the given
// account. Called on every (re)connect; sessions are never repaired.
type SessionDialer func(account, accessToken string) (MailSession, error)

// ReplySender is the outbound capability backed by the Gmail API.
type ReplySender interface {
	Profile(ctx context.Context) (string, error)
	FindThread(ctx context.Context, fromAddress string) (string, error)
	Send(ctx context.Context, env ReplyEnvelope, threadID string) (string, error)
}

// CredentialSource yields a currently valid bearer token.
type CredentialSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Config carries the validated responder settings.
type Config struct {
	TargetSender string
	ReplyBody    string
	IMAPServer   string
	IMAPPort     int
}

// ConfigFromViper loads and validates the responder settings. Missing
// required keys come back as ConfigError.
func ConfigFromViper() (Config, error) {
	cfg := Config{
		TargetSender: strings.ToLower(strings.TrimSpace(viper.GetString("filter.from"))),
		ReplyBody:    viper.GetString("reply.body"),
		IMAPServer:   viper.GetString("imap.server"),
		IMAPPort:     viper.GetInt("imap.port"),
	}

	if cfg.TargetSender == "" {
		return cfg, &ConfigError{Key: "filter.from"}
	}
	if cfg.ReplyBody == "" {
		return cfg, &ConfigError{Key: "reply.body"}
	}

	if cfg.IMAPServer == "" {
		cfg.IMAPServer = "imap.gmail.com"
	}
	if cfg.IMAPPort == 0 {
		cfg.IMAPPort = 993
	}

	return cfg, nil
}

// Serve wires the real Gmail service and IMAP dialer and runs the
// monitor loop until ctx is cancelled.
func Serve(ctx context.Context, creds *auth.Source) error {
	cfg, err := ConfigFromViper()
	if err != nil {
		return err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(creds.TokenSource(ctx)))
	if err != nil {
		return &AuthError{Err: err}
	}

	dial := func(account, accessToken string) (MailSession, error) {
		return dialSession(cfg.IMAPServer, cfg.IMAPPort, account, accessToken)
	}

	return runMonitor(ctx, cfg, creds, dial, NewGmailSender(svc))
}

// CheckAndReply performs a single drain pass: answer whatever unseen
// mail from the target is waiting, then log out.
func CheckAndReply(ctx context.Context, creds *auth.Source) error {
	cfg, err := ConfigFromViper()
	if err != nil {
		return err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(creds.TokenSource(ctx)))
	if err != nil {
		return &AuthError{Err: err}
	}
	sender := NewGmailSender(svc)

	ownAddress, err := sender.Profile(ctx)
	if err != nil {
		return err
	}

	token, err := creds.Token(ctx)
	if err != nil {
		return err
	}

	sess, err := dialSession(cfg.IMAPServer, cfg.IMAPPort, ownAddress, token.AccessToken)
	if err != nil {
		return err
	}
	defer sess.Close()

	processUnseen(ctx, cfg, sess, sender, newProcessedSet(), ownAddress)
	return nil
}

// runMonitor is the monitoring state machine: bootstrap once, then
// reconnect forever. All collaborators come in as narrow capabilities
// so the loop can be exercised against fakes.
func runMonitor(ctx context.Context, cfg Config, creds CredentialSource, dial SessionDialer, sender ReplySender) error {
	// Bootstrap: the reply From address is only known once the
	// credential has been exchanged for an identity.
	ownAddress, err := sender.Profile(ctx)
	if err != nil {
		return err
	}

	slog.Info("Authenticated", "account", ownAddress)
	slog.Info("Monitoring mailbox", "target", cfg.TargetSender, "reply", cfg.ReplyBody)

	processed := newProcessedSet()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Monitor cancelled")
			return nil
		default:
		}

		// A fresh token on every connect; the source refreshes expired
		// ones on its own.
		token, err := creds.Token(ctx)
		if err != nil {
			slog.Error("Failed to obtain access token", "error", err)
			sleepCtx(ctx, reconnectDelay)
			continue
		}

		sess, err := dial(ownAddress, token.AccessToken)
		if err != nil {
			slog.Error("Failed to connect", "error", err)
			sleepCtx(ctx, reconnectDelay)
			continue
		}

		slog.Info("Connected to IMAP server", "server", cfg.IMAPServer)

		// Answer whatever was already waiting before the first IDLE.
		processUnseen(ctx, cfg, sess, sender, processed, ownAddress)

		err = watch(ctx, cfg, sess, sender, processed, ownAddress, token)

		sess.Close()

		if ctx.Err() != nil {
			slog.Info("Monitor cancelled")
			return nil
		}

		if err != nil {
			slog.Error("Connection lost", "error", err)
			slog.Info("Reconnecting after delay", "delay", reconnectDelay)
			sleepCtx(ctx, reconnectDelay)
		}
		// err == nil: token expired, reconnect immediately with a
		// fresh one.
	}
}

// watch runs the IDLE cycle on one session until the connection fails,
// the access token expires, or ctx is cancelled. A nil return means
// the session is still healthy but needs a new token.
func watch(ctx context.Context, cfg Config, sess MailSession, sender ReplySender, processed *processedSet, ownAddress string, token *oauth2.Token) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		switch sess.AwaitChange(idleTimeout) {
		case WaitChanged:
			slog.Info("Mailbox changed, checking for new mail")
			processUnseen(ctx, cfg, sess, sender, processed, ownAddress)
		case WaitTimedOut:
			// Keep the server from dropping the idle connection.
			if err := sess.Keepalive(); err != nil {
				return err
			}
		case WaitError:
			return &ConnectError{Err: errors.New("wait for mailbox change failed")}
		}

		if !token.Expiry.IsZero() && time.Now().After(token.Expiry) {
			slog.Info("Access token expired, reconnecting")
			return nil
		}
	}
}

// processUnseen replies to every unseen message from the target sender
// that has not been answered this run. Messages are left unread, so
// the processed set alone prevents double replies when the same mail
// reappears in the next search.
func processUnseen(ctx context.Context, cfg Config, sess MailSession, sender ReplySender, processed *processedSet, ownAddress string) {
	refs := sess.SearchUnseenFrom(cfg.TargetSender)
	if len(refs) == 0 {
		slog.Debug("No unseen messages from target", "target", cfg.TargetSender)
		return
	}

	slog.Info("Found unseen candidates", "count", len(refs), "target", cfg.TargetSender)

	for _, ref := range refs {
		msg := sess.Fetch(ref)
		if msg == nil {
			continue
		}

		slog.Debug("Fetched message", "from", msg.From, "subject", msg.Subject)

		// The server-side FROM search matches substrings; only an
		// exact address match gets a reply. A mismatch is skipped
		// without admission so it stays eligible for reconsideration.
		if msg.From != cfg.TargetSender {
			slog.Debug("Skipping message with non-matching sender", "from", msg.From)
			continue
		}

		// Dedup by the stable Message-ID; a message without one falls
		// back to its session-scoped sequence number so each id-less
		// mail still gets its one reply.
		key := msg.MessageID
		if key == "" {
			key = "seq:" + strconv.FormatUint(uint64(ref), 10)
		}
		if !processed.Admit(key) {
			continue
		}

		replyTo(ctx, cfg, sender, msg, ownAddress)
	}
}

// replyTo sends one auto-reply, attaching an existing conversation id
// when the lookup succeeds and falling back to a bare send otherwise.
func replyTo(ctx context.Context, cfg Config, sender ReplySender, msg *Message, ownAddress string) {
	env := composeReply(msg, cfg.ReplyBody, ownAddress)

	threadID, err := sender.FindThread(ctx, cfg.TargetSender)
	if err != nil {
		slog.Warn("Conversation lookup failed, replying without thread id", "error", err)
		threadID = ""
	}

	if _, err := sender.Send(ctx, env, threadID); err != nil {
		// The Message-ID stays admitted: a failed send forfeits this
		// reply for the rest of the run rather than risking a double
		// send later.
		slog.Error("Failed to send reply", "to", env.To, "subject", env.Subject, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
