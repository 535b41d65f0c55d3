// Package auth obtains, refreshes and persists the OAuth2 credential
// used for both the IMAP XOAUTH2 login and the Gmail API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Source yields valid access tokens. Refreshing goes through the
// OAuth2 token endpoint; any token that comes back changed is written
// to the token file so the next run skips the consent flow.
type Source struct {
	config    *oauth2.Config
	tokenFile string
	token     *oauth2.Token
}

// NewSource loads the OAuth2 client secret and any previously saved
// token. When no usable token exists the interactive consent flow is
// run immediately.
func NewSource(ctx context.Context, credentialsFile, tokenFile string, scopes []string) (*Source, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret: %w", err)
	}

	s := &Source{config: config, tokenFile: tokenFile}

	token, err := loadToken(tokenFile)
	if err != nil {
		slog.Info("No saved token, starting interactive authorization", "token_file", tokenFile)
		token, err = s.Authorize(ctx)
		if err != nil {
			return nil, err
		}
	}
	s.token = token

	return s, nil
}

// Token returns a currently valid token, refreshing if the saved one
// has expired. A token the endpoint refuses to refresh falls back to a
// fresh interactive authorization instead of failing permanently.
func (s *Source) Token(ctx context.Context) (*oauth2.Token, error) {
	token, err := s.config.TokenSource(ctx, s.token).Token()
	if err != nil {
		slog.Warn("Token refresh failed, re-running authorization", "error", err)
		token, err = s.Authorize(ctx)
		if err != nil {
			return nil, err
		}
	}

	if token.AccessToken != s.token.AccessToken {
		s.token = token
		if err := saveToken(s.tokenFile, token); err != nil {
			slog.Warn("Failed to persist refreshed token", "error", err)
		} else {
			slog.Debug("Refreshed token saved", "token_file", s.tokenFile)
		}
	}

	return token, nil
}

// TokenSource adapts the source for API clients that refresh on their own.
func (s *Source) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(s.token, tokenFunc(func() (*oauth2.Token, error) {
		return s.Token(ctx)
	}))
}

type tokenFunc func() (*oauth2.Token, error)

func (f tokenFunc) Token() (*oauth2.Token, error) { return f() }

// Authorize runs the browser consent flow with a loopback redirect and
// persists the resulting token.
func (s *Source) Authorize(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer ln.Close()

	config := *s.config
	config.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Open this URL in your browser to authorize access:\n\n  %s\n\n", authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization state mismatch")
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization response missing code")
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this tab.")
		codeCh <- code
	})}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	var code string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case code = <-codeCh:
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	s.token = token
	if err := saveToken(s.tokenFile, token); err != nil {
		return nil, err
	}
	slog.Info("Token saved", "token_file", s.tokenFile)

	return token, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no usable token", path)
	}

	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	// Token material is a credential; keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", path, err)
	}

	return nil
}
