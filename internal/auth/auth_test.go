package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")

	token := &oauth2.Token{
		AccessToken:  "ya29.abc",
		RefreshToken: "1//refresh",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	if err := saveToken(path, token); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("token file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file must not be world-readable, got %v", perm)
	}

	loaded, err := loadToken(path)
	if err != nil {
		t.Fatalf("failed to load token: %v", err)
	}
	if loaded.AccessToken != token.AccessToken || loaded.RefreshToken != token.RefreshToken {
		t.Errorf("loaded token differs: %+v", loaded)
	}
}

func TestLoadTokenRejectsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadToken(path); err == nil {
		t.Errorf("a token file without token material must be rejected")
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := loadToken(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Errorf("missing token file must return an error")
	}
}
