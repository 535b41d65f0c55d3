package responder

import "testing"

func TestXOAuth2InitialResponse(t *testing.T) {
	t.Parallel()

	client := newXOAuth2("me@example.com", "ya29.token")

	mech, ir, err := client.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if mech != "XOAUTH2" {
		t.Errorf("unexpected mechanism: %q", mech)
	}

	want := "user=me@example.com\x01auth=Bearer ya29.token\x01\x01"
	if string(ir) != want {
		t.Errorf("unexpected initial response: %q, want %q", ir, want)
	}
}
