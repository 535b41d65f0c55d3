package responder

import "testing"

func TestProcessedSetAdmitsOnce(t *testing.T) {
	t.Parallel()

	set := newProcessedSet()

	if !set.Admit("<a@b>") {
		t.Errorf("first Admit should report a new id")
	}

	if set.Admit("<a@b>") {
		t.Errorf("second Admit of the same id should be rejected")
	}

	if !set.Admit("<c@d>") {
		t.Errorf("a different id should still be admitted")
	}
}

func TestProcessedSetEmptyID(t *testing.T) {
	t.Parallel()

	set := newProcessedSet()

	if !set.Admit("") {
		t.Errorf("empty id should be admitted once")
	}
	if set.Admit("") {
		t.Errorf("empty id should not be admitted twice")
	}
}
