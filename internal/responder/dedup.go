package responder

// processedSet tracks the identifiers of mails already answered during
// this run. Messages are deliberately never marked seen, so the same
// mail keeps showing up in unseen searches; this set is the only thing
// preventing a second reply. Not persisted: a restart with the mail
// still unread answers it again.
type processedSet struct {
	ids map[string]struct{}
}

func newProcessedSet() *processedSet {
	return &processedSet{ids: make(map[string]struct{})}
}

// Admit records id and reports whether it was new. A given id is
// admitted at most once per process lifetime.
func (s *processedSet) Admit(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}
