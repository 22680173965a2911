package link

import "sync"

// Session is the single owner of a VehicleLink. Each Do call has exclusive
// use of the link for its whole duration, so a check-then-act sequence run
// inside one Do cannot interleave with any other conversation.
type Session struct {
	mu   sync.Mutex
	link VehicleLink
}

func NewSession(l VehicleLink) *Session {
	return &Session{link: l}
}

func (s *Session) Do(fn func(l VehicleLink) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.link)
}
