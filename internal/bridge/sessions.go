package bridge

import "sync"

// Port is the bridge's end of a connected side panel.
type Port interface {
	Post(msg PortMessage) error
	Close() error
}

// Sessions maps window ids to the panel connected in that window.
type Sessions struct {
	mu    sync.Mutex
	ports map[int]Port
}

func NewSessions() *Sessions {
	return &Sessions{ports: make(map[int]Port)}
}

// Set records p as the panel of window id, replacing any previous one.
func (s *Sessions) Set(id int, p Port) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[id] = p
}

func (s *Sessions) Get(id int) (Port, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.ports[id]
	return p, ok
}

func (s *Sessions) Has(id int) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *Sessions) Delete(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ports, id)
}

// Remove drops whichever window p is registered for and returns it.
func (s *Sessions) Remove(p Port) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range s.ports {
		if q == p {
			delete(s.ports, id)
			return id, true
		}
	}
	return 0, false
}

func (s *Sessions) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ports)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ports)
}
