package gateway

// Store is the persistence abstraction for user sessions. Implementations need
// not be safe for concurrent use: SessionStore never makes two calls into a
// Store at the same time, reads included.
// Implementations must store and return values, never shared references.
type Store interface {
	GetSession(id UserID) (UserSession, bool)
	SetSession(s UserSession)
	DeleteSession(id UserID) bool
	Len() int
}

// InMemoryStore is a map-backed Store.
type InMemoryStore struct {
	sessions map[UserID]UserSession
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[UserID]UserSession),
	}
}

// GetSession implements Store.GetSession.
func (s *InMemoryStore) GetSession(id UserID) (UserSession, bool) {
	us, ok := s.sessions[id]
	return us, ok
}

// SetSession implements Store.SetSession.
func (s *InMemoryStore) SetSession(us UserSession) {
	s.sessions[us.UserID] = us
}

// DeleteSession implements Store.DeleteSession.
func (s *InMemoryStore) DeleteSession(id UserID) bool {
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	return len(s.sessions)
}
