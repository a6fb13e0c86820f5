package gateway

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStore is the concurrency-safe owner of all user sessions.
//
// Every operation, reads included, holds the store-wide exclusive lock for its
// whole duration, so the backing Store never sees two calls at once and a
// mutation is either fully visible or not visible at all. If the backing Store
// panics while the lock is held, the store is marked unavailable and that call
// and every later call fail with ErrLockUnavailable.
type SessionStore struct {
	mu       sync.Mutex
	store    Store
	poisoned atomic.Bool
	now      func() time.Time
}

// NewSessionStore constructs a session store backed by an InMemoryStore.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithStore(NewInMemoryStore())
}

// NewSessionStoreWithStore constructs a session store over the given Store.
func NewSessionStoreWithStore(store Store) *SessionStore {
	return &SessionStore{store: store, now: time.Now}
}

// RegisterUser inserts or replaces the session for id and returns the stored
// snapshot. Registering the same bitrate twice leaves the session untouched.
func (s *SessionStore) RegisterUser(id UserID, bitrate int) (UserSession, error) {
	var out UserSession
	err := s.locked(func(st Store) error {
		if cur, ok := st.GetSession(id); ok && cur.Bitrate == bitrate {
			out = cur
			return nil
		}
		out = UserSession{UserID: id, Bitrate: bitrate, UpdatedAt: s.now().UTC()}
		st.SetSession(out)
		return nil
	})
	return out, err
}

// UpdateBitrate replaces the stored bitrate for an existing session and
// returns the stored snapshot. It never creates a session: unknown ids fail
// with ErrUserNotFound.
func (s *SessionStore) UpdateBitrate(id UserID, bitrate int) (UserSession, error) {
	var out UserSession
	err := s.locked(func(st Store) error {
		cur, ok := st.GetSession(id)
		if !ok {
			return ErrUserNotFound
		}
		if cur.Bitrate != bitrate {
			cur.Bitrate = bitrate
			cur.UpdatedAt = s.now().UTC()
			st.SetSession(cur)
		}
		out = cur
		return nil
	})
	return out, err
}

// GetSession returns a snapshot of the session for id.
func (s *SessionStore) GetSession(id UserID) (UserSession, error) {
	var out UserSession
	err := s.locked(func(st Store) error {
		us, ok := st.GetSession(id)
		if !ok {
			return ErrUserNotFound
		}
		out = us
		return nil
	})
	return out, err
}

// RemoveUser deletes the session for id, or fails with ErrUserNotFound.
func (s *SessionStore) RemoveUser(id UserID) error {
	return s.locked(func(st Store) error {
		if !st.DeleteSession(id) {
			return ErrUserNotFound
		}
		return nil
	})
}

// Len returns the number of sessions. It returns 0 once the store is unavailable.
func (s *SessionStore) Len() int {
	n := 0
	_ = s.locked(func(st Store) error {
		n = st.Len()
		return nil
	})
	return n
}

// Available reports whether the store can still guarantee exclusive access.
func (s *SessionStore) Available() bool {
	return !s.poisoned.Load()
}

func (s *SessionStore) locked(fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard(fn)
}

// guard runs fn against the backing store and converts a panic into a
// permanent ErrLockUnavailable. Caller must hold s.mu.
func (s *SessionStore) guard(fn func(Store) error) (err error) {
	if s.poisoned.Load() {
		return ErrLockUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			err = fmt.Errorf("%w: %v", ErrLockUnavailable, r)
		}
	}()
	return fn(s.store)
}
