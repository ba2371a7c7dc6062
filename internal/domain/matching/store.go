package matching

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an untouched matching session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Session is an open allocator together with the candidates offered for it.
type Session struct {
	ID          string       `json:"id"`
	Allocator   *Allocator   `json:"-"`
	Suggestions []Suggestion `json:"suggestions"`
	OpenedAt    time.Time    `json:"opened_at"`
}

// Candidate looks up an offered candidate by entity id.
func (s *Session) Candidate(entityID string) (Candidate, EntityType, bool) {
	for _, sg := range s.Suggestions {
		if sg.ID == entityID {
			return sg.Candidate(), sg.Type, true
		}
	}
	return Candidate{}, "", false
}

// Store holds open matching sessions in memory. Nothing in it outlives the process:
// an allocation set only becomes durable once the backend accepts it.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store. A non-positive ttl falls back to DefaultSessionTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Open starts a new session for tx. Any other session for the same transaction is
// discarded, so there is one working set per transaction.
func (s *Store) Open(tx Transaction, suggestions []Suggestion) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.discardTransactionLocked(tx.ID)

	session := &Session{
		ID:          uuid.New().String(),
		Allocator:   NewAllocator(tx),
		Suggestions: suggestions,
		OpenedAt:    s.now(),
	}
	s.sessions[session.ID] = session
	return session
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || s.expired(session) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Discard drops the session. Unknown ids are ignored.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// DiscardTransaction drops every session working on transactionID.
func (s *Store) DiscardTransaction(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardTransactionLocked(transactionID)
}

func (s *Store) discardTransactionLocked(transactionID string) {
	for id, existing := range s.sessions {
		if existing.Allocator.Transaction().ID == transactionID {
			delete(s.sessions, id)
		}
	}
}

// Prune removes idle sessions and returns how many were dropped.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked()
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) pruneLocked() int {
	pruned := 0
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

func (s *Store) expired(session *Session) bool {
	a := session.Allocator
	a.mu.Lock()
	busy := a.committing
	last := a.updatedAt
	a.mu.Unlock()
	return !busy && s.now().Sub(last) > s.ttl
}
