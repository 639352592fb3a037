package http

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"messforecast/predict"
)

const DefaultSessionCapacity = 1024

// SessionStore maps session ids to their accumulators. The least recently
// used session is evicted once capacity is reached.
type SessionStore struct {
	cache *lru.Cache[string, *predict.Accumulator]
}

func NewSessionStore(capacity int) (*SessionStore, error) {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	cache, err := lru.New[string, *predict.Accumulator](capacity)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &SessionStore{cache: cache}, nil
}

// Create starts a session with an empty accumulator.
func (s *SessionStore) Create() (string, *predict.Accumulator) {
	id := randomHex(16)
	acc := predict.NewAccumulator()
	s.cache.Add(id, acc)
	return id, acc
}

func (s *SessionStore) Get(id string) (*predict.Accumulator, bool) {
	return s.cache.Get(id)
}

// Delete reports whether the session existed.
func (s *SessionStore) Delete(id string) bool {
	return s.cache.Remove(id)
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}
