// Package memory is an in-memory profile store, used by tests and as a
// fallback when no state directory is available.
package memory

import "sync"

type Store struct {
	mu       sync.Mutex
	profiles map[string]string
}

func NewStore() *Store {
	return &Store{
		profiles: make(map[string]string),
	}
}

func (s *Store) ActiveProfile(device string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[device], nil
}

func (s *Store) SetActiveProfile(device, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[device] = profile
	return nil
}
