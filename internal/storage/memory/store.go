// Package memory provides an in-process LocalStore.
// State does not survive a restart; use it for tests and short-lived embedding.
package memory

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

type Store struct {
	mu      sync.Mutex
	token   *tokensync.DeviceToken
	session tokensync.Session
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Token(_ context.Context) (tokensync.DeviceToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.Value == "" {
		return tokensync.DeviceToken{}, false, nil
	}
	return *s.token, true, nil
}

func (s *Store) SetToken(_ context.Context, value string, pendingSync bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &tokensync.DeviceToken{Value: value, PendingSync: pendingSync}
	return nil
}

func (s *Store) MarkSynced(_ context.Context, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.Value != value {
		return false, nil
	}
	s.token.PendingSync = false
	return true, nil
}

func (s *Store) Session(_ context.Context) (tokensync.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

func (s *Store) SetSession(_ context.Context, userID, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = tokensync.Session{UserID: userID, AccessToken: accessToken}
	return nil
}

func (s *Store) ClearSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = tokensync.Session{}
	return nil
}

// Reset drops all state, as if local storage had been wiped.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.session = tokensync.Session{}
}

