package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is the default Store: mutex-guarded maps, nothing survives a
// restart. Check-and-delete happens under one lock so concurrent consumers
// of the same challenge cannot both win.
type Memory struct {
	mu          sync.Mutex
	challenges  map[string]Challenge
	credentials map[string]Credential
}

func NewMemory() *Memory {
	return &Memory{
		challenges:  make(map[string]Challenge),
		credentials: make(map[string]Credential),
	}
}

func (s *Memory) SaveChallenge(_ context.Context, challenge Challenge) error {
	if challenge.IssuedAt.IsZero() {
		challenge.IssuedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Value] = challenge
	return nil
}

func (s *Memory) ConsumeChallenge(_ context.Context, value string) (*Challenge, error) {
	s.mu.Lock()
	challenge, ok := s.challenges[value]
	delete(s.challenges, value)
	s.mu.Unlock()

	if !ok || challenge.expired(time.Now()) {
		return nil, ErrChallengeNotFound
	}
	return &challenge, nil
}

func (s *Memory) SaveCredential(_ context.Context, credential Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.credentials[credential.ID]; ok {
		credential.CreatedAt = existing.CreatedAt
	}
	s.credentials[credential.ID] = credential
	return nil
}

func (s *Memory) GetCredential(_ context.Context, id string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	credential, ok := s.credentials[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &credential, nil
}

func (s *Memory) ListCredentials(_ context.Context) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	credentials := make([]Credential, 0, len(s.credentials))
	for _, credential := range s.credentials {
		credentials = append(credentials, credential)
	}
	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].CreatedAt.Before(credentials[j].CreatedAt)
	})
	return credentials, nil
}
