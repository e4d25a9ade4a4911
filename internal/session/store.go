// Package session owns the client's credentials: the access/refresh token
// pair and the cached profile of the logged-in user.
package session

import (
	"context"
	"errors"
	"sync"
)

// Keys under which the session is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// ErrNoSession is returned when no credentials are stored.
var ErrNoSession = errors.New("not logged in")

// Credentials is the token pair issued by login or refresh.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither token is present.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// User is the cached profile returned at login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Store persists the session. Readers must call Credentials for every request
// attempt instead of holding on to a token.
type Store interface {
	Credentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, c Credentials) error
	// User returns ErrNoSession when no profile is cached.
	User(ctx context.Context) (User, error)
	SaveUser(ctx context.Context, u User) error
	// Clear removes tokens and the cached user together.
	Clear(ctx context.Context) error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
	user  *User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Credentials(context.Context) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, nil
}

func (s *MemoryStore) SaveCredentials(_ context.Context, c Credentials) error {
	s.mu.Lock()
	s.creds = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) User(context.Context) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, ErrNoSession
	}
	return *s.user, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u User) error {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.creds = Credentials{}
	s.user = nil
	s.mu.Unlock()
	return nil
}
