// Package store holds the story twin's in-memory state: login accounts
// with bcrypt password hashes and the stories themselves.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	twinstore "github.com/storyspoiler/storycheck/internal/twin/store"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user
// or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// MemoryStore holds all story twin state in memory.
type MemoryStore struct {
	Users   *twinstore.Store[User]
	Stories *twinstore.Store[Story]
	Clock   *twinstore.Clock

	seed []User // hashed; restored on Reset
	cost int
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithBcryptCost sets the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *MemoryStore) { s.cost = cost }
}

// New creates a MemoryStore with the given seed account. The account
// survives Reset.
func New(username, password string, opts ...Option) (*MemoryStore, error) {
	s := &MemoryStore{
		Users:   twinstore.New[User](),
		Stories: twinstore.New[Story](),
		Clock:   twinstore.NewClock(),
		cost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	if username != "" {
		u, err := s.hashUser(User{Username: username, Password: password})
		if err != nil {
			return nil, err
		}
		s.seed = append(s.seed, u)
	}
	s.restoreSeed()
	return s, nil
}

func (s *MemoryStore) hashUser(u User) (User, error) {
	if u.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), s.cost)
		if err != nil {
			return User{}, fmt.Errorf("hashing password for %s: %w", u.Username, err)
		}
		u.PasswordHash = string(hash)
		u.Password = ""
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.Clock.Now()
	}
	return u, nil
}

func (s *MemoryStore) restoreSeed() {
	for _, u := range s.seed {
		s.Users.Set(u.Username, u)
	}
}

// Authenticate checks a username and password against the stored hash.
func (s *MemoryStore) Authenticate(username, password string) (User, error) {
	u, ok := s.Users.Get(username)
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// stateSnapshot is the JSON shape of /admin/state and seed files.
type stateSnapshot struct {
	Users   map[string]User  `json:"users"`
	Stories map[string]Story `json:"stories"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{
		Users:   s.Users.Snapshot(),
		Stories: s.Stories.Snapshot(),
	}
}

// LoadState replaces the state from a JSON body. Users given with a
// plaintext password are hashed; a missing users key keeps current users.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	if snap.Users != nil {
		users := make(map[string]User, len(snap.Users))
		for name, u := range snap.Users {
			if u.Username == "" {
				u.Username = name
			}
			hashed, err := s.hashUser(u)
			if err != nil {
				return err
			}
			users[name] = hashed
		}
		s.Users.LoadSnapshot(users)
	}

	stories := make(map[string]Story, len(snap.Stories))
	for id, st := range snap.Stories {
		if st.ID == "" {
			st.ID = id
		}
		stories[id] = st
	}
	s.Stories.LoadSnapshot(stories)
	return nil
}

// Reset clears all stories, restores the seed account and resets the clock.
func (s *MemoryStore) Reset() {
	s.Stories.Reset()
	s.Users.Reset()
	s.restoreSeed()
	s.Clock.Reset()
}
