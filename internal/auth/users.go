// Package auth provides user authentication and session management.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/beavernet/beavernet/internal/clock"
)

// Sentinel errors. Authenticate deliberately returns the same error for an
// unknown username and a wrong password so callers cannot tell them apart.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrUserExists         = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// Default session lifetimes, used unless overridden with SetSessionTTLs.
// "Remember me" trades a long-lived cookie for convenience.
const (
	DefaultSessionTTL  = 24 * time.Hour
	RememberSessionTTL = 30 * 24 * time.Hour
)

// dummyHash is compared against when the username is unknown, keeping the
// failure path as slow as a real mismatch.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("beavernet-not-a-password"), bcrypt.DefaultCost)

// User represents a dashboard user.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Hash      string    `json:"hash,omitempty"` // bcrypt hash, stripped before API responses
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sanitized returns a copy of the user safe to serialize to clients.
func (u *User) Sanitized() *User {
	c := *u
	c.Hash = ""
	return &c
}

// Session represents an active login session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store manages users and sessions. All state lives in memory; when created
// with a non-empty path it additionally persists to a JSON file so logins
// survive restarts.
type Store struct {
	path        string
	users       map[int64]*User
	byName      map[string]int64
	sessions    map[string]*Session
	nextID      int64
	sessionTTL  time.Duration
	rememberTTL time.Duration
	clk         clock.Clock
	mu          sync.RWMutex
}

// authData is the persisted auth state.
type authData struct {
	Users    map[int64]*User     `json:"users"`
	Sessions map[string]*Session `json:"sessions"`
	NextID   int64               `json:"next_id"`
}

// NewStore creates an auth store. An empty path disables persistence.
func NewStore(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = &clock.RealClock{}
	}

	s := &Store{
		path:        path,
		users:       make(map[int64]*User),
		byName:      make(map[string]int64),
		sessions:    make(map[string]*Session),
		nextID:      1,
		sessionTTL:  DefaultSessionTTL,
		rememberTTL: RememberSessionTTL,
		clk:         clk,
	}

	if path != "" {
		if err := s.load(); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	return s, nil
}

// load reads auth data from disk.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var ad authData
	if err := json.Unmarshal(data, &ad); err != nil {
		return fmt.Errorf("parse auth file %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ad.Users != nil {
		s.users = ad.Users
	}
	if ad.Sessions != nil {
		s.sessions = ad.Sessions
	}
	if ad.NextID > 0 {
		s.nextID = ad.NextID
	}

	for _, u := range s.users {
		s.byName[u.Username] = u.ID
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}

	// Drop expired sessions on load
	now := s.clk.Now()
	for token, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, token)
		}
	}

	return nil
}

// saveLocked writes auth data to disk.
// MUST be called while holding the write lock. No-op without a path.
func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(authData{
		Users:    s.users,
		Sessions: s.sessions,
		NextID:   s.nextID,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	// Write atomically
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// HasUsers returns true if any users exist.
func (s *Store) HasUsers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users) > 0
}

// Register creates a new user. The duplicate-username check and the insert
// happen under one lock, so uniqueness holds under concurrent registration.
func (s *Store) Register(username, password, email string) (*User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return nil, ErrUserExists
	}

	now := s.clk.Now()
	user := &User{
		ID:        s.nextID,
		Username:  username,
		Hash:      string(hash),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.users[user.ID] = user
	s.byName[username] = user.ID

	if err := s.saveLocked(); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate validates credentials and returns the matching user.
func (s *Store) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	id, exists := s.byName[username]
	var user *User
	if exists {
		user = s.users[id]
	}
	s.mu.RUnlock()

	if user == nil {
		// Burn a comparison so the unknown-user path costs the same
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// SetSessionTTLs overrides the session lifetimes. Non-positive values keep
// the current setting. Call before sessions are issued.
func (s *Store) SetSessionTTLs(session, remember time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session > 0 {
		s.sessionTTL = session
	}
	if remember > 0 {
		s.rememberTTL = remember
	}
}

// CreateSession issues a new opaque session token for the user.
func (s *Store) CreateSession(user *User, remember bool) (*Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	s.mu.RUnlock()

	now := s.clk.Now()
	session := &Session{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = session

	if err := s.saveLocked(); err != nil {
		return nil, err
	}

	return session, nil
}

// ValidateSession checks a session token and returns its user.
func (s *Store) ValidateSession(token string) (*User, error) {
	s.mu.RLock()
	session, exists := s.sessions[token]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrInvalidSession
	}

	if session.ExpiresAt.Before(s.clk.Now()) {
		// Expired: drop it so the map does not grow unbounded
		s.mu.Lock()
		delete(s.sessions, token)
		s.saveLocked()
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	user, ok := s.users[session.UserID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidSession
	}

	return user, nil
}

// DestroySession invalidates a session. It reports whether a session was
// actually removed; unknown tokens are a no-op.
func (s *Store) DestroySession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[token]; !exists {
		return false
	}
	delete(s.sessions, token)
	s.saveLocked()
	return true
}

// SessionCount returns the number of live sessions, dropping any that have
// expired along the way.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	removed := false
	for token, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, token)
			removed = true
		}
	}
	if removed {
		s.saveLocked()
	}
	return len(s.sessions)
}

// GetUser returns a user by id.
func (s *Store) GetUser(id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.users[id], nil
}

// UpdateUser applies a profile update. Empty fields are left unchanged;
// a non-empty newPassword is re-hashed.
func (s *Store) UpdateUser(id int64, email, newPassword string) (*User, error) {
	var hash string
	if newPassword != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = string(h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	if email != "" {
		user.Email = email
	}
	if hash != "" {
		user.Hash = hash
	}
	user.UpdatedAt = s.clk.Now()

	if err := s.saveLocked(); err != nil {
		return nil, err
	}

	return user, nil
}
