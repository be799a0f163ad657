package auth

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/beavernet/beavernet/internal/clock"
)

func tempAuthPath(t *testing.T) string {
	dir := t.TempDir()
	return filepath.Join(dir, "auth.json")
}

func newTestStore(t *testing.T) *Store {
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(tempAuthPath(t), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("NewStore returned nil")
	}
	if store.HasUsers() {
		t.Error("fresh store should have no users")
	}
}

func TestRegister(t *testing.T) {
	store := newTestStore(t)

	user, err := store.Register("bob", "secret123", "bob@beavernet.local")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("user id not assigned")
	}
	if user.Username != "bob" {
		t.Errorf("Username = %q, want %q", user.Username, "bob")
	}
	if user.Hash == "" || user.Hash == "secret123" {
		t.Error("password must be stored as a hash")
	}

	got, err := store.GetUserByUsername("bob")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("GetUserByUsername id = %d, want %d", got.ID, user.ID)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Register("admin", "password123", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := store.Register("admin", "different", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate register error = %v, want ErrUserExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Register("", "password", ""); err == nil {
		t.Error("empty username should fail")
	}
	if _, err := store.Register("user", "", ""); err == nil {
		t.Error("empty password should fail")
	}
}

func TestRegisterConcurrentUniqueness(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = store.Register("race", "password123", "")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
		} else if !errors.Is(err, ErrUserExists) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("exactly one registration should win, got %d", created)
	}
}

func TestAuthenticate(t *testing.T) {
	store := newTestStore(t)
	store.Register("bob", "secret123", "")

	user, err := store.Authenticate("bob", "secret123")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("Username = %q, want %q", user.Username, "bob")
	}
}

func TestAuthenticateFailsIdentically(t *testing.T) {
	store := newTestStore(t)
	store.Register("bob", "secret123", "")

	_, wrongPass := store.Authenticate("bob", "wrong")
	_, unknownUser := store.Authenticate("nobody", "secret123")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongPass)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", unknownUser)
	}
	if wrongPass.Error() != unknownUser.Error() {
		t.Error("failure modes must be indistinguishable")
	}
}

func TestSessionLifecycle(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, _ := NewStore("", clk)
	user, _ := store.Register("bob", "secret123", "")

	sess, err := store.CreateSession(user, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("empty session token")
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != DefaultSessionTTL {
		t.Errorf("default TTL = %v, want %v", got, DefaultSessionTTL)
	}

	got, err := store.ValidateSession(sess.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("session user = %d, want %d", got.ID, user.ID)
	}

	// Valid right up to expiry, invalid after
	clk.Advance(DefaultSessionTTL - time.Minute)
	if _, err := store.ValidateSession(sess.Token); err != nil {
		t.Errorf("session should still be valid: %v", err)
	}
	clk.Advance(2 * time.Minute)
	if _, err := store.ValidateSession(sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session error = %v, want ErrInvalidSession", err)
	}
}

func TestCreateSessionRememberMe(t *testing.T) {
	store := newTestStore(t)
	user, _ := store.Register("bob", "secret123", "")

	sess, err := store.CreateSession(user, true)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != RememberSessionTTL {
		t.Errorf("remember-me TTL = %v, want %v", got, RememberSessionTTL)
	}
}

func TestSetSessionTTLs(t *testing.T) {
	store := newTestStore(t)
	user, _ := store.Register("bob", "secret123", "")

	store.SetSessionTTLs(time.Hour, 48*time.Hour)

	sess, err := store.CreateSession(user, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Errorf("configured session TTL = %v, want %v", got, time.Hour)
	}

	remembered, _ := store.CreateSession(user, true)
	if got := remembered.ExpiresAt.Sub(remembered.CreatedAt); got != 48*time.Hour {
		t.Errorf("configured remember TTL = %v, want %v", got, 48*time.Hour)
	}

	// Non-positive values keep the current setting
	store.SetSessionTTLs(0, -time.Minute)
	sess, _ = store.CreateSession(user, false)
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Errorf("TTL after zero override = %v, want %v", got, time.Hour)
	}
}

func TestDestroySessionIdempotent(t *testing.T) {
	store := newTestStore(t)
	user, _ := store.Register("bob", "secret123", "")
	sess, _ := store.CreateSession(user, false)

	if !store.DestroySession(sess.Token) {
		t.Error("DestroySession should report removal of a live session")
	}
	if _, err := store.ValidateSession(sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("destroyed session error = %v, want ErrInvalidSession", err)
	}

	// Destroying again (or destroying garbage) must not panic or fail
	if store.DestroySession(sess.Token) {
		t.Error("DestroySession should report false for an already-destroyed token")
	}
	if store.DestroySession("no-such-token") {
		t.Error("DestroySession should report false for an unknown token")
	}
}

func TestSessionCountDropsExpired(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := NewStore("", clk)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	user, _ := store.Register("bob", "secret123", "")

	store.CreateSession(user, false)
	store.CreateSession(user, true)
	if got := store.SessionCount(); got != 2 {
		t.Fatalf("SessionCount = %d, want 2", got)
	}

	// Past the plain TTL but inside the remember-me one
	clk.Advance(DefaultSessionTTL + time.Minute)
	if got := store.SessionCount(); got != 1 {
		t.Errorf("SessionCount after expiry = %d, want 1", got)
	}
}

func TestValidateSessionUnknownToken(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.ValidateSession("bogus"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("unknown token error = %v, want ErrInvalidSession", err)
	}
}

func TestUpdateUser(t *testing.T) {
	store := newTestStore(t)
	user, _ := store.Register("bob", "secret123", "old@beavernet.local")
	oldHash := user.Hash

	updated, err := store.UpdateUser(user.ID, "new@beavernet.local", "newpassword")
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Email != "new@beavernet.local" {
		t.Errorf("Email = %q, want updated value", updated.Email)
	}
	if updated.Hash == oldHash {
		t.Error("password hash should change after update")
	}

	if _, err := store.Authenticate("bob", "newpassword"); err != nil {
		t.Errorf("new password should authenticate: %v", err)
	}
	if _, err := store.Authenticate("bob", "secret123"); err == nil {
		t.Error("old password should no longer authenticate")
	}
}

func TestUpdateUserUnknown(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.UpdateUser(42, "x@y.z", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestPersistenceRoundtrip(t *testing.T) {
	path := tempAuthPath(t)

	store, _ := NewStore(path, nil)
	user, _ := store.Register("bob", "secret123", "bob@beavernet.local")
	sess, _ := store.CreateSession(user, false)

	// Reopen from the same file
	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !reopened.HasUsers() {
		t.Fatal("users not persisted")
	}
	got, err := reopened.ValidateSession(sess.Token)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if got.Username != "bob" {
		t.Errorf("Username = %q, want %q", got.Username, "bob")
	}

	// New users must not collide with persisted ids
	other, _ := reopened.Register("alice", "password123", "")
	if other.ID == user.ID {
		t.Error("id generator reused a persisted id")
	}
}

func TestSanitized(t *testing.T) {
	store := newTestStore(t)
	user, _ := store.Register("bob", "secret123", "")

	s := user.Sanitized()
	if s.Hash != "" {
		t.Error("Sanitized must strip the hash")
	}
	if user.Hash == "" {
		t.Error("Sanitized must not mutate the original")
	}
}
