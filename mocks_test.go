package accounts_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-accounts"
)

// MockAdminStore implements accounts.AdminStore
type MockAdminStore struct {
	mock.Mock
}

func (m *MockAdminStore) FindByIdentity(ctx context.Context, identity string) (*accounts.User, error) {
	args := m.Called(ctx, identity)
	user, _ := args.Get(0).(*accounts.User)
	return user, args.Error(1)
}

func (m *MockAdminStore) Insert(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, user)
	out, _ := args.Get(0).(*accounts.User)
	return out, args.Error(1)
}

func (m *MockAdminStore) UpdateSecretHash(ctx context.Context, identity, hash string) error {
	args := m.Called(ctx, identity, hash)
	return args.Error(0)
}

func (m *MockAdminStore) UpdateRole(ctx context.Context, identity string, role accounts.Role) error {
	args := m.Called(ctx, identity, role)
	return args.Error(0)
}

// MockTokenIssuer implements accounts.TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(identity string, role accounts.Role, ttl time.Duration) (string, time.Time, error) {
	args := m.Called(identity, role, ttl)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// MockIdentityVerifier implements accounts.IdentityVerifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) VerifyIdentity(ctx context.Context, identifier, password string) (*accounts.User, error) {
	args := m.Called(ctx, identifier, password)
	user, _ := args.Get(0).(*accounts.User)
	return user, args.Error(1)
}

// MockTokenVerifier implements accounts.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(token string) (accounts.Principal, error) {
	args := m.Called(token)
	return args.Get(0).(accounts.Principal), args.Error(1)
}

// captureLogger records log lines, safe for concurrent use
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("DBG", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("INF", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("WRN", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("ERR", msg, args...) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// captureSink records activity events
type captureSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Types() []accounts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// failingHasher hashes like bcrypt but can be told to fail
type failingHasher struct {
	accounts.PasswordHasher
	failHash bool
}

var errHasherDown = errors.New("hasher down")

func (h failingHasher) Hash(secret string) (string, error) {
	if h.failHash {
		return "", fmt.Errorf("%w: %w", accounts.ErrHashing, errHasherDown)
	}
	return h.PasswordHasher.Hash(secret)
}
