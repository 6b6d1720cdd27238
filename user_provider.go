package accounts

import (
	"context"
	"errors"
	"sync"
)

// UserFinder is a store we can use to retrieve users
type UserFinder interface {
	FindByIdentity(ctx context.Context, identity string) (*User, error)
}

// UserProvider verifies identities against stored credentials
type UserProvider struct {
	store  UserFinder
	hasher PasswordHasher
	logger Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserFinder, hasher PasswordHasher) *UserProvider {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	return &UserProvider{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// VerifyIdentity will find the user, compare to the password, and return
// the user. Unknown identities and wrong passwords both return
// ErrInvalidCredentials.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*User, error) {
	identity := NormalizeIdentity(identifier)
	if !isEmail(identity) || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.store.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// spend the same bcrypt time as a real comparison
			u.hasher.Verify(password, u.timingHash())
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("VerifyIdentity failed to retrieve user", "identity", identity, "error", err)
		return nil, err
	}

	if !u.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.Role.IsValid() {
		u.logger.Error("VerifyIdentity user has an unknown role", "identity", identity, "role", user.Role)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (u *UserProvider) timingHash() string {
	u.dummyOnce.Do(func() {
		if h, err := u.hasher.Hash("timing-equalizer"); err == nil {
			u.dummyHash = h
		}
	})
	return u.dummyHash
}
