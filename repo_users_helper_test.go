package accounts_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-accounts"
)

// newTestDB returns a migrated in-memory SQLite database private to the test
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := accounts.OpenDatabase(accounts.DialectSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, accounts.RunMigrations(db.DB, accounts.DialectSQLite))

	return db
}

func fastHasher() *accounts.BcryptHasher {
	return accounts.NewBcryptHasher(accounts.WithHashCost(bcrypt.MinCost))
}

// seedUser stores a user with password secret and returns it
func seedUser(t *testing.T, users accounts.Users, email, secret string, role accounts.Role) *accounts.User {
	t.Helper()

	hash, err := fastHasher().Hash(secret)
	require.NoError(t, err)

	user, err := users.Insert(context.Background(), &accounts.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    "First-" + email[:1],
		LastName:     "Last",
		City:         "Springfield",
		PostalCode:   "12345",
	})
	require.NoError(t, err)

	return user
}

func countUsers(t *testing.T, db *bun.DB, email string) int {
	t.Helper()

	n, err := db.NewSelect().
		Model((*accounts.User)(nil)).
		Where("email = ?", email).
		Count(context.Background())
	require.NoError(t, err)

	return n
}
