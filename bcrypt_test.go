package accounts_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-accounts"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher := fastHasher()

	tests := []struct {
		name   string
		secret string
	}{
		{name: "simple", secret: "securePassword123!"},
		{name: "unicode", secret: "pässwörd-日本"},
		{name: "max length", secret: strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.secret)
			require.NoError(t, err)

			assert.NotEqual(t, tt.secret, hash)
			assert.True(t, strings.HasPrefix(hash, "$2"))
			assert.True(t, hasher.Verify(tt.secret, hash))
			assert.False(t, hasher.Verify(tt.secret+"x", hash))
		})
	}
}

func TestBcryptHasher_EmptySecret(t *testing.T) {
	_, err := fastHasher().Hash("")
	assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
}

func TestBcryptHasher_TooLong(t *testing.T) {
	_, err := fastHasher().Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, accounts.ErrHashing)
}

func TestBcryptHasher_VerifyRejectsOverlongSecret(t *testing.T) {
	hasher := fastHasher()
	secret := strings.Repeat("s", 72)

	hash, err := hasher.Hash(secret)
	require.NoError(t, err)

	// bcrypt alone only reads the first 72 bytes
	for _, candidate := range []string{secret + "x", secret + strings.Repeat("y", 20)} {
		assert.False(t, hasher.Verify(candidate, hash))
		assert.ErrorIs(t, accounts.ComparePasswordAndHash(candidate, hash), accounts.ErrMismatchedHashAndPassword)
	}
	assert.True(t, hasher.Verify(secret, hash))
}

func TestBcryptHasher_SaltedHashes(t *testing.T) {
	hasher := fastHasher()

	first, err := hasher.Hash("same-secret")
	require.NoError(t, err)
	second, err := hasher.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("same-secret", first))
	assert.True(t, hasher.Verify("same-secret", second))
}

func TestBcryptHasher_VerifyMalformedHash(t *testing.T) {
	hasher := fastHasher()

	assert.False(t, hasher.Verify("secret", ""))
	assert.False(t, hasher.Verify("secret", "not-a-bcrypt-hash"))
	assert.False(t, hasher.Verify("", "$2a$04$invalid"))
}

func TestBcryptHasher_Cost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, fastHasher().Cost())

	// out of range costs are ignored
	h := accounts.NewBcryptHasher(accounts.WithHashCost(bcrypt.MaxCost + 1))
	assert.NotEqual(t, bcrypt.MaxCost+1, h.Cost())

	hash, err := fastHasher().Hash("cost-check")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := fastHasher().Hash("testPassword123!")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{name: "match", password: "testPassword123!", hash: hash},
		{name: "mismatch", password: "wrong", hash: hash, wantErr: accounts.ErrMismatchedHashAndPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.ComparePasswordAndHash(tt.password, tt.hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Error(t, accounts.ComparePasswordAndHash("x", "garbage"))
}
