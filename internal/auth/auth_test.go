package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue(42, time.Now())
	require.NoError(t, err)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenIssuer_ExpiredTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue(42, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
}

func TestTokenIssuer_WrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	other := NewTokenIssuer("different", time.Hour)

	token, err := issuer.Issue(42, time.Now())
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestTokenIssuer_GarbageRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	_, err := issuer.Verify("not-a-token")
	require.Error(t, err)
}

func TestAPIKeyHasher_GenerateAndHash(t *testing.T) {
	hasher := NewAPIKeyHasher("secret")

	raw, hash, err := hasher.GenerateKey()
	require.NoError(t, err)
	assert.Contains(t, raw, "sk_")
	assert.NotEqual(t, raw, hash)
	assert.Equal(t, hash, hasher.Hash(raw), "hash must be deterministic")

	raw2, hash2, err := hasher.GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
	assert.NotEqual(t, hash, hash2)
}

func TestAPIKeyHasher_SecretChangesHash(t *testing.T) {
	a := NewAPIKeyHasher("secret-a")
	b := NewAPIKeyHasher("secret-b")

	assert.NotEqual(t, a.Hash("sk_same"), b.Hash("sk_same"))
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
