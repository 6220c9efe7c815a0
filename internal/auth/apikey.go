package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// APIKeyHasher derives the stored lookup hash for API keys. The hash is keyed
// with a server-side secret so a leaked database alone cannot be used to
// forge keys.
type APIKeyHasher struct {
	secret []byte
}

// NewAPIKeyHasher creates an APIKeyHasher with the given server secret.
func NewAPIKeyHasher(secret string) *APIKeyHasher {
	return &APIKeyHasher{secret: []byte(secret)}
}

// GenerateKey returns a new random API key and its stored hash. The raw key
// is shown to the caller once and never persisted.
func (h *APIKeyHasher) GenerateKey() (rawKey, keyHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	rawKey = "sk_" + hex.EncodeToString(buf)
	return rawKey, h.Hash(rawKey), nil
}

// Hash computes the stored hash for a raw key.
func (h *APIKeyHasher) Hash(rawKey string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}
