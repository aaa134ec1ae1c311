package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/cloo-solutions/otter/internal/domain"
)

// StaticKeyAuthenticator resolves API keys from a fixed key -> principal
// table. Only key hashes are kept in memory.
type StaticKeyAuthenticator struct {
	principals map[string]string
}

// NewStaticKeyAuthenticator builds an authenticator from key -> principal
// pairs. Entries with an empty key or principal are ignored.
func NewStaticKeyAuthenticator(keys map[string]string) *StaticKeyAuthenticator {
	principals := make(map[string]string, len(keys))
	for key, principal := range keys {
		key, principal = strings.TrimSpace(key), strings.TrimSpace(principal)
		if key == "" || principal == "" {
			continue
		}
		principals[hashAPIKey(key)] = principal
	}
	return &StaticKeyAuthenticator{principals: principals}
}

// ValidateAPIKey returns the principal owning token.
func (a *StaticKeyAuthenticator) ValidateAPIKey(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrInvalidAPIKey
	}
	hash := hashAPIKey(token)
	for h, principal := range a.principals {
		if subtle.ConstantTimeCompare([]byte(h), []byte(hash)) == 1 {
			return principal, nil
		}
	}
	return "", domain.ErrInvalidAPIKey
}

// Len reports how many keys are configured.
func (a *StaticKeyAuthenticator) Len() int {
	return len(a.principals)
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
