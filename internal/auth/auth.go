// Package auth validates API keys against the SHA-256 hashes listed in the
// configuration.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/tjfontaine/harassment-moderator/internal/config"
)

var (
	ErrMissingKey = errors.New("missing Authorization header")
	ErrBadScheme  = errors.New("unsupported authorization scheme")
	ErrInvalidKey = errors.New("invalid API key")
)

// KeyPrefix starts every generated key.
const KeyPrefix = "hm-"

// Authenticator checks presented keys against configured hashes.
type Authenticator struct {
	keys []config.APIKeyConfig
}

// NewAuthenticator returns nil when cfg lists no keys, leaving the API open.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	if len(cfg.APIKeys) == 0 {
		return nil
	}
	keys := make([]config.APIKeyConfig, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		k.KeyHash = strings.ToLower(strings.TrimSpace(k.KeyHash))
		keys[i] = k
	}
	return &Authenticator{keys: keys}
}

// ValidateAPIKey returns the description of the matching key. Every
// configured hash is compared in constant time.
func (a *Authenticator) ValidateAPIKey(apiKey string) (string, error) {
	hash := []byte(HashAPIKey(apiKey))
	match := -1
	for i, k := range a.keys {
		if subtle.ConstantTimeCompare(hash, []byte(k.KeyHash)) == 1 {
			match = i
		}
	}
	if match < 0 {
		return "", ErrInvalidKey
	}
	return a.keys[match].Description, nil
}

// ExtractAPIKey reads a "Bearer <key>" Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingKey
	}
	scheme, key, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrBadScheme
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissingKey
	}
	return key, nil
}

// HashAPIKey returns the hex SHA-256 of apiKey, the form stored in config.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GenerateAPIKey returns a random key with KeyPrefix.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}
