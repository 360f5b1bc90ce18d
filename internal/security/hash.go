package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefixLength is how many leading characters of a presented key are used
// as the database lookup prefix. The full key is only ever compared by hash.
const KeyPrefixLength = 16

func HashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ConstantTimeEqual compares two strings without leaking the position of the
// first mismatch.
func ConstantTimeEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// KeyPrefix returns the lookup prefix of a presented key, or false when the
// key is too short to even carry one.
func KeyPrefix(raw string) (string, bool) {
	if len(raw) < KeyPrefixLength {
		return "", false
	}
	return raw[:KeyPrefixLength], true
}

// GenerateAPIKey mints a new raw key of the form nb_<env>_<random>. The
// caller persists only the hash and prefix; the raw value is shown once.
func GenerateAPIKey(environment string) (raw, prefix, hash string, err error) {
	env := strings.ToLower(strings.TrimSpace(environment))
	if env == "" {
		env = "live"
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate key material: %w", err)
	}
	raw = fmt.Sprintf("nb_%s_%s", env, base64.RawURLEncoding.EncodeToString(buf))
	prefix, ok := KeyPrefix(raw)
	if !ok {
		return "", "", "", fmt.Errorf("generated key shorter than prefix length")
	}
	return raw, prefix, HashAPIKey(raw), nil
}

// GenerateHMACSecret mints the shared secret for an HMAC credential. The
// secret goes to the vault; only the vault reference is persisted locally.
func GenerateHMACSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate hmac secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
