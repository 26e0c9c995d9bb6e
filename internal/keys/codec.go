// Package keys generates and verifies SpectraQuiz API key strings.
//
// A key looks like sq_live_h1X9... : an environment-tagged prefix followed by
// 32 URL-safe random characters, 40 characters total. Only the SHA-256 hash
// of the full key is ever persisted; the 12-character display prefix is kept
// for human identification in the admin console.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
)

const (
	EnvLive = "live"
	EnvTest = "test"

	// 24 random bytes encode to exactly 32 base64url characters.
	randomBytes = 24

	prefixLen = 12
)

var keyPattern = regexp.MustCompile(`^sq_(live|test)_[A-Za-z0-9_-]{32}$`)

// Generate produces a new plaintext API key for the given environment
// ("live" or "test"). The plaintext is only visible at creation time.
func Generate(environment string) (string, error) {
	if environment != EnvLive && environment != EnvTest {
		return "", fmt.Errorf("unknown key environment %q", environment)
	}

	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	return "sq_" + environment + "_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash derives the lookup hash stored and compared in place of the plaintext.
// SHA-256, lowercase hex.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the first 12 characters of the key for display purposes.
func Prefix(plaintext string) string {
	if len(plaintext) < prefixLen {
		return plaintext
	}
	return plaintext[:prefixLen]
}

// IsValidFormat reports whether candidate has the exact shape of an issued
// key. Anything else - wrong prefix, wrong length, disallowed characters -
// is rejected before any datastore access.
func IsValidFormat(candidate string) bool {
	return keyPattern.MatchString(candidate)
}
