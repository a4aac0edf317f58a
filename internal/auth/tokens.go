package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// PATPrefix is prepended to every issued personal access token.
const PATPrefix = "mrp_"

// randomToken returns a URL-safe, unpadded base64-encoded random string of
// the given raw byte length, used for session tokens and flow tokens. Both
// are opaque bearer values; neither encodes any server state.
func randomToken(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Wrap(apperrors.CodeCrypto, "generate random token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewSessionToken mints a fresh opaque session bearer token.
func NewSessionToken() (string, error) {
	return randomToken(32)
}

// NewFlowToken mints a fresh opaque flow token key.
func NewFlowToken() (string, error) {
	return randomToken(24)
}

// NewPAT mints a new personal access token, returning both the bearer value
// shown to the user exactly once and the hash persisted in its place. The
// body after PATPrefix is 43 random base62 characters.
func NewPAT() (token, hash string, err error) {
	body, err := randomBase62(43)
	if err != nil {
		return "", "", err
	}
	token = PATPrefix + body
	return token, HashToken(token), nil
}

// HashToken returns the SHA-256 hex digest of a bearer token for storage
// lookups; tokens are never stored or logged in cleartext.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
