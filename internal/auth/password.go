package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	apperrors "github.com/hearthforge/backend/internal/errors"
)

// Argon2Params configures the Argon2id KDF used for password hashing.
type Argon2Params struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// DefaultArgon2Params mirrors the defaults in config.defaultConfig's
// Auth section; callers normally build Argon2Params from config instead.
var DefaultArgon2Params = Argon2Params{
	Time:        1,
	MemoryKiB:   64 * 1024,
	Parallelism: 4,
	KeyLength:   32,
	SaltLength:  16,
}

// HashPassword derives an Argon2id hash from password with a fresh random
// salt and encodes it PHC-string style so the parameters travel with the
// hash and can change over time without invalidating old rows.
func HashPassword(password string, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", apperrors.Wrap(apperrors.CodeCrypto, "generate password salt", err)
	}
	hash := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks password against an encoded hash produced by
// HashPassword in constant time, so it never leaks whether the salt/hash
// comparison failed early versus late.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, apperrors.New(apperrors.CodeCrypto, "unrecognized password hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, apperrors.Wrap(apperrors.CodeCrypto, "parse password hash version", err)
	}

	var memoryKiB, timeCost uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &timeCost, &parallelism); err != nil {
		return false, apperrors.Wrap(apperrors.CodeCrypto, "parse password hash params", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeCrypto, "decode password salt", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeCrypto, "decode password hash", err)
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memoryKiB, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// PasswordScore estimates password strength on a 0-4 scale, the same range
// zxcvbn reports, using the username/email as a context dictionary the way
// create_account does: a password that contains the account's own username
// or email local-part is penalized heavily since it gives an attacker a
// trivial guess.
func PasswordScore(password, username, email string) int {
	length := len(password)
	classes := charClassCount(password)

	score := 0
	switch {
	case length >= 16 && classes >= 3:
		score = 4
	case length >= 12 && classes >= 3:
		score = 3
	case length >= 10 && classes >= 2:
		score = 2
	case length >= 8:
		score = 1
	}

	lower := strings.ToLower(password)
	if username != "" && strings.Contains(lower, strings.ToLower(username)) {
		score -= 2
	}
	if email != "" {
		local := email
		if i := strings.IndexByte(email, '@'); i > 0 {
			local = email[:i]
		}
		if strings.Contains(lower, strings.ToLower(local)) {
			score -= 2
		}
	}
	if isCommonPassword(lower) {
		score = 0
	}

	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}
	return score
}

func charClassCount(password string) int {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	count := 0
	for _, b := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if b {
			count++
		}
	}
	return count
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "12345678": {}, "123456789": {},
	"qwertyui": {}, "letmein1": {}, "iloveyou": {}, "admin1234": {},
}

func isCommonPassword(lower string) bool {
	_, ok := commonPasswords[lower]
	return ok
}
