// Package security provides password hashing, reset codes, input validation
// and audit logging for local accounts.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// HashKeySize is the size of the derived password key in bytes.
	HashKeySize = 32
	// SaltSize is the size of the per-password salt.
	SaltSize = 16
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// ResetCodeDigits is the length of a password reset code.
	ResetCodeDigits = 6

	hashScheme = "pbkdf2-sha256"
)

// Hasher derives password hashes with a fixed iteration count. Stored
// hashes carry their own count, so lowering it only affects new hashes.
type Hasher struct {
	Iterations int
}

// DefaultHasher is the hasher used for production accounts.
var DefaultHasher = Hasher{Iterations: PBKDF2Iterations}

// Hash derives a salted PBKDF2 hash of password. The result encodes
// scheme, iteration count, salt and key so it can be verified later.
func (h Hasher) Hash(password string) (string, error) {
	iterations := h.Iterations
	if iterations <= 0 {
		iterations = PBKDF2Iterations
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return encodeHash(iterations, salt, deriveKey(password, salt, iterations)), nil
}

// HashPassword hashes password with DefaultHasher.
func HashPassword(password string) (string, error) {
	return DefaultHasher.Hash(password)
}

// VerifyPassword reports whether password matches encoded. Malformed hashes
// never match.
func VerifyPassword(encoded, password string) bool {
	iterations, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	attempt := deriveKey(password, salt, iterations)
	return subtle.ConstantTimeCompare(attempt, key) == 1
}

// VerifyLegacy compares a plaintext stored password in constant time.
func VerifyLegacy(stored, password string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// NewResetCode returns a uniformly random six digit code.
func NewResetCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", ResetCodeDigits, n.Int64()), nil
}

// CodesEqual compares two reset codes in constant time.
func CodesEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// deriveKey derives a key from a password using PBKDF2.
func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, HashKeySize, sha256.New)
}

func encodeHash(iterations int, salt, key []byte) string {
	return strings.Join([]string{
		hashScheme,
		strconv.Itoa(iterations),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$")
}

func decodeHash(encoded string) (int, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != hashScheme {
		return 0, nil, nil, fmt.Errorf("unknown hash format")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, fmt.Errorf("invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("decoding salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(key) != HashKeySize {
		return 0, nil, nil, fmt.Errorf("decoding key")
	}
	return iterations, salt, key, nil
}
