package security

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastHasher = Hasher{Iterations: 1000}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := fastHasher.Hash("hunter22")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "pbkdf2-sha256$1000$"))
	assert.NotContains(t, hash, "hunter22")
	assert.True(t, VerifyPassword(hash, "hunter22"))
	assert.False(t, VerifyPassword(hash, "hunter23"))
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := fastHasher.Hash("same-password")
	require.NoError(t, err)
	b, err := fastHasher.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, encoded := range []string{"", "plain", "pbkdf2-sha256$x$a$b", "md5$1$a$b", "pbkdf2-sha256$10$!!$!!"} {
		assert.False(t, VerifyPassword(encoded, "anything"), encoded)
	}
}

func TestVerifyLegacy(t *testing.T) {
	assert.True(t, VerifyLegacy("secret1", "secret1"))
	assert.False(t, VerifyLegacy("secret1", "secret2"))
	assert.False(t, VerifyLegacy("", ""))
}

func TestNewResetCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewResetCode()
		require.NoError(t, err)
		assert.NoError(t, ValidateResetCode(code))
	}
}

func TestCodesEqual(t *testing.T) {
	assert.True(t, CodesEqual("012345", "012345"))
	assert.False(t, CodesEqual("012345", "012346"))
	assert.False(t, CodesEqual("", ""))
}

// Property: a hash verifies the password it was derived from and no other.
func TestProperty_HashVerifiesOnlyOriginal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("hash verifies original password", prop.ForAll(
		func(password, other string) bool {
			hash, err := fastHasher.Hash(password)
			if err != nil {
				return false
			}
			if !VerifyPassword(hash, password) {
				return false
			}
			return password == other || !VerifyPassword(hash, other)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
