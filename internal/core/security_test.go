// AngelaMos | 2026
// security_test.go

package core_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := core.HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := core.VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = core.VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := core.HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ")
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	_, err := core.VerifyPassword("pw", "$argon2id$not-a-hash")
	assert.Error(t, err)
}

func TestLegacyBcryptIsRehashed(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, newHash, err := core.VerifyPasswordWithRehash("legacy-pass", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(newHash, "$argon2id$"))

	ok, newHash, err = core.VerifyPasswordWithRehash("nope", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, newHash)
}

func TestCurrentHashNeedsNoRehash(t *testing.T) {
	hash, err := core.HashPassword("pw-123456")
	require.NoError(t, err)

	ok, newHash, err := core.VerifyPasswordWithRehash("pw-123456", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	ok, _, err := core.VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	empty := ""
	ok, _, err = core.VerifyPasswordTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, ok)

	hash, err := core.HashPassword("s3cret-pass")
	require.NoError(t, err)
	ok, _, err = core.VerifyPasswordTimingSafe("s3cret-pass", &hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateNumericCode(t *testing.T) {
	for _, length := range []int{1, 6, 8, 18} {
		code, err := core.GenerateNumericCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		assert.Regexp(t, `^[0-9]+$`, code)
	}

	for _, length := range []int{0, -1, 19} {
		_, err := core.GenerateNumericCode(length)
		assert.Error(t, err, "length %d", length)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, core.ConstantTimeEqual("123456", "123456"))
	assert.False(t, core.ConstantTimeEqual("123456", "123457"))
	assert.False(t, core.ConstantTimeEqual("123456", "12345"))
}
