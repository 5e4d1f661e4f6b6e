package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Gotham#2024")
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "Gotham#2024"))
	assert.Error(t, ComparePassword(hash, "gotham#2024"))
	assert.False(t, NeedsRehash(hash))
}

func TestHashPasswordRejectsLongInput(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNeedsRehashOnCostChange(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("Gotham#2024"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, NeedsRehash(weak))
	assert.True(t, NeedsRehash([]byte("not-a-hash")))
}

func TestSealerRoundTrip(t *testing.T) {
	sealer := NewSealer("secret", "file-link")
	token, err := sealer.Seal([]byte(`{"k":"avatars/a.png","e":1700000000}`))
	require.NoError(t, err)
	assert.NotContains(t, token, "=")

	plain, err := sealer.Open(token)
	require.NoError(t, err)
	assert.Equal(t, `{"k":"avatars/a.png","e":1700000000}`, string(plain))
}

func TestSealerRejectsForeignValues(t *testing.T) {
	sealer := NewSealer("secret", "file-link")
	token, err := sealer.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = NewSealer("other", "file-link").Open(token)
	assert.ErrorIs(t, err, ErrSealed)

	_, err = NewSealer("secret", "password-reset").Open(token)
	assert.ErrorIs(t, err, ErrSealed)

	_, err = sealer.Open("short")
	assert.ErrorIs(t, err, ErrSealed)

	_, err = sealer.Open("!!not base64!!")
	assert.ErrorIs(t, err, ErrSealed)

	_, err = Sealer{}.Seal([]byte("x"))
	assert.Error(t, err)
}

func TestRandomTokenAndHash(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
}
