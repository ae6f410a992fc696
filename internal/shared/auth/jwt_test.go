package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIssuePairRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, time.Hour)

	pair, err := issuer.IssuePair("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := issuer.Verify(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, TypeAccess, claims.Type)

	claims, err = issuer.Verify(pair.RefreshToken, TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, time.Hour)
	pair, err := issuer.IssuePair("user-1")
	require.NoError(t, err)

	_, err = issuer.Verify(pair.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return past }
	pair, err := issuer.IssuePair("user-1")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	pair, err := NewIssuer("one", time.Minute, time.Hour).IssuePair("user-1")
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Minute, time.Hour).Verify(pair.AccessToken, TypeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestHasherUsesPepper(t *testing.T) {
	h := NewHasherWithCost("pepper", bcrypt.MinCost)
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.True(t, h.Compare(hash, "s3cret"))
	assert.False(t, h.Compare(hash, "other"))
	assert.False(t, NewHasher("other").Compare(hash, "s3cret"))

	long := strings.Repeat("x", 120)
	longHash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Compare(longHash, long))
	assert.False(t, h.Compare(longHash, long[:100]))

	_, err = h.Hash("")
	assert.Error(t, err)
}
