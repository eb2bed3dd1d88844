package firebase

import (
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecodedIdentity(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	t.Run("maps claims", func(t *testing.T) {
		token := &auth.Token{
			UID:      "uid_1",
			Subject:  "uid_1",
			IssuedAt: now.Add(-time.Minute).Unix(),
			Expires:  now.Add(time.Hour).Unix(),
			AuthTime: now.Add(-2 * time.Minute).Unix(),
			Claims: map[string]interface{}{
				"email":          "driver@fleetops.io",
				"email_verified": true,
				"admin":          true,
			},
		}

		identity, err := toDecodedIdentity(token)
		require.NoError(t, err)
		assert.Equal(t, "uid_1", identity.Subject)
		assert.Equal(t, "driver@fleetops.io", identity.Email)
		assert.True(t, identity.EmailVerified)
		assert.True(t, identity.IsAdmin)
		assert.Equal(t, now.Add(-time.Minute), identity.IssuedAt)
		assert.Equal(t, now.Add(time.Hour), identity.ExpiresAt)
		assert.Equal(t, now.Add(-2*time.Minute), identity.AuthTime)
	})

	t.Run("falls back to sub", func(t *testing.T) {
		identity, err := toDecodedIdentity(&auth.Token{Subject: "uid_2"})
		require.NoError(t, err)
		assert.Equal(t, "uid_2", identity.Subject)
	})

	t.Run("empty subject", func(t *testing.T) {
		_, err := toDecodedIdentity(&auth.Token{})
		assert.ErrorIs(t, err, ErrInvalidSubject)
	})

	t.Run("subject too long", func(t *testing.T) {
		_, err := toDecodedIdentity(&auth.Token{UID: strings.Repeat("u", maxSubjectLength+1)})
		assert.ErrorIs(t, err, ErrInvalidSubject)
	})

	t.Run("claims of the wrong type are ignored", func(t *testing.T) {
		identity, err := toDecodedIdentity(&auth.Token{
			UID:    "uid_3",
			Claims: map[string]interface{}{"admin": "yes", "email": 42},
		})
		require.NoError(t, err)
		assert.False(t, identity.IsAdmin)
		assert.Empty(t, identity.Email)
	})

	t.Run("optional timestamps absent", func(t *testing.T) {
		identity, err := toDecodedIdentity(&auth.Token{UID: "uid_4"})
		require.NoError(t, err)
		assert.True(t, identity.IssuedAt.IsZero())
		assert.True(t, identity.AuthTime.IsZero())
		assert.False(t, identity.EmailVerified)
	})
}
