package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/penstand/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() identity.TokenService {
	return identity.NewTokenService(
		[]byte("test-signing-key"),
		24,
		"test-issuer",
		jwt.ClaimStrings{"test:audience"},
		nil,
	)
}

func TestTokenServiceGenerate(t *testing.T) {
	service := newTestTokenService()

	id := TestIdentity{
		id:       uuid.New().String(),
		username: "writer",
		email:    "writer@example.com",
		role:     "author",
	}

	token, err := service.Generate(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := jwt.ParseWithClaims(token, &identity.JWTClaims{}, func(t *jwt.Token) (any, error) {
		return []byte("test-signing-key"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(*identity.JWTClaims)
	require.True(t, ok)

	assert.Equal(t, id.ID(), claims.Subject())
	assert.Equal(t, id.ID(), claims.UserID())
	assert.Equal(t, "author", claims.Role())
	assert.Equal(t, "test-issuer", claims.RegisteredClaims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"test:audience"}, claims.RegisteredClaims.Audience)
	assert.NotEmpty(t, claims.RegisteredClaims.ID, "every token carries a jti")

	// expiry sits the configured number of hours past issuance
	issued := claims.IssuedAt()
	expires := claims.Expires()
	assert.WithinDuration(t, issued.Add(24*time.Hour), expires, time.Second)
}

func TestTokenServiceGenerateUniqueTokens(t *testing.T) {
	service := newTestTokenService()

	id := TestIdentity{id: uuid.New().String(), role: "reader"}

	first, err := service.Generate(id)
	require.NoError(t, err)

	second, err := service.Generate(id)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "token reissue always mints a fresh token")
}

func TestTokenServiceValidate(t *testing.T) {
	service := newTestTokenService()

	id := TestIdentity{
		id:   uuid.New().String(),
		role: "reader",
	}

	token, err := service.Generate(id)
	require.NoError(t, err)

	t.Run("Round trip", func(t *testing.T) {
		claims, err := service.Validate(token)

		require.NoError(t, err)
		assert.Equal(t, id.ID(), claims.UserID())
		assert.Equal(t, "reader", claims.Role())
		assert.True(t, claims.CanComment())
		assert.False(t, claims.CanPublish())
	})

	t.Run("Tampered token", func(t *testing.T) {
		claims, err := service.Validate(token + "x")

		assert.ErrorIs(t, err, identity.ErrSignatureInvalid)
		assert.Nil(t, claims)
	})

	t.Run("Wrong signing key", func(t *testing.T) {
		other := identity.NewTokenService(
			[]byte("another-key"),
			24,
			"test-issuer",
			jwt.ClaimStrings{"test:audience"},
			nil,
		)

		foreign, err := other.Generate(id)
		require.NoError(t, err)

		claims, err := service.Validate(foreign)
		assert.ErrorIs(t, err, identity.ErrSignatureInvalid)
		assert.Nil(t, claims)
	})

	t.Run("Expired token", func(t *testing.T) {
		now := time.Now()
		expired := &identity.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id.ID(),
				Issuer:    "test-issuer",
				Audience:  jwt.ClaimStrings{"test:audience"},
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
			UID:      id.ID(),
			UserRole: "reader",
		}

		signed, err := service.SignClaims(expired)
		require.NoError(t, err)

		claims, err := service.Validate(signed)
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
		assert.Nil(t, claims)
	})

	t.Run("Malformed token", func(t *testing.T) {
		claims, err := service.Validate("definitely.not.a.token")

		assert.Error(t, err)
		assert.True(t, identity.IsMalformedError(err))
		assert.Nil(t, claims)
	})

	t.Run("Wrong issuer rejected", func(t *testing.T) {
		other := identity.NewTokenService(
			[]byte("test-signing-key"),
			24,
			"other-issuer",
			jwt.ClaimStrings{"test:audience"},
			nil,
		)

		foreign, err := other.Generate(id)
		require.NoError(t, err)

		claims, err := service.Validate(foreign)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}

func TestTokenServiceSignClaimsNil(t *testing.T) {
	service := newTestTokenService()

	token, err := service.SignClaims(nil)
	assert.Error(t, err)
	assert.Empty(t, token)
}

func TestMintToken(t *testing.T) {
	service := newTestTokenService()

	id := TestIdentity{id: uuid.New().String(), role: "author"}

	t.Run("Uses service defaults", func(t *testing.T) {
		token, expiresAt, err := identity.MintToken(service, id, identity.MintTokenOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := service.Validate(token)
		require.NoError(t, err)

		assert.Equal(t, id.ID(), claims.UserID())
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)
	})

	t.Run("TTL override", func(t *testing.T) {
		issuedAt := time.Now()
		_, expiresAt, err := identity.MintToken(service, id, identity.MintTokenOptions{
			TTL:      30 * time.Minute,
			IssuedAt: issuedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, issuedAt.Add(30*time.Minute), expiresAt)
	})

	t.Run("Negative TTL rejected", func(t *testing.T) {
		_, _, err := identity.MintToken(service, id, identity.MintTokenOptions{TTL: -time.Hour})
		assert.Error(t, err)
	})

	t.Run("Nil identity rejected", func(t *testing.T) {
		_, _, err := identity.MintToken(service, nil, identity.MintTokenOptions{})
		assert.Error(t, err)
	})
}
