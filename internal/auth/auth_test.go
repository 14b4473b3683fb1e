package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345"

func TestHashPassword(t *testing.T) {
	t.Run("Successfully hash password", func(t *testing.T) {
		password := "mySecurePassword123"
		hashed, err := HashPassword(password)

		assert.NoError(t, err)
		assert.NotEmpty(t, hashed)
		assert.NotEqual(t, password, hashed)
	})

	t.Run("Different hashes for same password", func(t *testing.T) {
		password := "samePassword"
		hash1, _ := HashPassword(password)
		hash2, _ := HashPassword(password)

		assert.NotEqual(t, hash1, hash2)
	})
}

func TestCheckPassword(t *testing.T) {
	password := "correctPassword"
	hashed, _ := HashPassword(password)

	t.Run("Correct password", func(t *testing.T) {
		assert.True(t, CheckPassword(hashed, password))
	})

	t.Run("Incorrect password", func(t *testing.T) {
		assert.False(t, CheckPassword(hashed, "wrongPassword"))
	})

	t.Run("Empty password", func(t *testing.T) {
		assert.False(t, CheckPassword(hashed, ""))
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Run("Round trip access token", func(t *testing.T) {
		token, err := GenerateAccessToken(7, "reception@studio.test", RoleReception, testSecret)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := ValidateToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, 7, claims.UserID)
		assert.Equal(t, "reception@studio.test", claims.Email)
		assert.Equal(t, RoleReception, claims.Role)
		assert.Equal(t, "access", claims.TokenType)
	})

	t.Run("Empty secret rejected", func(t *testing.T) {
		_, err := GenerateAccessToken(1, "a@b.c", RoleClient, "")
		assert.ErrorIs(t, err, ErrEmptyJWTSecret)
	})

	t.Run("Wrong secret rejected", func(t *testing.T) {
		token, err := GenerateAccessToken(1, "a@b.c", RoleClient, testSecret)
		require.NoError(t, err)

		_, err = ValidateToken(token, "other-secret")
		assert.Error(t, err)
	})

	t.Run("Expired token rejected", func(t *testing.T) {
		claims := &JWTClaims{
			UserID:    1,
			Email:     "a@b.c",
			Role:      RoleClient,
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    jwtIssuer,
				Audience:  []string{jwtAudience},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ValidateToken(signed, testSecret)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("Refresh with valid refresh token", func(t *testing.T) {
		_, refreshToken, err := GenerateTokens(3, "client@studio.test", RoleClient, testSecret, testSecret)
		require.NoError(t, err)

		newAccess, claims, err := RefreshAccessToken(refreshToken, testSecret, testSecret)
		require.NoError(t, err)
		assert.NotEmpty(t, newAccess)
		assert.Equal(t, 3, claims.UserID)
	})

	t.Run("Access token rejected as refresh token", func(t *testing.T) {
		accessToken, err := GenerateAccessToken(3, "client@studio.test", RoleClient, testSecret)
		require.NoError(t, err)

		_, _, err = RefreshAccessToken(accessToken, testSecret, testSecret)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})
}
