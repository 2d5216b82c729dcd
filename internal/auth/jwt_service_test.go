package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack/internal/model"
)

func TestJWTService_AccessToken(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)

	token, err := svc.GenerateAccessToken("user-1", model.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, KindAccess, claims.Kind)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(AccessTokenExpiry), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTService_RefreshTokenHasNoExpiryByDefault(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)

	tokenID, token, err := svc.GenerateRefreshToken("user-1", model.RoleUser)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, claims.ID)
	assert.Nil(t, claims.ExpiresAt)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestJWTService_RefreshTokenWithTTL(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", time.Hour)

	_, token, err := svc.GenerateRefreshToken("user-1", model.RoleUser)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTService_RejectsExpiredAccessToken(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)
	svc.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	token, err := svc.GenerateAccessToken("user-1", model.RoleUser)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsWrongKind(t *testing.T) {
	// Same secret on both sides so only the kind claim tells them apart.
	svc := NewJWTService("shared", "shared", 0)

	access, err := svc.GenerateAccessToken("user-1", model.RoleUser)
	require.NoError(t, err)
	_, refresh, err := svc.GenerateRefreshToken("user-1", model.RoleUser)
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)
	other := NewJWTService("other-secret", "other-refresh", 0)

	token, err := other.GenerateAccessToken("user-1", model.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateAccessToken("not.valid.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1", Role: model.RoleAdmin, Kind: KindAccess})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RefreshTokenWithoutID(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", 0)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "user-1", Role: model.RoleUser, Kind: KindRefresh})
	token, err := tok.SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrMissingTokenID)
}
