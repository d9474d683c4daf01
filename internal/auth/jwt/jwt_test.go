package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halolabs/memberd/internal/common/config"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:      "user-secret-key-0123456789abcdef0123",
		AdminSecretKey: "admin-secret-key-0123456789abcdef012",
		Duration:       config.Duration(time.Hour),
		AdminDuration:  config.Duration(time.Hour),
	}
}

func TestNewService_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = ""
	_, err := NewService(cfg)
	assert.ErrorIs(t, err, ErrEmptySecretKey)

	cfg = testConfig()
	cfg.AdminSecretKey = "short"
	_, err = NewService(cfg)
	assert.ErrorIs(t, err, ErrWeakSecretKey)

	cfg = testConfig()
	cfg.Duration = 0
	_, err = NewService(cfg)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestService_GenerateAndValidateUserToken(t *testing.T) {
	s, err := NewService(testConfig())
	require.NoError(t, err)

	tok, err := s.GenerateUserToken(42, "app_demo", "alice")
	require.NoError(t, err)

	claims, err := s.ValidateUserToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "app_demo", claims.AppID)
	assert.Equal(t, "alice", claims.Username)
}

func TestService_GenerateAndValidateAdminToken(t *testing.T) {
	s, err := NewService(testConfig())
	require.NoError(t, err)

	tok, err := s.GenerateAdminToken(1, "root", "admin")
	require.NoError(t, err)

	claims, err := s.ValidateAdminToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.AdminID)
	assert.Equal(t, "root", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestService_SecretsAreNotInterchangeable(t *testing.T) {
	s, err := NewService(testConfig())
	require.NoError(t, err)

	userTok, err := s.GenerateUserToken(7, "app_demo", "bob")
	require.NoError(t, err)

	claims, err := s.ValidateAdminToken(userTok)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ExpiredAndInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = config.Duration(time.Millisecond)
	s, err := NewService(cfg)
	require.NoError(t, err)

	tok, err := s.GenerateUserToken(1, "app_demo", "bob")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	claims, err := s.ValidateUserToken(tok)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrExpiredToken)

	claims, err = s.ValidateUserToken("not-a-token")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
