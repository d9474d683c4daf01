package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/halolabs/memberd/internal/common/config"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidAlgorithm = errors.New("invalid signing algorithm")
	ErrEmptySecretKey   = errors.New("secret key cannot be empty")
	ErrWeakSecretKey    = errors.New("secret key must be at least 32 characters")
	ErrInvalidDuration  = errors.New("duration must be positive")
)

// Claims represents an end-user token. AppID pins the token to the
// tenant it was issued for.
type Claims struct {
	UserID   uint   `json:"user_id"`
	AppID    string `json:"app_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AdminClaims represents an operator token for the admin surface.
// Admin tokens are signed with a separate secret, so a user token can
// never pass admin validation.
type AdminClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates user and admin tokens.
type Service struct {
	config config.JWTConfig
}

// NewService creates a new JWT service
func NewService(cfg config.JWTConfig) (*Service, error) {
	for _, secret := range []string{cfg.SecretKey, cfg.AdminSecretKey} {
		if secret == "" {
			return nil, ErrEmptySecretKey
		}
		if len(secret) < 32 {
			return nil, ErrWeakSecretKey
		}
	}
	if cfg.Duration <= 0 || cfg.AdminDuration <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Service{config: cfg}, nil
}

func sign(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func registered(duration time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func parse(tokenString string, claims jwt.Claims, secret string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAlgorithm
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	return token, nil
}

// GenerateUserToken issues a token for an end user of the given app.
func (s *Service) GenerateUserToken(userID uint, appID, username string) (string, error) {
	return sign(&Claims{
		UserID:           userID,
		AppID:            appID,
		Username:         username,
		RegisteredClaims: registered(s.config.Duration.Std()),
	}, s.config.SecretKey)
}

// ValidateUserToken validates an end-user token
func (s *Service) ValidateUserToken(tokenString string) (*Claims, error) {
	token, err := parse(tokenString, &Claims{}, s.config.SecretKey)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GenerateAdminToken issues a token for an operator.
func (s *Service) GenerateAdminToken(adminID uint, username, role string) (string, error) {
	return sign(&AdminClaims{
		AdminID:          adminID,
		Username:         username,
		Role:             role,
		RegisteredClaims: registered(s.config.AdminDuration.Std()),
	}, s.config.AdminSecretKey)
}

// ValidateAdminToken validates an operator token
func (s *Service) ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	token, err := parse(tokenString, &AdminClaims{}, s.config.AdminSecretKey)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
