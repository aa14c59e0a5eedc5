package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthClaims are the JWT claims for admin access.
type AuthClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AuthService handles JWT signing/verification and the admin password
// check. There is a single admin principal; its bcrypt hash comes from
// configuration, not a user store.
type AuthService struct {
	jwtSecret  []byte
	jwtExpiryH int
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret string, expiryHours int) *AuthService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &AuthService{
		jwtSecret:  []byte(jwtSecret),
		jwtExpiryH: expiryHours,
	}
}

// ExpiryHours returns the configured token lifetime.
func (s *AuthService) ExpiryHours() int {
	return s.jwtExpiryH
}

// CheckPassword verifies a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// SignToken creates a signed admin JWT.
func (s *AuthService) SignToken(role string) (string, error) {
	now := time.Now().UTC()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.jwtExpiryH) * time.Hour)),
			Issuer:    "sitechat",
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a JWT string, returning the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AuthClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("token missing role")
	}

	return claims, nil
}
