// Package auth exchanges widget API keys for short-lived session tokens and
// guards the session endpoints with them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/luneo/canvas-engine/internal/typeid"
)

var (
	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrInvalidToken  = errors.New("invalid session token")
)

const bcryptCost = 12

// Claims identify a widget session.
type Claims struct {
	PublicKey string `json:"key"`
	ProductID string `json:"product,omitempty"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	keys      map[string][]byte
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewService takes the widget keys as public key to bcrypt hash of the secret.
func NewService(keys map[string]string, jwtSecret string, ttl time.Duration) *Service {
	hashed := make(map[string][]byte, len(keys))
	for k, h := range keys {
		hashed[k] = []byte(h)
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{keys: hashed, jwtSecret: []byte(jwtSecret), ttl: ttl, now: time.Now}
}

// HashSecret hashes a widget key secret for WIDGET_API_KEYS.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// CreateSession checks an API key of the form publicKey.secret and issues a
// session token scoped to the product.
func (s *Service) CreateSession(_ context.Context, apiKey, productID string) (*Session, error) {
	publicKey, secret, ok := strings.Cut(apiKey, ".")
	if !ok || secret == "" {
		return nil, ErrInvalidAPIKey
	}
	hash, ok := s.keys[publicKey]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	sessionID := typeid.NewSessionID()
	now := s.now()
	expires := now.Add(s.ttl)
	token, err := s.issueToken(Claims{
		PublicKey: publicKey,
		ProductID: productID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, SessionID: sessionID, ExpiresAt: expires}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *Service) issueToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
