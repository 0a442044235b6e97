// Package auth issues and validates participant tokens. A token's subject
// is the participant id that rating submissions are recorded under.
package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"notes-ledger/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoSigningKey = errors.New("no signing key configured")
)

// ParticipantClaims represents the claims in a participant token
type ParticipantClaims struct {
	jwt.RegisteredClaims
}

// ParticipantID returns the participant the token was issued to
func (c *ParticipantClaims) ParticipantID() string {
	return c.Subject
}

// Service handles participant token operations
type Service struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewService creates a token service from the configured PEM key. Without a
// key an ephemeral one is generated, so tokens do not survive a restart.
func NewService(cfg *config.AuthConfig) (*Service, error) {
	privateKey, err := ParsePrivateKey(cfg.Secret)
	if errors.Is(err, ErrNoSigningKey) {
		slog.Warn("JWT_SECRET not set, using an ephemeral signing key")
		privateKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	return &Service{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     cfg.Issuer,
		expiration: cfg.Expiration,
		now:        time.Now,
	}, nil
}

// GenerateToken issues a token for a participant. A non-positive ttl uses
// the configured expiration.
func (s *Service) GenerateToken(participantID string, ttl time.Duration) (string, error) {
	if participantID == "" {
		return "", fmt.Errorf("participant id is required")
	}
	if ttl <= 0 {
		ttl = s.expiration
	}

	now := s.now()
	claims := ParticipantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   participantID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a participant token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*ParticipantClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParsePrivateKey decodes a PEM-encoded EC private key
func ParsePrivateKey(secret string) (*ecdsa.PrivateKey, error) {
	if secret == "" {
		return nil, ErrNoSigningKey
	}
	block, _ := pem.Decode([]byte(secret))
	if block == nil {
		return nil, fmt.Errorf("JWT_SECRET is not PEM encoded")
	}
	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	return privateKey, nil
}

// GenerateKeyPEM creates a new P-256 private key suitable for JWT_SECRET
func GenerateKeyPEM() (string, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}
