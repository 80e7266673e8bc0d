package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/evco-audit/internal/domain"
)

// TokenIssuer signs RS256 tokens in the same shape the platform's auth
// service issues. Used for local testing and smoke checks.
type TokenIssuer struct {
	privateKey *rsa.PrivateKey
	issuer     string
	now        func() time.Time
}

func NewTokenIssuer(privateKey *rsa.PrivateKey, issuer string) *TokenIssuer {
	return &TokenIssuer{privateKey: privateKey, issuer: issuer, now: time.Now}
}

// Mint returns a signed token for subject holding roles, valid for ttl.
func (i *TokenIssuer) Mint(subject string, roles []domain.Role, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := i.now()
	claims := &domain.CustomClaims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	for _, r := range roles {
		claims.Roles = append(claims.Roles, string(r))
	}
	if len(roles) > 0 {
		claims.Role = string(roles[0])
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
