package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/xela07ax/evco-audit/internal/domain"
)

type ValidatorTestSuite struct {
	suite.Suite

	key       *rsa.PrivateKey
	issuer    *TokenIssuer
	validator *BaseValidator
}

func (s *ValidatorTestSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.key = key
}

func (s *ValidatorTestSuite) SetupTest() {
	s.issuer = NewTokenIssuer(s.key, "evco-auth")
	s.validator = NewBaseValidator(&s.key.PublicKey, "evco-auth")
}

func (s *ValidatorTestSuite) TestRoundTrip() {
	token, err := s.issuer.Mint("user-7", []domain.Role{domain.RoleStaff, domain.RoleAdmin}, time.Minute)
	s.Require().NoError(err)

	for _, header := range []string{token, "Bearer " + token, "bearer  " + token} {
		claims, err := s.validator.VerifyToken(header)
		s.Require().NoError(err)
		s.Equal("user-7", claims.Subject)
		s.Equal("user-7", claims.UserID)
		s.Equal("STAFF", claims.Role)
		s.Equal([]string{"STAFF", "ADMIN"}, claims.Roles)
	}
}

func (s *ValidatorTestSuite) TestMissingToken() {
	for _, header := range []string{"", "   "} {
		_, err := s.validator.VerifyToken(header)
		s.ErrorIs(err, ErrMissingToken)
	}
}

func (s *ValidatorTestSuite) TestExpired() {
	s.issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := s.issuer.Mint("user-7", []domain.Role{domain.RoleStaff}, time.Hour)
	s.Require().NoError(err)

	_, err = s.validator.VerifyToken(token)
	s.ErrorIs(err, ErrInvalidToken)
	s.ErrorIs(err, jwt.ErrTokenExpired)
}

func (s *ValidatorTestSuite) TestWrongIssuer() {
	token, err := NewTokenIssuer(s.key, "someone-else").Mint("user-7", nil, time.Minute)
	s.Require().NoError(err)

	_, err = s.validator.VerifyToken(token)
	s.ErrorIs(err, ErrInvalidToken)
	s.ErrorIs(err, jwt.ErrTokenInvalidIssuer)
}

func (s *ValidatorTestSuite) TestEmptyIssuerSkipsCheck() {
	token, err := NewTokenIssuer(s.key, "someone-else").Mint("user-7", nil, time.Minute)
	s.Require().NoError(err)

	_, err = NewBaseValidator(&s.key.PublicKey, "").VerifyToken(token)
	s.NoError(err)
}

func (s *ValidatorTestSuite) TestForeignKey() {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	token, err := NewTokenIssuer(other, "evco-auth").Mint("user-7", nil, time.Minute)
	s.Require().NoError(err)

	_, err = s.validator.VerifyToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ValidatorTestSuite) TestHMACRejected() {
	claims := &domain.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "evco-auth",
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	s.Require().NoError(err)

	_, err = s.validator.VerifyToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ValidatorTestSuite) TestNoExpiry() {
	claims := &domain.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "evco-auth", Subject: "user-7"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	s.Require().NoError(err)

	_, err = s.validator.VerifyToken(token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ValidatorTestSuite) TestGarbage() {
	_, err := s.validator.VerifyToken("Bearer not.a.jwt")
	s.True(errors.Is(err, ErrInvalidToken))
}

func TestValidatorTestSuite(t *testing.T) {
	suite.Run(t, new(ValidatorTestSuite))
}

func TestMintRejectsBadInput(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issuer := NewTokenIssuer(key, "")

	_, err = issuer.Mint("", nil, time.Minute)
	assert.Error(t, err)

	_, err = issuer.Mint("user-7", nil, 0)
	assert.Error(t, err)
}

func TestParseRSAKeys(t *testing.T) {
	_, err := ParseRSAPublicKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPublicKey([]byte("not pem"))
	assert.Error(t, err)

	_, err = ParseRSAPrivateKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPrivateKey([]byte("not pem"))
	assert.Error(t, err)
}
