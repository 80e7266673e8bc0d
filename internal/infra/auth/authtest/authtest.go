// Package authtest provides RSA keys and tokens for handler tests.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra/auth"
)

const Issuer = "evco-auth-test"

type KeyPair struct {
	Private    *rsa.PrivateKey
	PublicPEM  []byte
	PrivatePEM []byte
}

// NewKeyPair generates a throwaway 2048-bit key.
func NewKeyPair(t testing.TB) *KeyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return &KeyPair{
		Private:    key,
		PublicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}),
		PrivatePEM: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
	}
}

// Validator verifies tokens signed by kp with Issuer.
func (kp *KeyPair) Validator() *auth.BaseValidator {
	return auth.NewBaseValidator(&kp.Private.PublicKey, Issuer)
}

// Bearer returns an Authorization header value for subject holding roles.
func (kp *KeyPair) Bearer(t testing.TB, subject string, roles ...domain.Role) string {
	t.Helper()

	token, err := auth.NewTokenIssuer(kp.Private, Issuer).Mint(subject, roles, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}
