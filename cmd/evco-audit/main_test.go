package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra/auth/authtest"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	kp := authtest.NewKeyPair(t)
	t.Setenv("AUTH_PRIVATE_KEY_DATA", string(kp.PrivatePEM))
	t.Setenv("AUTH_ISSUER", authtest.Issuer)

	out, err := runRoot(t, "token", "--subject", "tech-9", "--role", "technician,staff")
	require.NoError(t, err)

	claims, err := kp.Validator().VerifyToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "tech-9", claims.Subject)
	assert.Equal(t, string(domain.RoleTechnician), claims.Role)
	assert.Equal(t, []string{"TECHNICIAN", "STAFF"}, claims.Roles)
}

func TestTokenCommandWithoutKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_PRIVATE_KEY_DATA", "")

	_, err := runRoot(t, "token", "--subject", "tech-9")
	assert.ErrorContains(t, err, "private key data is empty")
}

func TestMigrateCommandArgs(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := runRoot(t, "migrate", "sideways")
	assert.Error(t, err)

	_, err = runRoot(t, "migrate", "up")
	assert.ErrorContains(t, err, "database.url")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "")

	_, err := runRoot(t, "serve")
	assert.ErrorContains(t, err, "invalid configuration")
}
