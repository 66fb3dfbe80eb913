package usecases

import (
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagechat/internal/infrastructure"
	"pagechat/internal/repository"
)

func newAuth(t *testing.T) *AuthUsecase {
	t.Helper()
	client, err := infrastructure.NewSQLiteClient(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewAuthUsecase(repository.NewUserRepository(client.DB), "test-secret")
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	auth := newAuth(t)
	require.NoError(t, auth.EnsureAdmin("root", "hunter22"))

	signed, err := auth.Login("root", "hunter22")
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, "root", claims["username"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth := newAuth(t)
	require.NoError(t, auth.EnsureAdmin("root", "hunter22"))

	_, err := auth.Login("root", "wrong")
	assert.Error(t, err)

	_, err = auth.Login("ghost", "hunter22")
	assert.Error(t, err)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	auth := newAuth(t)
	require.NoError(t, auth.EnsureAdmin("root", "first"))
	require.NoError(t, auth.EnsureAdmin("root", "second"))

	// The original password still works; the second call changed nothing.
	_, err := auth.Login("root", "first")
	assert.NoError(t, err)
	_, err = auth.Login("root", "second")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	auth := newAuth(t)
	require.NoError(t, auth.Register("agent1", "password1"))
	assert.Error(t, auth.Register("agent1", "password2"))

	signed, err := auth.Login("agent1", "password1")
	require.NoError(t, err)
	token, _ := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	assert.Equal(t, "agent", token.Claims.(jwt.MapClaims)["role"])
}
