package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-ledger/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	key, err := GenerateKeyPEM()
	require.NoError(t, err)

	svc, err := NewService(&config.AuthConfig{
		Enabled:    true,
		Secret:     key,
		Issuer:     "notes-ledger-test",
		Expiration: time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken("participant-1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "participant-1", claims.ParticipantID())
	assert.Equal(t, "notes-ledger-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateTokenRequiresParticipant(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GenerateToken("", time.Minute)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken("participant-1", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenFromOtherKey(t *testing.T) {
	issuer := newTestService(t)
	verifier := newTestService(t)

	token, err := issuer.GenerateToken("participant-1", time.Minute)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	key, err := GenerateKeyPEM()
	require.NoError(t, err)

	a, err := NewService(&config.AuthConfig{Secret: key, Issuer: "a", Expiration: time.Hour})
	require.NoError(t, err)
	b, err := NewService(&config.AuthConfig{Secret: key, Issuer: "b", Expiration: time.Hour})
	require.NoError(t, err)

	token, err := a.GenerateToken("participant-1", 0)
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateMalformedToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestParsePrivateKey(t *testing.T) {
	_, err := ParsePrivateKey("")
	assert.ErrorIs(t, err, ErrNoSigningKey)

	_, err = ParsePrivateKey("plain-secret")
	assert.Error(t, err)

	key, err := GenerateKeyPEM()
	require.NoError(t, err)
	parsed, err := ParsePrivateKey(key)
	require.NoError(t, err)
	assert.NotNil(t, parsed.PublicKey)
}

func TestNewServiceWithoutSecretGeneratesKey(t *testing.T) {
	svc, err := NewService(&config.AuthConfig{Issuer: "notes-ledger", Expiration: time.Hour})
	require.NoError(t, err)

	token, err := svc.GenerateToken("participant-1", 0)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.NoError(t, err)
}

func TestNewServiceRejectsMalformedSecret(t *testing.T) {
	_, err := NewService(&config.AuthConfig{Secret: "plain-secret", Issuer: "notes-ledger"})
	assert.Error(t, err)
}
