package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-token-nosql/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, expiry time.Duration) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(priv, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pub, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	p, err := NewProvider(&config.Config{JWTPrivateKeyPath: priv, JWTPublicKeyPath: pub, JWTExpiry: expiry})
	require.NoError(t, err)
	return p
}

func TestSignVerify_RoundTripsClaims(t *testing.T) {
	p := newProvider(t, time.Hour)
	signed, err := p.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestVerify_RejectsExpired(t *testing.T) {
	p := newProvider(t, -time.Minute)
	signed, err := p.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	p := newProvider(t, time.Hour)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: Issuer}}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = p.Verify(forged)
	assert.Error(t, err)
}

func TestNewProvider_MissingKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}

func TestSign_UniqueTokenIDs(t *testing.T) {
	p := newProvider(t, time.Hour)
	a, err := p.Sign("u1", "ada@example.com")
	require.NoError(t, err)
	b, err := p.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	ca, err := p.Verify(a)
	require.NoError(t, err)
	cb, err := p.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestVerify_RejectsForeignIssuer(t *testing.T) {
	p := newProvider(t, time.Hour)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signKey)
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestVerify_RequiresSubject(t *testing.T) {
	p := newProvider(t, time.Hour)
	claims := Claims{Email: "ada@example.com", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signKey)
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidSubject)
}

func TestVerify_ToleratesSmallClockSkew(t *testing.T) {
	p := newProvider(t, time.Hour)
	p.now = func() time.Time { return time.Now().Add(10 * time.Second) }
	signed, err := p.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.NoError(t, err)
}
