// Package jwtinfra issues the bearer tokens handed out at signup and login.
package jwtinfra

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/go-token-nosql/internal/config"
	"github.com/go-token-nosql/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every bearer and required on verification.
const Issuer = "go-token-nosql"

// clockSkew tolerated between the signer and the verifier.
const clockSkew = 30 * time.Second

// Claims identify the account behind a bearer. The account id travels as
// the registered subject.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID returns the account the bearer was issued to.
func (c *Claims) UserID() string { return c.Subject }

type Provider struct {
	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
	ttl       time.Duration
	parser    *jwt.Parser
	now       func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	signKey, err := loadKey(cfg.JWTPrivateKeyPath, jwt.ParseRSAPrivateKeyFromPEM)
	if err != nil {
		return nil, err
	}
	verifyKey, err := loadKey(cfg.JWTPublicKeyPath, jwt.ParseRSAPublicKeyFromPEM)
	if err != nil {
		return nil, err
	}
	return &Provider{
		signKey:   signKey,
		verifyKey: verifyKey,
		ttl:       cfg.JWTExpiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithLeeway(clockSkew),
			jwt.WithIssuedAt(),
		),
		now: time.Now,
	}, nil
}

func loadKey[K any](path string, parse func([]byte) (K, error)) (K, error) {
	var zero K
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read jwt key %s: %w", path, err)
	}
	key, err := parse(pemBytes)
	if err != nil {
		return zero, fmt.Errorf("parse jwt key %s: %w", path, err)
	}
	return key, nil
}

// Sign issues an RS256 bearer for userID with a unique token id.
func (p *Provider) Sign(userID, email string) (string, error) {
	now := p.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.At(now),
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.signKey)
}

// Verify checks signature, algorithm, issuer and lifetime, and that a
// subject is present.
func (p *Provider) Verify(bearer string) (*Claims, error) {
	claims := &Claims{}
	if _, err := p.parser.ParseWithClaims(bearer, claims, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	}); err != nil {
		return nil, fmt.Errorf("verify bearer: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("verify bearer: %w", jwt.ErrTokenInvalidSubject)
	}
	return claims, nil
}
