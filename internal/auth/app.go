package auth

import (
	"crypto/rsa"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// assertionLifetime is how long a signed app assertion stays valid.
// GitHub rejects assertions that live longer than ten minutes.
const assertionLifetime = 10 * time.Minute

// clockDrift backdates iat to tolerate clock skew with the forge.
const clockDrift = 60 * time.Second

// Signer produces short-lived assertions identifying the application.
type Signer interface {
	Sign() (string, error)
}

// AppSigner signs RS256 JWTs for a GitHub App.
// See https://docs.github.com/en/apps/creating-github-apps/authenticating-with-a-github-app/generating-a-json-web-token-jwt-for-a-github-app
type AppSigner struct {
	appID int64
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppSigner parses a PEM encoded RSA private key for the given app id.
func NewAppSigner(appID int64, privateKeyPEM []byte) (*AppSigner, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("github app id is not set")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing app private key: %w", err)
	}
	return &AppSigner{appID: appID, key: key, now: time.Now}, nil
}

// Sign returns a fresh assertion that expires nine minutes from now.
func (s *AppSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(s.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockDrift)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime - clockDrift)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing app assertion: %w", err)
	}
	return signed, nil
}
