package upstream

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// authProvider yields the Authorization header value for upstream requests.
type authProvider interface {
	authHeader() (string, error)
}

// tokenAuth authenticates with a personal access token.
type tokenAuth struct {
	token string
}

func (a tokenAuth) authHeader() (string, error) {
	return "Bearer " + a.token, nil
}

// appAuth authenticates as a GitHub App with a short-lived RS256 JWT.
// Tokens are cached and reminted shortly before expiry.
type appAuth struct {
	appID string
	key   *rsa.PrivateKey

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newAppAuth(appID, privateKeyPEM string) (*appAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return &appAuth{appID: appID, key: key}, nil
}

func (a *appAuth) authHeader() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if a.token != "" && now.Before(a.expiresAt.Add(-time.Minute)) {
		return "Bearer " + a.token, nil
	}

	// GitHub caps app JWT lifetime at 10 minutes; the 60s backdate absorbs
	// clock drift between us and the API.
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign app token: %w", err)
	}

	a.token = signed
	a.expiresAt = now.Add(9 * time.Minute)
	return "Bearer " + signed, nil
}
