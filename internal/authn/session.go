package authn

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload carried inside the admin session JWT, kept
// inside an HttpOnly cookie rather than an Authorization header.
type SessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies admin session tokens. It signs RS256
// when an RSA keypair is configured, and falls back to HS256 over a
// single shared secret otherwise — the RSA path matters when verifiers
// run in a different process than the issuer; this repo's console and
// engine are one process, so the HMAC fallback is the common case.
type SessionIssuer struct {
	secret        []byte
	rsaPrivateKey *rsa.PrivateKey
	rsaPublicKey  *rsa.PublicKey
	ttl           time.Duration
}

// NewSessionIssuer constructs an HS256 issuer signing with secret and
// expiring tokens after ttl.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl}
}

// NewRSASessionIssuer constructs an RS256 issuer from a PEM-encoded RSA
// keypair.
func NewRSASessionIssuer(privateKeyPEM, publicKeyPEM []byte, ttl time.Duration) (*SessionIssuer, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("authn: parse RSA private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("authn: parse RSA public key: %w", err)
	}
	return &SessionIssuer{rsaPrivateKey: priv, rsaPublicKey: pub, ttl: ttl}, nil
}

// Issue mints a signed session token for userID.
func (s *SessionIssuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	var token *jwt.Token
	var key interface{}
	if s.rsaPrivateKey != nil {
		token = jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		key = s.rsaPrivateKey
	} else {
		token = jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		key = s.secret
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("authn: sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates tokenStr and returns its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if s.rsaPublicKey != nil {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.rsaPublicKey, nil
		}
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("authn: invalid session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("authn: unexpected claims type")
	}
	return claims, nil
}
