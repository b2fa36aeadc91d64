package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"
)

func TestGenerateAPIKeyFormat(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(key, apiKeyPrefix) {
		t.Fatalf("expected prefix %s, got %s", apiKeyPrefix, key)
	}
	if len(key) != len(apiKeyPrefix)+apiKeyRandBytes*2 {
		t.Fatalf("unexpected key length: %d", len(key))
	}
}

func TestVerifyAPIKeyRoundTrip(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	hash := HashAPIKey(key)
	if !VerifyAPIKey(key, hash) {
		t.Fatal("expected key to verify against its own hash")
	}
	if VerifyAPIKey("sk_agent_wrong", hash) {
		t.Fatal("expected mismatched key to fail verification")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse", MinBcryptCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword("correct-horse", hash) {
		t.Fatal("expected correct password to verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestSessionIssueAndVerify(t *testing.T) {
	issuer := NewSessionIssuer("test-secret", time.Hour)
	token, err := issuer.Issue("admin-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "admin-1" {
		t.Fatalf("expected userId admin-1, got %s", claims.UserID)
	}
}

func TestSessionVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewSessionIssuer("secret-a", time.Hour)
	token, err := issuer.Issue("admin-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := NewSessionIssuer("secret-b", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification with wrong secret to fail")
	}
}

func generateTestRSAKeyPEM(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	return privPEM, pubPEM
}

func TestRSASessionIssueAndVerify(t *testing.T) {
	privPEM, pubPEM := generateTestRSAKeyPEM(t)
	issuer, err := NewRSASessionIssuer(privPEM, pubPEM, time.Hour)
	if err != nil {
		t.Fatalf("new rsa issuer: %v", err)
	}
	token, err := issuer.Issue("admin-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "admin-1" {
		t.Fatalf("expected userId admin-1, got %s", claims.UserID)
	}
}

func TestRSASessionVerifyRejectsHMACToken(t *testing.T) {
	_, pubPEM := generateTestRSAKeyPEM(t)
	hmacIssuer := NewSessionIssuer("test-secret", time.Hour)
	token, err := hmacIssuer.Issue("admin-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	privPEM, _ := generateTestRSAKeyPEM(t)
	rsaIssuer, err := NewRSASessionIssuer(privPEM, pubPEM, time.Hour)
	if err != nil {
		t.Fatalf("new rsa issuer: %v", err)
	}
	if _, err := rsaIssuer.Verify(token); err == nil {
		t.Fatal("expected HMAC-signed token to fail RS256 verification")
	}
}
