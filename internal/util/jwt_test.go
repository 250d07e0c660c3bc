package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func claimsFor(subject string, expires time.Time) Claims {
	return Claims{
		Workspace: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func publicPEM(t *testing.T, pub any) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestValidateJWT_HMAC(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("host", time.Now().Add(time.Hour))).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	claims, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if claims.Subject != "host" || claims.Workspace != "ops" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ValidateJWT(token, "other"); err == nil {
		t.Fatalf("expected wrong secret to be rejected")
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor("host", time.Now().Add(-time.Minute))).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateJWT_MissingExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}

func TestValidateJWT_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor("host", time.Now().Add(time.Hour))).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if _, err := ValidateJWT(token, publicPEM(t, &key.PublicKey)); err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
}

func TestValidateJWT_ECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claimsFor("host", time.Now().Add(time.Hour))).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if _, err := ValidateJWT(token, publicPEM(t, &key.PublicKey)); err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	// An RSA-shaped key for an ECDSA token must not parse.
	if _, err := ParseRSAPublicKey(publicPEM(t, &key.PublicKey)); err == nil {
		t.Fatalf("expected ECDSA key to be rejected as RSA")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	if _, err := ValidateJWT("not-a-token", "secret"); err == nil {
		t.Fatalf("expected garbage to be rejected")
	}
}
