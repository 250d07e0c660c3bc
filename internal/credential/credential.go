// Package credential turns stored service-account material into a bearer identity
// for the Pub/Sub transport.
package credential

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	// PubSubScope is the only OAuth scope the connector requests.
	PubSubScope = "https://www.googleapis.com/auth/pubsub"
	// DefaultTokenURL is Google's OAuth 2.0 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
)

// Auth modes.
const (
	ModeAssertion   = "assertion"
	ModeCredentials = "credentials"
)

var (
	ErrMissingCredentials = errors.New("credentials are mandatory")
	// ErrMalformedKey means the private key is not PEM-encoded RSA key material.
	ErrMalformedKey = errors.New("private key is not a PEM encoded RSA key")
)

// Credentials is the service-account material stored by the workflow host.
type Credentials struct {
	Email          string `json:"email" validate:"required,email"`
	PrivateKey     string `json:"privateKey" validate:"required"`
	DelegatedEmail string `json:"delegatedEmail,omitempty" validate:"omitempty,email"`
}

// Subject is the principal the token is issued for.
func (c Credentials) Subject() string {
	if c.DelegatedEmail != "" {
		return c.DelegatedEmail
	}
	return c.Email
}

// IsZero reports whether no credential material was supplied at all.
func (c Credentials) IsZero() bool {
	return c.Email == "" && c.PrivateKey == ""
}

// Options configures NewTokenSource.
type Options struct {
	Mode       string
	TokenURL   string
	HTTPClient *http.Client
}

// NewTokenSource builds a caching token source for creds. Key material is
// parsed up front so a malformed key fails here with ErrMalformedKey rather
// than on the first transport call.
func NewTokenSource(ctx context.Context, creds Credentials, opts Options) (oauth2.TokenSource, error) {
	if creds.Email == "" || creds.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}
	creds.PrivateKey = normalizeKey(creds.PrivateKey)
	key, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	var ts oauth2.TokenSource
	switch opts.Mode {
	case "", ModeAssertion:
		ts = &AssertionTokenSource{
			Credentials: creds,
			Key:         key,
			TokenURL:    opts.TokenURL,
			Client:      opts.HTTPClient,
		}
	case ModeCredentials:
		ts = credentialsTokenSource(ctx, creds, opts)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", opts.Mode)
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}

// normalizeKey restores newlines in keys pasted into single-line fields.
func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), `\n`, "\n")
}

func parsePrivateKey(key string) (*rsa.PrivateKey, error) {
	pk, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return pk, nil
}
