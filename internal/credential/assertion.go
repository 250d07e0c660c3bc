package credential

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// AssertionTokenSource signs its own RS256 assertion and redeems it at TokenURL.
type AssertionTokenSource struct {
	Credentials Credentials
	Key         *rsa.PrivateKey
	TokenURL    string
	Client      *http.Client

	now func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Assertion builds the signed JWT exchanged for an access token.
func (s *AssertionTokenSource) Assertion() (string, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	iat := now()
	claims := jwt.MapClaims{
		"iss":   s.Credentials.Email,
		"sub":   s.Credentials.Subject(),
		"scope": PubSubScope,
		"aud":   s.TokenURL,
		"iat":   iat.Unix(),
		"exp":   iat.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}

// Token implements oauth2.TokenSource.
func (s *AssertionTokenSource) Token() (*oauth2.Token, error) {
	assertion, err := s.Assertion()
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body}
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body, ErrorCode: tr.Error, ErrorDescription: tr.Description}
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
