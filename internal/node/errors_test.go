package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pubsubnode/internal/credential"
	"pubsubnode/internal/normalize"
	"pubsubnode/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"malformed key", fmt.Errorf("token source: %w", credential.ErrMalformedKey), http.StatusUnauthorized},
		{"grpc not found", status.Error(codes.NotFound, "Resource not found"), http.StatusNotFound},
		{"grpc permission denied", status.Error(codes.PermissionDenied, "denied"), http.StatusForbidden},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "bad token"), http.StatusUnauthorized},
		{"token exchange", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}, ErrorCode: "invalid_grant"}, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *APIError
			if !errors.As(classify(tt.err), &apiErr) {
				t.Fatalf("expected APIError for %v", tt.err)
			}
			if apiErr.Status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
			if apiErr.Node != Name {
				t.Fatalf("node = %q, want %q", apiErr.Node, Name)
			}
			if !errors.Is(apiErr, tt.err) {
				t.Fatalf("expected cause to be preserved")
			}
		})
	}
}

func TestClassify_InvalidOptions(t *testing.T) {
	for _, err := range []error{service.ErrInvalidMaxMessages, service.ErrInvalidTimeout} {
		var cfgErr *ConfigError
		if !errors.As(classify(err), &cfgErr) {
			t.Fatalf("expected ConfigError for %v", err)
		}
		if cfgErr.Node != Name {
			t.Fatalf("node = %q, want %q", cfgErr.Node, Name)
		}
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if classify(nil) != nil {
		t.Fatalf("expected nil")
	}
	decodeErr := fmt.Errorf("%w: message 1", normalize.ErrDecode)
	if got := classify(decodeErr); got != decodeErr {
		t.Fatalf("expected decode error unchanged, got %v", got)
	}
	cfgErr := configErrorf("bad")
	if got := classify(cfgErr); got != cfgErr {
		t.Fatalf("expected ConfigError unchanged, got %v", got)
	}
	var asCfg *ConfigError
	if !errors.As(classify(credential.ErrMissingCredentials), &asCfg) {
		t.Fatalf("expected missing credentials to be a ConfigError")
	}
}
