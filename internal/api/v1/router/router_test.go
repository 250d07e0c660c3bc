package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pubsubnode/internal/api/v1/dto"
	"pubsubnode/internal/config"
	"pubsubnode/internal/node"
	"pubsubnode/internal/normalize"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fakeExecutor struct {
	got   node.ExecuteInput
	items []any
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, in node.ExecuteInput) ([]any, error) {
	f.got = in
	return f.items, f.err
}

func post(t *testing.T, h http.Handler, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExecutions_OK(t *testing.T) {
	exec := &fakeExecutor{items: []any{map[string]any{"success": true}}}
	h := NewHandler(&config.Config{}, exec, prometheus.NewRegistry(), zerolog.Nop())

	rec := post(t, h, `{"resource":"messages","operation":"acknowledge","items":[{"subscription":"s"}]}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp dto.ExecutionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if diff := cmp.Diff([]any{map[string]any{"success": true}}, resp.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if exec.got.Resource != "messages" || exec.got.Operation != "acknowledge" || len(exec.got.Items) != 1 {
		t.Fatalf("unexpected executor input: %+v", exec.got)
	}
}

func TestExecutions_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing items", `{"resource":"messages","operation":"pull"}`, nil, http.StatusBadRequest},
		{"bad credentials", `{"resource":"messages","operation":"pull","credentials":{"email":"nope","privateKey":"k"},"items":[{}]}`, nil, http.StatusBadRequest},
		{"config error", `{"resource":"x","operation":"y","items":[{}]}`, &node.ConfigError{Node: node.Name, Message: `The resource "x" is not supported!`}, http.StatusBadRequest},
		{"api error", `{"resource":"messages","operation":"pull","items":[{}]}`, &node.APIError{Node: node.Name, Status: 403, Message: "denied"}, http.StatusBadGateway},
		{"decode error", `{"resource":"messages","operation":"pull","items":[{}]}`, fmt.Errorf("%w: message 1", normalize.ErrDecode), http.StatusUnprocessableEntity},
		{"unexpected", `{"resource":"messages","operation":"pull","items":[{}]}`, fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&config.Config{}, &fakeExecutor{err: tt.err}, prometheus.NewRegistry(), zerolog.Nop())
			rec := post(t, h, tt.body, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestExecutions_Auth(t *testing.T) {
	h := NewHandler(&config.Config{ConnectorJWTSecret: "secret"}, &fakeExecutor{}, prometheus.NewRegistry(), zerolog.Nop())
	body := `{"resource":"messages","operation":"pull","items":[{}]}`

	if rec := post(t, h, body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "host",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if rec := post(t, h, body, token); rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "probe"})
	reg.MustRegister(counter)
	counter.Inc()
	h := NewHandler(&config.Config{}, &fakeExecutor{}, reg, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "probe_total 1") {
		t.Fatalf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	h := NewHandler(&config.Config{}, &fakeExecutor{}, prometheus.NewRegistry(), zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/executions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
