package node

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeParams_Defaults(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	pull := defaultPullParams()
	if err := decodeParams(v, json.RawMessage(`{"subscription":"s"}`), &pull); err != nil {
		t.Fatalf("decodeParams failed: %v", err)
	}
	wantPull := PullParams{Subscription: "s", MaxMessages: 1, AcknowledgeMessages: true}
	if diff := cmp.Diff(wantPull, pull); diff != "" {
		t.Fatalf("pull params mismatch (-want +got):\n%s", diff)
	}

	streaming := defaultStreamingPullParams()
	if err := decodeParams(v, json.RawMessage(`{"subscription":"s","acknowledgeMessages":false}`), &streaming); err != nil {
		t.Fatalf("decodeParams failed: %v", err)
	}
	wantStreaming := StreamingPullParams{Subscription: "s", MaxMessages: 100, Timeout: 60}
	if diff := cmp.Diff(wantStreaming, streaming); diff != "" {
		t.Fatalf("streaming params mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeParams_Invalid(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	tests := []struct {
		name string
		raw  string
	}{
		{"missing subscription", `{}`},
		{"zero max", `{"subscription":"s","maxMessages":0}`},
		{"negative timeout", `{"subscription":"s","timeout":-1}`},
		{"max above limit", `{"subscription":"s","maxMessages":1125899906842624}`},
		{"timeout above limit", `{"subscription":"s","timeout":10000000000}`},
		{"wrong type", `{"subscription":42}`},
		{"not an object", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultStreamingPullParams()
			err := decodeParams(v, json.RawMessage(tt.raw), &p)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestDecodeParams_PullMaxMessagesBound(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	p := defaultPullParams()
	if err := decodeParams(v, json.RawMessage(`{"subscription":"s","maxMessages":1000}`), &p); err != nil {
		t.Fatalf("expected 1000 to be accepted, got %v", err)
	}
	p = defaultPullParams()
	err := decodeParams(v, json.RawMessage(`{"subscription":"s","maxMessages":4294967296}`), &p)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolveAckIDs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		asJSON  bool
		want    []string
		wantErr bool
	}{
		{name: "absent", raw: ``, want: nil},
		{name: "null", raw: `null`, want: nil},
		{name: "structured list", raw: `[{"id":"a"},{"id":"b"}]`, want: []string{"a", "b"}},
		{name: "metadata values", raw: `{"metadataValues":[{"id":"a"}]}`, want: []string{"a"}},
		{name: "structured non-string", raw: `[{"id":7}]`, wantErr: true},
		{name: "json array", raw: `["a","b"]`, asJSON: true, want: []string{"a", "b"}},
		{name: "json string", raw: `"[\"a\",\"b\"]"`, asJSON: true, want: []string{"a", "b"}},
		{name: "json empty string", raw: `""`, asJSON: true, want: nil},
		{name: "json non-string element", raw: `["a",1]`, asJSON: true, wantErr: true},
		{name: "json not an array", raw: `"nope"`, asJSON: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAckIDs(json.RawMessage(tt.raw), tt.asJSON)
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveAckIDs failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ack IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
