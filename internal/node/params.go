package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ListParams configures topicsSubscriptions/list.
type ListParams struct {
	Topic          string `json:"topic" validate:"required"`
	PageSize       int    `json:"pageSize" validate:"gte=0,lte=1000"`
	PageToken      string `json:"pageToken"`
	SimplifyOutput bool   `json:"simplifyOutput"`
}

// PullParams configures messages/pull.
type PullParams struct {
	Subscription        string `json:"subscription" validate:"required"`
	MaxMessages         int    `json:"maxMessages" validate:"gte=1,lte=1000"`
	AllowExcessMessages bool   `json:"allowExcessMessages"`
	AcknowledgeMessages bool   `json:"acknowledgeMessages"`
	DecodeJSON          bool   `json:"decodeJSON"`
}

func defaultPullParams() PullParams {
	return PullParams{MaxMessages: 1, AcknowledgeMessages: true}
}

// StreamingPullParams configures messages/streamingPull. Timeout is in seconds,
// at most one hour.
type StreamingPullParams struct {
	Subscription        string `json:"subscription" validate:"required"`
	MaxMessages         int    `json:"maxMessages" validate:"gte=1,lte=1000"`
	Timeout             int    `json:"timeout" validate:"gte=1,lte=3600"`
	AcknowledgeMessages bool   `json:"acknowledgeMessages"`
	DecodeJSON          bool   `json:"decodeJSON"`
}

func defaultStreamingPullParams() StreamingPullParams {
	return StreamingPullParams{MaxMessages: 100, Timeout: 60, AcknowledgeMessages: true}
}

// AcknowledgeParams configures messages/acknowledge. AckIDs is resolved by
// resolveAckIDs according to JSONAckIDs.
type AcknowledgeParams struct {
	Subscription string          `json:"subscription" validate:"required"`
	AckIDs       json.RawMessage `json:"ackIds"`
	JSONAckIDs   bool            `json:"jsonAckIds"`
}

// decodeParams decodes raw over dst, which already carries the defaults, and
// validates the result.
func decodeParams(validate *validator.Validate, raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return configErrorf("invalid parameters: %v", err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
			}
			return configErrorf("invalid parameters: %s", strings.Join(fields, ", "))
		}
		return configErrorf("invalid parameters: %v", err)
	}
	return nil
}

// resolveAckIDs reads ack IDs from either the structured UI shape, a list of
// {"id": ...} objects optionally wrapped in {"metadataValues": [...]}, or,
// when asJSON is set, a JSON array of strings given as-is or as a JSON string.
func resolveAckIDs(raw json.RawMessage, asJSON bool) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if asJSON {
		return jsonAckIDs(raw)
	}
	return structuredAckIDs(raw)
}

func jsonAckIDs(raw json.RawMessage) ([]string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		raw = json.RawMessage(text)
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, configErrorf("ackIds must be a JSON array of strings: %v", err)
	}
	ids := make([]string, 0, len(values))
	for i, v := range values {
		id, ok := v.(string)
		if !ok {
			return nil, configErrorf("ackIds[%d] must be a string, got %T", i, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func structuredAckIDs(raw json.RawMessage) ([]string, error) {
	var entries []map[string]any
	if raw[0] == '{' {
		var wrapper struct {
			MetadataValues []map[string]any `json:"metadataValues"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, configErrorf("invalid ackIds: %v", err)
		}
		entries = wrapper.MetadataValues
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, configErrorf("invalid ackIds: %v", err)
	}

	ids := make([]string, 0, len(entries))
	for i, e := range entries {
		id, ok := e["id"].(string)
		if !ok {
			return nil, configErrorf("ackIds[%d].id must be a string", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
