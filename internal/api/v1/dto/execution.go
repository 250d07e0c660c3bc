package dto

import (
	"encoding/json"

	"pubsubnode/internal/credential"
)

// ExecutionRequest runs one operation over a batch of items.
type ExecutionRequest struct {
	Resource       string                  `json:"resource" validate:"required"`
	Operation      string                  `json:"operation" validate:"required"`
	ProjectID      string                  `json:"projectId,omitempty"`
	ContinueOnFail bool                    `json:"continueOnFail,omitempty"`
	Credentials    *credential.Credentials `json:"credentials,omitempty" validate:"omitempty"`
	Items          []json.RawMessage       `json:"items" validate:"required,min=1"`
}

// ExecutionResponse holds the output items in order.
type ExecutionResponse struct {
	Items []any `json:"items"`
}

// ErrorResponse describes a failed execution. Status is the upstream
// HTTP status for API errors.
type ErrorResponse struct {
	Error  string `json:"error"`
	Node   string `json:"node,omitempty"`
	Status int    `json:"status,omitempty"`
}
