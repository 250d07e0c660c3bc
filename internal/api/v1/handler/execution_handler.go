package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pubsubnode/internal/api/v1/dto"
	"pubsubnode/internal/node"
	"pubsubnode/internal/normalize"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Executor runs node executions.
type Executor interface {
	Execute(ctx context.Context, in node.ExecuteInput) ([]any, error)
}

// ExecutionHandler handles execution endpoints.
type ExecutionHandler struct {
	executor Executor
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(executor Executor, validate *validator.Validate, logger zerolog.Logger) *ExecutionHandler {
	return &ExecutionHandler{executor: executor, validate: validate, logger: logger}
}

// RegisterRoutes registers the execution endpoints.
func (h *ExecutionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /executions", authMiddleware(http.HandlerFunc(h.Execute)))
}

// Execute godoc
// @Summary Run a Pub/Sub operation
// @Description Runs one resource/operation over the given items and returns the output items.
// @Tags executions
// @Accept json
// @Produce json
// @Param execution body dto.ExecutionRequest true "Execution request"
// @Success 200 {object} dto.ExecutionResponse
// @Failure 400 {object} dto.ErrorResponse "invalid request or parameters"
// @Failure 401 {string} string "unauthorized"
// @Failure 422 {object} dto.ErrorResponse "message payload is not valid JSON"
// @Failure 502 {object} dto.ErrorResponse "Pub/Sub or authentication failure"
// @Router /executions [post]
func (h *ExecutionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req dto.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	items, err := h.executor.Execute(r.Context(), node.ExecuteInput{
		Resource:       req.Resource,
		Operation:      req.Operation,
		ProjectID:      req.ProjectID,
		ContinueOnFail: req.ContinueOnFail,
		Credentials:    req.Credentials,
		Items:          req.Items,
	})
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Msg("Execution failed")
		}
		writeJSON(w, h.logger, status, body)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.ExecutionResponse{Items: items})
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var cfgErr *node.ConfigError
	var apiErr *node.APIError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, dto.ErrorResponse{Error: cfgErr.Message, Node: cfgErr.Node}
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, dto.ErrorResponse{Error: apiErr.Message, Node: apiErr.Node, Status: apiErr.Status}
	case errors.Is(err, normalize.ErrDecode):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Node: node.Name}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
