// Package node adapts the Pub/Sub operations to a workflow host: it resolves
// the requested resource and operation, decodes per-item parameters and shapes
// results into output items.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pubsubnode/internal/credential"
	"pubsubnode/internal/metrics"
	"pubsubnode/internal/model"
	"pubsubnode/internal/pubsub"
	"pubsubnode/internal/repository"
	"pubsubnode/internal/service"
)

// ExecuteInput is one invocation of the node over a batch of workflow items.
// Each item holds the operation's parameters as a JSON object.
type ExecuteInput struct {
	Resource       string                  `json:"resource"`
	Operation      string                  `json:"operation"`
	ProjectID      string                  `json:"projectId,omitempty"`
	ContinueOnFail bool                    `json:"continueOnFail,omitempty"`
	Credentials    *credential.Credentials `json:"credentials,omitempty"`
	Items          []json.RawMessage       `json:"items"`
}

// TransportFactory opens a transport authenticated as creds. It is called once
// per execution and the executor closes what it returns.
type TransportFactory func(ctx context.Context, creds credential.Credentials) (pubsub.Transport, error)

// Options are the process-wide defaults an execution falls back to.
type Options struct {
	ProjectID                   string
	Credentials                 credential.Credentials
	AckTimeout                  time.Duration
	StreamingAckDeadlineSeconds int
}

type Executor struct {
	factory  TransportFactory
	opts     Options
	validate *validator.Validate
	repo     repository.ExecutionRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewExecutor(factory TransportFactory, opts Options, validate *validator.Validate, repo repository.ExecutionRepository, m *metrics.Metrics, logger zerolog.Logger) *Executor {
	if repo == nil {
		repo = repository.NopExecutionRepository{}
	}
	return &Executor{
		factory:  factory,
		opts:     opts,
		validate: validate,
		repo:     repo,
		metrics:  m,
		logger:   logger.With().Str("service", "Executor").Logger(),
	}
}

// Execute runs the operation once per item, in order. With ContinueOnFail a
// failed item yields {"error": message} and processing continues; otherwise the
// first failure aborts the execution.
func (e *Executor) Execute(ctx context.Context, in ExecuteInput) ([]any, error) {
	record := &model.Execution{
		ID:        uuid.NewString(),
		Resource:  in.Resource,
		Operation: in.Operation,
		ItemCount: len(in.Items),
		StartedAt: time.Now().UTC(),
	}
	out, err := e.execute(ctx, in, record)
	e.save(ctx, record, err)
	return out, err
}

func (e *Executor) execute(ctx context.Context, in ExecuteInput, record *model.Execution) ([]any, error) {
	op, err := lookupOperation(in.Resource, in.Operation)
	if err != nil {
		return e.failAll(in, record, err)
	}

	projectID := in.ProjectID
	if projectID == "" {
		projectID = e.opts.ProjectID
	}
	if projectID == "" {
		return e.failAll(in, record, configErrorf("projectId is required"))
	}
	record.ProjectID = projectID

	creds := e.opts.Credentials
	if in.Credentials != nil {
		creds = *in.Credentials
	}

	transport, err := e.factory(ctx, creds)
	if err != nil {
		return e.failAll(in, record, classify(err))
	}
	defer func() {
		if err := transport.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close Pub/Sub transport")
		}
	}()

	svcs := &services{
		subscriptions: service.NewTopicSubscriptionService(transport, projectID, e.logger),
		pull:          service.NewPullService(transport, projectID, e.opts.AckTimeout, e.logger, e.metrics),
		streaming:     service.NewStreamingService(transport, projectID, e.opts.StreamingAckDeadlineSeconds, e.opts.AckTimeout, e.logger, e.metrics),
		ack:           service.NewAckService(transport, projectID, e.logger, e.metrics),
	}
	// Background acknowledgements must finish before the transport closes.
	defer svcs.streaming.Wait()
	defer svcs.pull.Wait()

	out := []any{}
	for i, params := range in.Items {
		start := time.Now()
		result, err := op(ctx, e, svcs, params)
		err = classify(err)
		e.metrics.ObserveOperation(in.Resource, in.Operation, start, err)
		if err != nil {
			e.logger.Error().Err(err).
				Str("resource", in.Resource).
				Str("operation", in.Operation).
				Int("item", i).
				Msg("Operation failed")
			if !in.ContinueOnFail {
				return nil, err
			}
			record.FailedCount++
			out = append(out, errorItem(err))
			continue
		}

		items, err := shape(result)
		if err != nil {
			return nil, fmt.Errorf("failed to shape output of item %d: %w", i, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

// failAll applies an execution-wide failure to every item.
func (e *Executor) failAll(in ExecuteInput, record *model.Execution, err error) ([]any, error) {
	if !in.ContinueOnFail {
		return nil, err
	}
	e.logger.Error().Err(err).Msg("Execution failed, continuing per item")
	out := make([]any, 0, len(in.Items))
	for range in.Items {
		out = append(out, errorItem(err))
	}
	record.FailedCount = len(in.Items)
	return out, nil
}

func (e *Executor) save(ctx context.Context, record *model.Execution, err error) {
	record.FinishedAt = time.Now().UTC()
	if err != nil {
		msg := err.Error()
		record.Error = &msg
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.repo.Create(ctx, record); err != nil {
		e.logger.Warn().Err(err).Str("execution_id", record.ID).Msg("Failed to record execution")
	}
}

func errorItem(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

// shape turns one operation result into output items. A list whose first
// element is not a string is spread into one item per element, so an empty
// list yields nothing. Anything else is a single item.
func shape(result any) ([]any, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return []any{v}, nil
	}
	if len(list) == 0 {
		return nil, nil
	}
	if _, isString := list[0].(string); isString {
		return []any{list}, nil
	}
	return list, nil
}
