package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"pubsubnode/internal/metrics"
	"pubsubnode/internal/model"
	"pubsubnode/internal/normalize"
	"pubsubnode/internal/pubsub"

	"github.com/rs/zerolog"
)

// MaxMessagesLimit is the most messages Pub/Sub returns from a single pull.
const MaxMessagesLimit = 1000

var ErrInvalidMaxMessages = errors.New("maxMessages must be between 1 and 1000")

// PullOptions configures one synchronous pull.
type PullOptions struct {
	model.PullRequest
	AcknowledgeMessages bool
	DecodeJSON          bool
}

type PullService interface {
	// Pull returns the response envelope with receivedMessages replaced by
	// the projected, optionally decoded messages.
	Pull(ctx context.Context, opts PullOptions) (map[string]any, error)
	// Wait blocks until acknowledgements started by Pull have finished.
	Wait()
}

type pullService struct {
	transport  pubsub.Transport
	projectID  string
	ackTimeout time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	acks sync.WaitGroup
}

func NewPullService(t pubsub.Transport, projectID string, ackTimeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) PullService {
	if ackTimeout <= 0 {
		ackTimeout = 30 * time.Second
	}
	return &pullService{
		transport:  t,
		projectID:  projectID,
		ackTimeout: ackTimeout,
		logger:     logger.With().Str("service", "PullService").Logger(),
		metrics:    m,
	}
}

func (s *pullService) Pull(ctx context.Context, opts PullOptions) (map[string]any, error) {
	if opts.MaxMessages < 1 || opts.MaxMessages > MaxMessagesLimit {
		return nil, ErrInvalidMaxMessages
	}
	sub := opts.Subscription.Path(s.projectID)

	resp, err := s.transport.Pull(ctx, sub, opts.MaxMessages)
	if err != nil {
		return nil, err
	}

	msgs := normalize.ProjectAll(resp.GetReceivedMessages())
	if !opts.AllowExcessMessages && len(msgs) > opts.MaxMessages {
		// Dropped messages are never acknowledged and will be redelivered.
		s.logger.Debug().Int("excess", len(msgs)-opts.MaxMessages).Msg("Dropping excess messages")
		msgs = msgs[:opts.MaxMessages]
	}

	// Every payload must decode before anything is acknowledged.
	if opts.DecodeJSON {
		if err := normalize.DecodeAll(msgs); err != nil {
			return nil, err
		}
	}

	envelope, err := normalize.Plain(resp)
	if err != nil {
		return nil, err
	}
	envelope["receivedMessages"] = msgs
	s.metrics.MessagesReceived("pull", len(msgs))

	if opts.AcknowledgeMessages && len(msgs) > 0 {
		s.acknowledge(ctx, sub, model.AckIDs(msgs))
	}
	return envelope, nil
}

// acknowledge sends one batch acknowledgement in the background. Its outcome
// is only logged: a failed ack leads to redelivery, not loss.
func (s *pullService) acknowledge(ctx context.Context, sub string, ackIDs []string) {
	s.acks.Add(1)
	go func() {
		defer s.acks.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ackTimeout)
		defer cancel()

		if err := s.transport.Acknowledge(ctx, sub, ackIDs); err != nil {
			s.logger.Warn().Err(err).Str("subscription", sub).Int("count", len(ackIDs)).Msg("Failed to acknowledge pulled messages; they will be redelivered")
			return
		}
		s.metrics.MessagesAcknowledged("pull", len(ackIDs))
	}()
}

func (s *pullService) Wait() {
	s.acks.Wait()
}
