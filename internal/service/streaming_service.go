package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"

	"pubsubnode/internal/metrics"
	"pubsubnode/internal/model"
	"pubsubnode/internal/normalize"
	"pubsubnode/internal/pubsub"

	"github.com/rs/zerolog"
)

var ErrInvalidTimeout = errors.New("timeout must be positive")

// StreamingPullOptions configures one bounded streaming collection.
type StreamingPullOptions struct {
	Subscription        model.SubscriptionRef
	MaxMessages         int
	Timeout             time.Duration
	AcknowledgeMessages bool
	DecodeJSON          bool
}

// StreamingPullResult is returned even when nothing arrived before the timeout.
type StreamingPullResult struct {
	Messages []model.ReceivedMessage `json:"messages"`
	Count    int                     `json:"count"`
}

type StreamingService interface {
	// Collect returns once MaxMessages messages were collected or Timeout
	// elapsed, whichever comes first.
	Collect(ctx context.Context, opts StreamingPullOptions) (StreamingPullResult, error)
	// Wait blocks until acknowledgements started by Collect have finished.
	Wait()
}

type streamingService struct {
	transport          pubsub.Transport
	projectID          string
	ackDeadlineSeconds int
	ackTimeout         time.Duration
	logger             zerolog.Logger
	metrics            *metrics.Metrics

	acks sync.WaitGroup
}

func NewStreamingService(t pubsub.Transport, projectID string, ackDeadlineSeconds int, ackTimeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) StreamingService {
	if ackDeadlineSeconds <= 0 {
		ackDeadlineSeconds = 60
	}
	if ackTimeout <= 0 {
		ackTimeout = 30 * time.Second
	}
	return &streamingService{
		transport:          t,
		projectID:          projectID,
		ackDeadlineSeconds: ackDeadlineSeconds,
		ackTimeout:         ackTimeout,
		logger:             logger.With().Str("service", "StreamingService").Logger(),
		metrics:            m,
	}
}

type collectState int

const (
	collecting collectState = iota
	completed
)

// collector is the loop-scoped state of one Collect call. Both wake sources,
// message arrival and the timer, go through mu, so the single
// collecting→completed transition happens exactly once.
type collector struct {
	mu       sync.Mutex
	state    collectState
	messages []model.ReceivedMessage
	max      int
	err      error
	stop     context.CancelFunc

	// ack IDs delivered after completion or whose payload failed to decode
	returned []string
}

// completeLocked moves to completed and stops the stream. Safe to call again.
func (c *collector) completeLocked(err error) {
	if c.state == completed {
		return
	}
	c.state = completed
	c.err = err
	c.stop()
}

func (c *collector) complete(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeLocked(err)
}

func (s *streamingService) Collect(ctx context.Context, opts StreamingPullOptions) (StreamingPullResult, error) {
	if opts.MaxMessages < 1 || opts.MaxMessages > MaxMessagesLimit {
		return StreamingPullResult{}, ErrInvalidMaxMessages
	}
	if opts.Timeout <= 0 {
		return StreamingPullResult{}, ErrInvalidTimeout
	}
	sub := opts.Subscription.Path(s.projectID)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &collector{
		max:      opts.MaxMessages,
		messages: []model.ReceivedMessage{},
		stop:     cancel,
	}
	timer := time.AfterFunc(opts.Timeout, func() { c.complete(nil) })
	defer timer.Stop()

	start := time.Now()
	streamErr := s.transport.StreamingPull(streamCtx, sub, pubsub.StreamOptions{
		AckDeadlineSeconds:     s.ackDeadlineSeconds,
		MaxOutstandingMessages: opts.MaxMessages,
	}, func(rm *pubsubpb.ReceivedMessage) {
		s.onMessage(ctx, c, sub, opts, rm)
	})

	// StreamingPull has returned, so no further arrivals can reach c.
	c.mu.Lock()
	switch {
	case streamErr != nil:
		c.completeLocked(streamErr)
	case ctx.Err() != nil:
		c.completeLocked(ctx.Err())
	default:
		c.completeLocked(nil)
	}
	msgs, err, returned := c.messages, c.err, c.returned
	c.mu.Unlock()

	s.release(ctx, sub, returned)

	if err != nil {
		return StreamingPullResult{}, err
	}
	s.metrics.MessagesReceived("streamingPull", len(msgs))
	s.logger.Debug().
		Str("subscription", sub).
		Int("count", len(msgs)).
		Dur("elapsed", time.Since(start)).
		Msg("Streaming pull finished")
	return StreamingPullResult{Messages: msgs, Count: len(msgs)}, nil
}

func (s *streamingService) onMessage(ctx context.Context, c *collector, sub string, opts StreamingPullOptions, rm *pubsubpb.ReceivedMessage) {
	msg, ok := c.accept(rm, opts.DecodeJSON)
	if ok && opts.AcknowledgeMessages {
		s.acknowledge(ctx, sub, msg)
	}
}

// accept records rm if the collector is still collecting. The lock is never
// held across a network call, so the timer can always complete promptly.
func (c *collector) accept(rm *pubsubpb.ReceivedMessage, decode bool) (model.ReceivedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == completed {
		c.returned = append(c.returned, rm.GetAckId())
		return model.ReceivedMessage{}, false
	}

	msg := normalize.Project(rm)
	if decode {
		if err := normalize.DecodeJSON(&msg); err != nil {
			c.returned = append(c.returned, msg.AckID)
			c.completeLocked(err)
			return model.ReceivedMessage{}, false
		}
	}

	c.messages = append(c.messages, msg)
	if len(c.messages) >= c.max {
		c.completeLocked(nil)
	}
	return msg, true
}

// acknowledge acks one collected message in the background with its own
// deadline. A failure is only logged; the message will be redelivered.
func (s *streamingService) acknowledge(ctx context.Context, sub string, msg model.ReceivedMessage) {
	s.acks.Add(1)
	go func() {
		defer s.acks.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ackTimeout)
		defer cancel()

		if err := s.transport.Acknowledge(ctx, sub, []string{msg.AckID}); err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.Message.ID).Msg("Failed to acknowledge message; it may be redelivered")
			return
		}
		s.metrics.MessagesAcknowledged("streamingPull", 1)
	}()
}

func (s *streamingService) Wait() {
	s.acks.Wait()
}

// release hands uncollected deliveries back to the server for prompt redelivery.
func (s *streamingService) release(ctx context.Context, sub string, ackIDs []string) {
	if len(ackIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.transport.ModifyAckDeadline(ctx, sub, ackIDs, 0); err != nil {
		s.logger.Warn().Err(err).Int("count", len(ackIDs)).Msg("Failed to nack uncollected messages; they will be redelivered after their deadline")
		return
	}
	s.metrics.MessagesNacked("streamingPull", len(ackIDs))
}
