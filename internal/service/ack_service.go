package service

import (
	"context"

	"pubsubnode/internal/metrics"
	"pubsubnode/internal/model"
	"pubsubnode/internal/pubsub"

	"github.com/rs/zerolog"
)

// AckService submits acknowledgements.
type AckService interface {
	Acknowledge(ctx context.Context, req model.AcknowledgeRequest) error
}

type ackService struct {
	transport pubsub.Transport
	projectID string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewAckService(t pubsub.Transport, projectID string, logger zerolog.Logger, m *metrics.Metrics) AckService {
	return &ackService{
		transport: t,
		projectID: projectID,
		logger:    logger.With().Str("service", "AckService").Logger(),
		metrics:   m,
	}
}

// Acknowledge sends one acknowledge call for all of req.AckIDs. An empty list
// makes no call. Unknown, expired or repeated IDs are accepted by the server.
func (s *ackService) Acknowledge(ctx context.Context, req model.AcknowledgeRequest) error {
	if len(req.AckIDs) == 0 {
		s.logger.Debug().Msg("No ack IDs given, nothing to acknowledge")
		return nil
	}
	sub := req.Subscription.Path(s.projectID)
	if err := s.transport.Acknowledge(ctx, sub, req.AckIDs); err != nil {
		return err
	}
	s.metrics.MessagesAcknowledged("acknowledge", len(req.AckIDs))
	s.logger.Debug().Str("subscription", sub).Int("count", len(req.AckIDs)).Msg("Acknowledged messages")
	return nil
}
