package service

import (
	"context"

	"pubsubnode/internal/model"
	"pubsubnode/internal/pubsub"

	"github.com/rs/zerolog"
)

// ListSubscriptionsOptions selects a topic and, optionally, one page of its subscriptions.
type ListSubscriptionsOptions struct {
	Topic     model.TopicRef
	PageSize  int
	PageToken string
}

// Paged reports whether the caller asked for a single page.
func (o ListSubscriptionsOptions) Paged() bool {
	return o.PageSize > 0 || o.PageToken != ""
}

// ListSubscriptionsResult holds exactly one of Names (unpaged) or Page (paged).
type ListSubscriptionsResult struct {
	Names []string
	Page  *model.SubscriptionPage
}

// Value is the bare name list for unpaged listings and the page envelope otherwise.
func (r ListSubscriptionsResult) Value() any {
	if r.Page != nil {
		return *r.Page
	}
	return r.Names
}

type TopicSubscriptionService interface {
	List(ctx context.Context, opts ListSubscriptionsOptions) (ListSubscriptionsResult, error)
}

type topicSubscriptionService struct {
	transport pubsub.Transport
	projectID string
	logger    zerolog.Logger
}

func NewTopicSubscriptionService(t pubsub.Transport, projectID string, logger zerolog.Logger) TopicSubscriptionService {
	return &topicSubscriptionService{
		transport: t,
		projectID: projectID,
		logger:    logger.With().Str("service", "TopicSubscriptionService").Logger(),
	}
}

// List issues an unpaged listing when no paging parameters are set and a
// single-page listing otherwise. The two response shapes differ.
func (s *topicSubscriptionService) List(ctx context.Context, opts ListSubscriptionsOptions) (ListSubscriptionsResult, error) {
	topic := opts.Topic.Path(s.projectID)

	if !opts.Paged() {
		names, err := s.transport.ListTopicSubscriptions(ctx, topic)
		if err != nil {
			return ListSubscriptionsResult{}, err
		}
		s.logger.Debug().Str("topic", topic).Int("count", len(names)).Msg("Listed topic subscriptions")
		return ListSubscriptionsResult{Names: names}, nil
	}

	names, next, err := s.transport.ListTopicSubscriptionsPage(ctx, topic, opts.PageSize, opts.PageToken)
	if err != nil {
		return ListSubscriptionsResult{}, err
	}
	s.logger.Debug().
		Str("topic", topic).
		Int("count", len(names)).
		Bool("has_more", next != "").
		Msg("Listed topic subscriptions page")
	return ListSubscriptionsResult{Page: &model.SubscriptionPage{Subscriptions: names, NextPageToken: next}}, nil
}
