package node

import (
	"context"
	"encoding/json"
	"time"

	"pubsubnode/internal/model"
	"pubsubnode/internal/service"
)

// Resources and operations understood by the connector.
const (
	ResourceTopicsSubscriptions = "topicsSubscriptions"
	ResourceMessages            = "messages"

	OperationList          = "list"
	OperationPull          = "pull"
	OperationStreamingPull = "streamingPull"
	OperationAcknowledge   = "acknowledge"
)

// services are built once per execution around a single transport.
type services struct {
	subscriptions service.TopicSubscriptionService
	pull          service.PullService
	streaming     service.StreamingService
	ack           service.AckService
}

type operationFunc func(ctx context.Context, e *Executor, s *services, params json.RawMessage) (any, error)

var operations = map[string]map[string]operationFunc{
	ResourceTopicsSubscriptions: {
		OperationList: listSubscriptions,
	},
	ResourceMessages: {
		OperationPull:          pullMessages,
		OperationStreamingPull: streamingPullMessages,
		OperationAcknowledge:   acknowledgeMessages,
	},
}

func lookupOperation(resource, operation string) (operationFunc, error) {
	ops, ok := operations[resource]
	if !ok {
		return nil, configErrorf("The resource %q is not supported!", resource)
	}
	op, ok := ops[operation]
	if !ok {
		return nil, configErrorf("The operation %q is not supported for resource %q!", operation, resource)
	}
	return op, nil
}

func listSubscriptions(ctx context.Context, e *Executor, s *services, raw json.RawMessage) (any, error) {
	var p ListParams
	if err := decodeParams(e.validate, raw, &p); err != nil {
		return nil, err
	}
	res, err := s.subscriptions.List(ctx, service.ListSubscriptionsOptions{
		Topic:     model.TopicRef(p.Topic),
		PageSize:  p.PageSize,
		PageToken: p.PageToken,
	})
	if err != nil {
		return nil, err
	}
	if p.SimplifyOutput && res.Page != nil {
		return res.Page.Subscriptions, nil
	}
	return res.Value(), nil
}

func pullMessages(ctx context.Context, e *Executor, s *services, raw json.RawMessage) (any, error) {
	p := defaultPullParams()
	if err := decodeParams(e.validate, raw, &p); err != nil {
		return nil, err
	}
	return s.pull.Pull(ctx, service.PullOptions{
		PullRequest: model.PullRequest{
			Subscription:        model.SubscriptionRef(p.Subscription),
			MaxMessages:         p.MaxMessages,
			AllowExcessMessages: p.AllowExcessMessages,
		},
		AcknowledgeMessages: p.AcknowledgeMessages,
		DecodeJSON:          p.DecodeJSON,
	})
}

func streamingPullMessages(ctx context.Context, e *Executor, s *services, raw json.RawMessage) (any, error) {
	p := defaultStreamingPullParams()
	if err := decodeParams(e.validate, raw, &p); err != nil {
		return nil, err
	}
	return s.streaming.Collect(ctx, service.StreamingPullOptions{
		Subscription:        model.SubscriptionRef(p.Subscription),
		MaxMessages:         p.MaxMessages,
		Timeout:             time.Duration(p.Timeout) * time.Second,
		AcknowledgeMessages: p.AcknowledgeMessages,
		DecodeJSON:          p.DecodeJSON,
	})
}

func acknowledgeMessages(ctx context.Context, e *Executor, s *services, raw json.RawMessage) (any, error) {
	var p AcknowledgeParams
	if err := decodeParams(e.validate, raw, &p); err != nil {
		return nil, err
	}
	ids, err := resolveAckIDs(p.AckIDs, p.JSONAckIDs)
	if err != nil {
		return nil, err
	}
	if err := s.ack.Acknowledge(ctx, model.AcknowledgeRequest{
		Subscription: model.SubscriptionRef(p.Subscription),
		AckIDs:       ids,
	}); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}
