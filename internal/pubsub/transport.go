package pubsub

import (
	"context"
	"errors"
	"fmt"

	vkit "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Transport is the subset of the Pub/Sub v1 API the connector consumes.
// All names are fully-qualified resource paths.
type Transport interface {
	ListTopicSubscriptions(ctx context.Context, topic string) ([]string, error)
	ListTopicSubscriptionsPage(ctx context.Context, topic string, pageSize int, pageToken string) ([]string, string, error)
	Pull(ctx context.Context, subscription string, maxMessages int) (*pubsubpb.PullResponse, error)
	// StreamingPull delivers messages to onMessage, one at a time, until ctx is
	// cancelled or the stream fails. It returns nil when stopped by ctx.
	StreamingPull(ctx context.Context, subscription string, opts StreamOptions, onMessage func(*pubsubpb.ReceivedMessage)) error
	Acknowledge(ctx context.Context, subscription string, ackIDs []string) error
	ModifyAckDeadline(ctx context.Context, subscription string, ackIDs []string, seconds int) error
	Close() error
}

// StreamOptions are sent with the initial StreamingPull request.
type StreamOptions struct {
	AckDeadlineSeconds     int
	MaxOutstandingMessages int
}

// GRPCTransport implements Transport over the generated v1 gRPC clients.
type GRPCTransport struct {
	sub *vkit.SubscriberClient
	pub *vkit.PublisherClient
}

var _ Transport = (*GRPCTransport)(nil)

// NewTransport dials the publisher and subscriber services with opts.
func NewTransport(ctx context.Context, opts ...option.ClientOption) (*GRPCTransport, error) {
	sub, err := vkit.NewSubscriberClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub subscriber client: %w", err)
	}
	pub, err := vkit.NewPublisherClient(ctx, opts...)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to create Pub/Sub publisher client: %w", err)
	}
	return &GRPCTransport{sub: sub, pub: pub}, nil
}

// ClientOptions returns the options for talking to the emulator when
// emulatorHost is set, otherwise for authenticating with ts.
func ClientOptions(emulatorHost string, ts oauth2.TokenSource) []option.ClientOption {
	if emulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(emulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	return []option.ClientOption{option.WithTokenSource(ts)}
}

func (t *GRPCTransport) ListTopicSubscriptions(ctx context.Context, topic string) ([]string, error) {
	it := t.pub.ListTopicSubscriptions(ctx, &pubsubpb.ListTopicSubscriptionsRequest{Topic: topic})
	names := []string{}
	for {
		name, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions of topic %s: %w", topic, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (t *GRPCTransport) ListTopicSubscriptionsPage(ctx context.Context, topic string, pageSize int, pageToken string) ([]string, string, error) {
	it := t.pub.ListTopicSubscriptions(ctx, &pubsubpb.ListTopicSubscriptionsRequest{Topic: topic})
	names := []string{}
	next, err := iterator.NewPager(it, pageSize, pageToken).NextPage(&names)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list subscriptions page of topic %s: %w", topic, err)
	}
	return names, next, nil
}

func (t *GRPCTransport) Pull(ctx context.Context, subscription string, maxMessages int) (*pubsubpb.PullResponse, error) {
	resp, err := t.sub.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: subscription,
		MaxMessages:  int32(maxMessages),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pull from subscription %s: %w", subscription, err)
	}
	return resp, nil
}

func (t *GRPCTransport) StreamingPull(ctx context.Context, subscription string, opts StreamOptions, onMessage func(*pubsubpb.ReceivedMessage)) error {
	stream, err := t.sub.StreamingPull(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open streaming pull on %s: %w", subscription, err)
	}
	err = stream.Send(&pubsubpb.StreamingPullRequest{
		Subscription:             subscription,
		StreamAckDeadlineSeconds: int32(opts.AckDeadlineSeconds),
		MaxOutstandingMessages:   int64(opts.MaxOutstandingMessages),
		ClientId:                 uuid.NewString(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to start streaming pull on %s: %w", subscription, err)
	}
	defer func() { _ = stream.CloseSend() }()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("streaming pull on %s failed: %w", subscription, err)
		}
		for _, rm := range resp.GetReceivedMessages() {
			onMessage(rm)
		}
	}
}

func (t *GRPCTransport) Acknowledge(ctx context.Context, subscription string, ackIDs []string) error {
	err := t.sub.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: subscription,
		AckIds:       ackIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge %d messages on %s: %w", len(ackIDs), subscription, err)
	}
	return nil
}

func (t *GRPCTransport) ModifyAckDeadline(ctx context.Context, subscription string, ackIDs []string, seconds int) error {
	err := t.sub.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
		Subscription:       subscription,
		AckIds:             ackIDs,
		AckDeadlineSeconds: int32(seconds),
	})
	if err != nil {
		return fmt.Errorf("failed to modify ack deadline on %s: %w", subscription, err)
	}
	return nil
}

func (t *GRPCTransport) Close() error {
	return errors.Join(t.sub.Close(), t.pub.Close())
}
