package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"pubsubnode/internal/pubsub"
)

const testProject = "test-project"

type ackCall struct {
	Subscription string
	AckIDs       []string
}

// fakeTransport records calls and replays scripted responses.
type fakeTransport struct {
	mu sync.Mutex

	names    []string
	pageSize int
	token    string

	pullResp *pubsubpb.PullResponse
	pullErr  error

	// stream is delivered in order by StreamingPull; when ignoreCancel is
	// false delivery stops as soon as ctx is cancelled.
	stream       []*pubsubpb.ReceivedMessage
	ignoreCancel bool
	streamErr    error

	// ackDelay holds each Acknowledge until it elapses or ctx is done.
	ackDelay time.Duration
	ackErr   error
	acks     []ackCall
	nacks  []ackCall
}

var _ pubsub.Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) ListTopicSubscriptions(_ context.Context, topic string) ([]string, error) {
	return append([]string(nil), f.names...), nil
}

func (f *fakeTransport) ListTopicSubscriptionsPage(_ context.Context, topic string, pageSize int, pageToken string) ([]string, string, error) {
	f.mu.Lock()
	f.pageSize, f.token = pageSize, pageToken
	f.mu.Unlock()
	if pageSize <= 0 || pageSize > len(f.names) {
		return append([]string(nil), f.names...), "", nil
	}
	return append([]string(nil), f.names[:pageSize]...), "next-token", nil
}

func (f *fakeTransport) Pull(_ context.Context, subscription string, maxMessages int) (*pubsubpb.PullResponse, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return f.pullResp, nil
}

func (f *fakeTransport) StreamingPull(ctx context.Context, subscription string, opts pubsub.StreamOptions, onMessage func(*pubsubpb.ReceivedMessage)) error {
	for _, rm := range f.stream {
		if !f.ignoreCancel && ctx.Err() != nil {
			return nil
		}
		onMessage(rm)
	}
	if f.streamErr != nil {
		return f.streamErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Acknowledge(ctx context.Context, subscription string, ackIDs []string) error {
	call := ackCall{Subscription: subscription, AckIDs: append([]string(nil), ackIDs...)}
	f.mu.Lock()
	f.acks = append(f.acks, call)
	f.mu.Unlock()
	if f.ackDelay > 0 {
		select {
		case <-time.After(f.ackDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.ackErr
}

func (f *fakeTransport) ModifyAckDeadline(_ context.Context, subscription string, ackIDs []string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks = append(f.nacks, ackCall{Subscription: subscription, AckIDs: append([]string(nil), ackIDs...)})
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acks)
}

func (f *fakeTransport) nackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.nacks {
		ids = append(ids, c.AckIDs...)
	}
	return ids
}

func receivedMessages(n int, payload func(i int) string) []*pubsubpb.ReceivedMessage {
	out := make([]*pubsubpb.ReceivedMessage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &pubsubpb.ReceivedMessage{
			AckId: fmt.Sprintf("ack-%d", i),
			Message: &pubsubpb.PubsubMessage{
				MessageId:   fmt.Sprintf("m-%d", i),
				Data:        []byte(payload(i)),
				Attributes:  map[string]string{"i": fmt.Sprint(i)},
				PublishTime: timestamppb.Now(),
			},
		})
	}
	return out
}

func jsonPayload(i int) string { return fmt.Sprintf(`{"n":%d}`, i) }
