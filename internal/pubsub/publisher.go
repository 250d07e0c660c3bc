package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher for projectID.
func NewPublisher(ctx context.Context, projectID string, opts ...option.ClientOption) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Client exposes the underlying client for administrative calls.
func (p *PubSubPublisher) Client() *pubsub.Client {
	return p.client
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attributes map[string]string) (string, error) {
	t := p.client.Topic(topic)
	defer t.Stop()
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attributes})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}
