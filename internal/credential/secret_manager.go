package credential

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretStore reads secret payloads by version resource name.
type SecretStore interface {
	Access(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerStore struct {
	client *secretmanager.Client
}

func NewSecretManagerStore(ctx context.Context, opts ...option.ClientOption) (SecretStore, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerStore{client: client}, nil
}

// Access returns the payload of name, e.g. projects/p/secrets/pubsub-key/versions/latest.
func (s *secretManagerStore) Access(ctx context.Context, name string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}
	return string(result.GetPayload().GetData()), nil
}

func (s *secretManagerStore) Close() error {
	return s.client.Close()
}

// ResolvePrivateKey fills in creds.PrivateKey from the store when the key is
// held in Secret Manager rather than in the environment.
func ResolvePrivateKey(ctx context.Context, store SecretStore, creds Credentials, secretName string) (Credentials, error) {
	if creds.PrivateKey != "" || secretName == "" {
		return creds, nil
	}
	key, err := store.Access(ctx, secretName)
	if err != nil {
		return creds, err
	}
	creds.PrivateKey = key
	return creds, nil
}
