package node

import (
	"context"

	"pubsubnode/internal/config"
	"pubsubnode/internal/credential"
	"pubsubnode/internal/pubsub"
)

// NewTransportFactory returns the factory used in production. Against the
// emulator no identity is needed; otherwise creds are turned into a token
// source, loading the private key from secrets when it is not set inline.
// secrets may be nil.
func NewTransportFactory(cfg *config.Config, secrets credential.SecretStore) TransportFactory {
	return func(ctx context.Context, creds credential.Credentials) (pubsub.Transport, error) {
		if cfg.IsLocal() {
			t, err := pubsub.NewTransport(ctx, pubsub.ClientOptions(cfg.PubSubEmulatorHost, nil)...)
			if err != nil {
				return nil, err
			}
			return t, nil
		}

		if secrets != nil {
			var err error
			creds, err = credential.ResolvePrivateKey(ctx, secrets, creds, cfg.GooglePrivateKeySecret)
			if err != nil {
				return nil, err
			}
		}
		ts, err := credential.NewTokenSource(ctx, creds, credential.Options{
			Mode:     cfg.GoogleAuthMode,
			TokenURL: cfg.GoogleTokenURL,
		})
		if err != nil {
			return nil, err
		}
		t, err := pubsub.NewTransport(ctx, pubsub.ClientOptions("", ts)...)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// OptionsFromConfig collects the execution defaults from the environment.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ProjectID: cfg.GCPProjectID,
		Credentials: credential.Credentials{
			Email:          cfg.GoogleServiceAccountEmail,
			PrivateKey:     cfg.GooglePrivateKey,
			DelegatedEmail: cfg.GoogleDelegatedEmail,
		},
		AckTimeout:                  cfg.AckTimeout(),
		StreamingAckDeadlineSeconds: cfg.StreamingAckDeadlineSec,
	}
}
