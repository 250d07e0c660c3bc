package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	// Google Cloud project & Pub/Sub
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Stored service-account credential material
	GoogleServiceAccountEmail string `envconfig:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	GooglePrivateKey          string `envconfig:"GOOGLE_PRIVATE_KEY"`
	GooglePrivateKeySecret    string `envconfig:"GOOGLE_PRIVATE_KEY_SECRET"`
	GoogleDelegatedEmail      string `envconfig:"GOOGLE_DELEGATED_EMAIL"`
	GoogleAuthMode            string `envconfig:"GOOGLE_AUTH_MODE" default:"assertion"`
	GoogleTokenURL            string `envconfig:"GOOGLE_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`

	// HTTP surface
	ConnectorJWTSecret string `envconfig:"CONNECTOR_JWT_SECRET"`

	// Optional execution history
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`

	// Operation tuning
	StreamingAckDeadlineSec int `envconfig:"STREAMING_ACK_DEADLINE_SEC" default:"60"`
	AckTimeoutSec           int `envconfig:"ACK_TIMEOUT_SEC" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsLocal reports whether Pub/Sub calls go to the emulator.
func (c *Config) IsLocal() bool {
	return c.PubSubEmulatorHost != ""
}

// AckTimeout bounds the detached acknowledge call issued after a pull.
func (c *Config) AckTimeout() time.Duration {
	if c.AckTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AckTimeoutSec) * time.Second
}
