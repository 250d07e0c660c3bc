package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"pubsubnode/internal/config"
	"pubsubnode/internal/logger"
	pubsubclient "pubsubnode/internal/pubsub"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// resources maps each local topic to the pull subscriptions created for it.
var resources = map[string][]string{
	"orders":   {"orders-sub", "orders-stream-sub"},
	"invoices": {"invoices-sub"},
}

func main() {
	samples := flag.Int("samples", 5, "Number of sample messages to publish to each topic")
	reset := flag.Bool("reset", false, "Delete every topic and subscription before creating resources")
	flag.Parse()

	// Load environment variables early for local development
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on system environment variables.")
	}

	logger := logger.New()
	logger.Info().Msg("Starting Pub/Sub setup for the local environment.")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if !cfg.IsLocal() {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publisher, err := pubsubclient.NewPublisher(ctx, cfg.GCPProjectID, pubsubclient.ClientOptions(cfg.PubSubEmulatorHost, nil)...)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Msgf("Failed to close pubsub client: %v", err)
		}
	}()

	client := publisher.Client()
	if *reset {
		resetLocalEmulator(ctx, client, logger)
	}
	for topicID, subIDs := range resources {
		topic := createTopicIfNotExists(ctx, client, logger, topicID)
		for _, subID := range subIDs {
			createSubscriptionIfNotExists(ctx, client, logger, subID, topic)
		}
		publishSamples(ctx, publisher, logger, topicID, *samples)
	}

	logger.Info().Msg("Pub/Sub setup for local environment complete.")
}

// resetLocalEmulator performs a destructive reset of all topics and subscriptions.
// This should ONLY be used against the local emulator.
func resetLocalEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) {
	logger.Info().Msg("Deleting all existing resources for a clean local setup")

	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list subscriptions: %v", err)
		}
		logger.Info().Msgf("Deleting subscription: %s", sub.ID())
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Msgf("Failed to delete subscription %s: %v", sub.ID(), err)
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list topics: %v", err)
		}
		logger.Info().Msgf("Deleting topic: %s", topic.ID())
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Msgf("Failed to delete topic %s: %v", topic.ID(), err)
		}
	}
}

func createTopicIfNotExists(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, topicID string) *pubsub.Topic {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if topic %s exists: %v", topicID, err)
	}
	if exists {
		logger.Info().Msgf("Topic %s already exists", topicID)
		return topic
	}

	logger.Info().Msgf("Creating topic: %s", topicID)
	topic, err = client.CreateTopic(ctx, topicID)
	if err != nil {
		logger.Fatal().Msgf("Failed to create topic %s: %v", topicID, err)
	}
	return topic
}

func createSubscriptionIfNotExists(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, subID string, topic *pubsub.Topic) {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if subscription %s exists: %v", subID, err)
	}
	if exists {
		logger.Info().Msgf("Subscription %s already exists", subID)
		return
	}

	logger.Info().Msgf("Creating pull subscription %s on topic %s", subID, topic.ID())
	if _, err := client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{
		Topic:            topic,
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
	}); err != nil {
		logger.Fatal().Msgf("Failed to create subscription '%s': %v", subID, err)
	}
}

func publishSamples(ctx context.Context, publisher pubsubclient.Publisher, logger zerolog.Logger, topicID string, n int) {
	for i := 0; i < n; i++ {
		payload, _ := json.Marshal(map[string]any{"topic": topicID, "sequence": i, "createdAt": time.Now().UTC()})
		id, err := publisher.Publish(ctx, topicID, payload, map[string]string{"source": "setup-pubsub-local"})
		if err != nil {
			logger.Warn().Err(err).Msgf("Failed to publish sample %d to %s", i, topicID)
			continue
		}
		logger.Debug().Str("message_id", id).Msgf("Published sample %d to %s", i, topicID)
	}
	if n > 0 {
		logger.Info().Msgf("Published %d sample messages to %s", n, topicID)
	}
}
