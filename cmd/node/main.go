package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pubsubnode/internal/config"
	"pubsubnode/internal/credential"
	"pubsubnode/internal/logger"
	"pubsubnode/internal/node"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Parse flags
	resource := flag.String("resource", "", "Resource: topicsSubscriptions|messages")
	operation := flag.String("operation", "", "Operation: list|pull|streamingPull|acknowledge")
	projectID := flag.String("project", "", "Google Cloud project ID (defaults to GCP_PROJECT_ID)")
	continueOnFail := flag.Bool("continue-on-fail", false, "Emit {\"error\": ...} for failed items instead of aborting")
	credentialsFile := flag.String("credentials", "", "Path to a JSON file with email, privateKey and delegatedEmail")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("No .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exec, cleanup, err := node.NewFromConfig(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to set up executor: %v", err)
	}
	defer cleanup()

	in := node.ExecuteInput{
		Resource:       *resource,
		Operation:      *operation,
		ProjectID:      *projectID,
		ContinueOnFail: *continueOnFail,
	}
	if *credentialsFile != "" {
		creds, err := readCredentials(*credentialsFile)
		if err != nil {
			logger.Fatal().Msgf("Failed to read credentials: %v", err)
		}
		in.Credentials = creds
	}
	in.Items, err = readItems(os.Stdin)
	if err != nil {
		logger.Fatal().Msgf("Failed to read items: %v", err)
	}

	out, err := exec.Execute(ctx, in)
	if err != nil {
		logger.Error().Err(err).Msg("Execution failed")
		cleanup()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal().Msgf("Failed to write output: %v", err)
	}
}

// readItems accepts either a JSON array of parameter objects or a single object.
func readItems(r io.Reader) ([]json.RawMessage, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("stdin is not valid JSON: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	return []json.RawMessage{raw}, nil
}

func readCredentials(path string) (*credential.Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds credential.Credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &creds, nil
}
