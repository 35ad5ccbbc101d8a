// --- File: internal/platform/provider/pubsub.go ---
// Package provider asks the push provider for fresh tokens.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// PubsubProvider publishes a TokenRequest for the device-side relay, which
// answers with a token_refreshed event on the provider-event subscription.
type PubsubProvider struct {
	publisher *pubsub.Publisher
	platform  string
	now       func() time.Time
	logger    *slog.Logger
}

func NewPubsubProvider(client *pubsub.Client, topicID, platform string, logger *slog.Logger) *PubsubProvider {
	return &PubsubProvider{
		publisher: client.Publisher(topicID),
		platform:  platform,
		now:       time.Now,
		logger:    logger.With("component", "PubsubProvider", "topic", topicID),
	}
}

// RequestToken blocks until Pub/Sub acknowledges the publish.
func (p *PubsubProvider) RequestToken(ctx context.Context) error {
	req := tokensync.TokenRequest{
		RequestID:   uuid.NewString(),
		Platform:    p.platform,
		RequestedAt: p.now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal token request: %w", err)
	}

	id, err := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"platform": p.platform},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish token request: %w", err)
	}

	p.logger.Info("Token request published", "request_id", req.RequestID, "pubsub_msg_id", id)
	return nil
}

// Stop flushes pending publishes.
func (p *PubsubProvider) Stop() {
	p.publisher.Stop()
}
