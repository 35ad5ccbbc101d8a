package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// EventHandler receives the events relayed from the push provider.
// *coordinator.Coordinator satisfies it.
type EventHandler interface {
	TokenIssued(ctx context.Context, token string) error
	MessageReceived(ctx context.Context, msg tokensync.IncomingMessage)
}

// NewProcessor routes each provider event to the handler.
// Unknown event types are acknowledged and dropped; a store failure while
// caching a token is returned so the message is redelivered.
func NewProcessor(handler EventHandler, logger *slog.Logger) messagepipeline.StreamProcessor[tokensync.ProviderEvent] {
	return func(ctx context.Context, original messagepipeline.Message, event *tokensync.ProviderEvent) error {
		procLogger := logger.With(
			"event_type", string(event.Type),
			"pubsub_msg_id", original.ID,
		)

		switch event.Type {
		case tokensync.EventTokenRefreshed:
			if err := handler.TokenIssued(ctx, event.Token); err != nil {
				procLogger.Error("Failed to record issued token", "err", err)
				return fmt.Errorf("token issued: %w", err)
			}
		case tokensync.EventMessageReceived:
			handler.MessageReceived(ctx, event.Message())
		default:
			procLogger.Warn("Unknown provider event; dropping")
		}
		return nil
	}
}
