// --- File: internal/pipeline/transformer.go ---
// Package pipeline turns relayed push-provider events into coordinator calls.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// ProviderEventTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a tokensync.ProviderEvent.
//
// Malformed payloads, and payloads without an event type, return an error with
// skip=true so the StreamingService can handle the Nack/DLQ logic.
func ProviderEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*tokensync.ProviderEvent, bool, error) {
	var event tokensync.ProviderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal provider event from message %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		return nil, true, fmt.Errorf("provider event in message %s has no type", msg.ID)
	}
	return &event, false, nil
}
