package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// ChannelProvider hands token requests to an in-process push SDK adapter.
// Requests are dropped while one is already waiting to be read.
type ChannelProvider struct {
	requests chan tokensync.TokenRequest
	platform string
}

func NewChannelProvider(platform string) *ChannelProvider {
	return &ChannelProvider{
		requests: make(chan tokensync.TokenRequest, 1),
		platform: platform,
	}
}

// Requests is read by the adapter that drives the native SDK.
func (p *ChannelProvider) Requests() <-chan tokensync.TokenRequest {
	return p.requests
}

func (p *ChannelProvider) RequestToken(ctx context.Context) error {
	req := tokensync.TokenRequest{
		RequestID:   uuid.NewString(),
		Platform:    p.platform,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	default:
		// A request is already queued; the adapter will issue one token for both.
	}
	return nil
}
