package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/internal/platform/provider"
)

func TestChannelProvider(t *testing.T) {
	ctx := context.Background()
	p := provider.NewChannelProvider("android")

	require.NoError(t, p.RequestToken(ctx))

	select {
	case req := <-p.Requests():
		assert.Equal(t, "android", req.Platform)
		_, err := uuid.Parse(req.RequestID)
		assert.NoError(t, err)
		_, err = time.Parse(time.RFC3339, req.RequestedAt)
		assert.NoError(t, err)
	default:
		t.Fatal("expected a queued token request")
	}
}

func TestChannelProvider_CoalescesPendingRequests(t *testing.T) {
	ctx := context.Background()
	p := provider.NewChannelProvider("ios")

	require.NoError(t, p.RequestToken(ctx))
	require.NoError(t, p.RequestToken(ctx))

	assert.Len(t, p.Requests(), 1)
}
