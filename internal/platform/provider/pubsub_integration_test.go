//go:build integration

package provider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/internal/platform/provider"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

func TestPubsubProvider_PublishesTokenRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-provider"

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	topicID := "token-requests-" + uuid.NewString()
	subID := topicID + "-sub"
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)

	_, err = psClient.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	_, err = psClient.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
	})
	require.NoError(t, err)

	p := provider.NewPubsubProvider(psClient, topicID, "android", logger)
	t.Cleanup(p.Stop)
	require.NoError(t, p.RequestToken(ctx))

	received := make(chan tokensync.TokenRequest, 1)
	recvCtx, recvCancel := context.WithCancel(ctx)
	defer recvCancel()
	go func() {
		_ = psClient.Subscriber(subID).Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			var req tokensync.TokenRequest
			if json.Unmarshal(msg.Data, &req) == nil {
				select {
				case received <- req:
				default:
				}
			}
		})
	}()

	select {
	case req := <-received:
		assert.Equal(t, "android", req.Platform)
		assert.NotEmpty(t, req.RequestID)
	case <-ctx.Done():
		t.Fatal("token request was not delivered")
	}
}
