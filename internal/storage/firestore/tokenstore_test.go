// --- File: internal/storage/firestore/tokenstore_test.go ---
//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-token-sync/internal/storage/firestore"
	"github.com/tinywideclouds/go-token-sync/internal/storage/storetest"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

func setupSuite(t *testing.T) (context.Context, *firestore.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-token-sync"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, client
}

func TestFirestoreStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)

	t.Run("Contract", func(t *testing.T) {
		storetest.RunContract(t, func(t *testing.T) tokensync.LocalStore {
			// A fresh installation id gives every case an empty document.
			return fs.NewFirestoreStore(client, uuid.NewString())
		})
	})

	t.Run("Token and session share one document", func(t *testing.T) {
		installation := uuid.NewString()
		store := fs.NewFirestoreStore(client, installation)

		require.NoError(t, store.SetToken(ctx, "abc123", true))
		require.NoError(t, store.SetSession(ctx, "u1", "tok1"))

		doc, err := client.Collection("installations").Doc(installation).Get(ctx)
		require.NoError(t, err)
		assert.Contains(t, doc.Data(), "token")
		assert.Contains(t, doc.Data(), "session")

		require.NoError(t, store.ClearSession(ctx))
		doc, err = client.Collection("installations").Doc(installation).Get(ctx)
		require.NoError(t, err)
		assert.NotContains(t, doc.Data(), "session")
		assert.Contains(t, doc.Data(), "token")
	})
}
