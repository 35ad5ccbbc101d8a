// Package storetest holds the behavioural suite every tokensync.LocalStore must pass.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// RunContract exercises newStore against the LocalStore contract.
// newStore must return an empty store on every call.
func RunContract(t *testing.T, newStore func(t *testing.T) tokensync.LocalStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Empty store reports absence without error", func(t *testing.T) {
		store := newStore(t)

		_, found, err := store.Token(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		session, err := store.Session(ctx)
		require.NoError(t, err)
		assert.False(t, session.Present())

		require.NoError(t, store.ClearSession(ctx))
		cleared, err := store.MarkSynced(ctx, "nothing")
		require.NoError(t, err)
		assert.False(t, cleared)
	})

	t.Run("SetToken overwrites value and pending flag", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.SetToken(ctx, "token-1", true))
		require.NoError(t, store.SetToken(ctx, "token-2", true))
		require.NoError(t, store.SetToken(ctx, "token-2", true))

		tok, found, err := store.Token(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, tokensync.DeviceToken{Value: "token-2", PendingSync: true}, tok)
	})

	t.Run("MarkSynced only clears the matching value", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SetToken(ctx, "fresh", true))

		cleared, err := store.MarkSynced(ctx, "stale")
		require.NoError(t, err)
		assert.False(t, cleared)

		tok, _, err := store.Token(ctx)
		require.NoError(t, err)
		assert.True(t, tok.PendingSync)

		cleared, err = store.MarkSynced(ctx, "fresh")
		require.NoError(t, err)
		assert.True(t, cleared)

		cleared, err = store.MarkSynced(ctx, "fresh")
		require.NoError(t, err)
		assert.True(t, cleared, "repeated MarkSynced is idempotent")

		tok, _, err = store.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, tokensync.DeviceToken{Value: "fresh", PendingSync: false}, tok)
	})

	t.Run("Session round trip and clear", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.SetSession(ctx, "u1", "tok1"))
		session, err := store.Session(ctx)
		require.NoError(t, err)
		assert.Equal(t, tokensync.Session{UserID: "u1", AccessToken: "tok1"}, session)

		require.NoError(t, store.SetSession(ctx, "u2", ""))
		session, err = store.Session(ctx)
		require.NoError(t, err)
		assert.Equal(t, tokensync.Session{UserID: "u2"}, session)

		require.NoError(t, store.ClearSession(ctx))
		require.NoError(t, store.ClearSession(ctx))
		session, err = store.Session(ctx)
		require.NoError(t, err)
		assert.Equal(t, tokensync.Session{}, session)
	})

	t.Run("Session and token namespaces are independent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SetToken(ctx, "kept", true))
		require.NoError(t, store.SetSession(ctx, "u1", "tok1"))
		require.NoError(t, store.ClearSession(ctx))

		tok, found, err := store.Token(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "kept", tok.Value)
	})

	t.Run("Concurrent MarkSynced is safe", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SetToken(ctx, "raced", true))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.MarkSynced(ctx, "raced")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		tok, _, err := store.Token(ctx)
		require.NoError(t, err)
		assert.False(t, tok.PendingSync)
	})
}
