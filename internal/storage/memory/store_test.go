package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/internal/storage/memory"
	"github.com/tinywideclouds/go-token-sync/internal/storage/storetest"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

func TestStore_Contract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) tokensync.LocalStore {
		return memory.NewStore()
	})
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SetToken(ctx, "abc", true))
	require.NoError(t, store.SetSession(ctx, "u1", "tok1"))

	store.Reset()

	_, found, err := store.Token(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	session, err := store.Session(ctx)
	require.NoError(t, err)
	assert.False(t, session.Present())
}
