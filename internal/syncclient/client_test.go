package syncclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/internal/syncclient"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2025, 3, 9, 14, 5, 7, 123_000_000, time.FixedZone("CET", 3600))

func newClient(baseURL string, timeout time.Duration) *syncclient.Client {
	return syncclient.New(syncclient.Config{
		BaseURL:    baseURL,
		AnonKey:    "anon-key",
		Platform:   "android",
		AppVersion: "1.0.0",
		Timeout:    timeout,
	}, newTestLogger(), syncclient.WithClock(func() time.Time { return fixedNow }))
}

func TestUpload_WireFormat(t *testing.T) {
	var captured *http.Request
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"row-1"}]`))
	}))
	defer server.Close()

	client := newClient(server.URL+"/", time.Second)
	err := client.Upload(context.Background(), tokensync.Session{UserID: "u1", AccessToken: "tok1"}, "abc123")
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/rest/v1/client_devices", captured.URL.Path)
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "anon-key", captured.Header.Get("apikey"))
	assert.Equal(t, "resolution=merge-duplicates,return=representation", captured.Header.Get("Prefer"))
	assert.Equal(t, "Bearer tok1", captured.Header.Get("Authorization"))

	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, "abc123", body["fcm_token"])
	assert.Equal(t, "android", body["platform"])
	assert.Equal(t, "2025-03-09T13:05:07.123Z", body["updated_at"])

	info, ok := body["device_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(fixedNow.UnixMilli()), info["timestamp"])
	assert.Equal(t, "1.0.0", info["app_version"])
}

func TestUpload_AnonymousKeyWithoutBearer(t *testing.T) {
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newClient(server.URL, time.Second).Upload(context.Background(), tokensync.Session{UserID: "u1"}, "abc123")
	require.NoError(t, err)

	assert.Equal(t, "anon-key", headers.Get("apikey"))
	assert.Empty(t, headers.Get("Authorization"))
}

func TestUpload_Classification(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		wantKind tokensync.UploadErrorKind
	}{
		{name: "Created is confirmed", status: http.StatusCreated},
		{name: "No Content is confirmed", status: http.StatusNoContent},
		{name: "Server error is rejected", status: http.StatusInternalServerError, body: `{"message":"boom"}`, wantKind: tokensync.Rejected},
		{name: "Conflict is rejected", status: http.StatusConflict, body: "duplicate key", wantKind: tokensync.Rejected},
		{name: "Unauthorized is rejected", status: http.StatusUnauthorized, body: `{"message":"JWT expired"}`, wantKind: tokensync.Rejected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			err := newClient(server.URL, time.Second).Upload(context.Background(), tokensync.Session{UserID: "u1"}, "abc123")
			if tc.wantKind == 0 {
				require.NoError(t, err)
				return
			}

			var ue *tokensync.UploadError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tc.wantKind, ue.Kind)
			assert.Equal(t, tc.status, ue.StatusCode)
			assert.Equal(t, tc.body, ue.Body)
			assert.True(t, tokensync.IsRejected(err))
		})
	}
}

func TestUpload_NetworkFailure(t *testing.T) {
	t.Run("Connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		err := newClient(url, time.Second).Upload(context.Background(), tokensync.Session{UserID: "u1"}, "abc123")
		require.Error(t, err)
		assert.True(t, tokensync.IsNetwork(err))
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		err := newClient(server.URL, 50*time.Millisecond).Upload(context.Background(), tokensync.Session{UserID: "u1"}, "abc123")
		require.Error(t, err)
		assert.True(t, tokensync.IsNetwork(err))
	})
}

func TestUpload_PreconditionsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()
	client := newClient(server.URL, time.Second)

	err := client.Upload(context.Background(), tokensync.Session{}, "abc123")
	assert.True(t, errors.Is(err, tokensync.ErrInvalidArgument))

	err = client.Upload(context.Background(), tokensync.Session{UserID: "u1"}, "")
	assert.True(t, errors.Is(err, tokensync.ErrInvalidArgument))

	assert.Equal(t, int32(0), calls.Load())
}

func TestRemove(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := newClient(server.URL, time.Second).Remove(context.Background(), tokensync.Session{UserID: "u1", AccessToken: "tok1"}, "abc:123")
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodDelete, captured.Method)
	assert.Equal(t, "/rest/v1/client_devices", captured.URL.Path)
	assert.Equal(t, "eq.u1", captured.URL.Query().Get("user_id"))
	assert.Equal(t, "eq.abc:123", captured.URL.Query().Get("fcm_token"))
	assert.Equal(t, "anon-key", captured.Header.Get("apikey"))
	assert.Equal(t, "Bearer tok1", captured.Header.Get("Authorization"))
}
