// --- File: internal/storage/cache/tokenstore.go ---
// Package cache implements the LocalStore on Redis hashes.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

const (
	fieldValue       = "value"
	fieldPending     = "pending"
	fieldUserID      = "user_id"
	fieldAccessToken = "access_token"
)

// markSyncedScript clears the pending flag only when the cached value matches ARGV[1].
var markSyncedScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'value') == ARGV[1] then
	redis.call('HSET', KEYS[1], 'pending', '0')
	return 1
end
return 0
`)

// RedisTokenStore keeps one installation's state under "<prefix>:token" and "<prefix>:session".
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "tokensync"
	}
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) Token(ctx context.Context) (tokensync.DeviceToken, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey()).Result()
	if err != nil {
		return tokensync.DeviceToken{}, false, fmt.Errorf("redis token read failed: %w", err)
	}
	value := fields[fieldValue]
	if value == "" {
		return tokensync.DeviceToken{}, false, nil
	}
	return tokensync.DeviceToken{Value: value, PendingSync: fields[fieldPending] == "1"}, true, nil
}

func (s *RedisTokenStore) SetToken(ctx context.Context, value string, pendingSync bool) error {
	pending := "0"
	if pendingSync {
		pending = "1"
	}
	if err := s.client.HSet(ctx, s.tokenKey(), fieldValue, value, fieldPending, pending).Err(); err != nil {
		return fmt.Errorf("redis token write failed: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) MarkSynced(ctx context.Context, value string) (bool, error) {
	n, err := markSyncedScript.Run(ctx, s.client, []string{s.tokenKey()}, value).Int()
	if err != nil {
		return false, fmt.Errorf("redis mark synced failed: %w", err)
	}
	return n == 1, nil
}

func (s *RedisTokenStore) Session(ctx context.Context) (tokensync.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey()).Result()
	if err != nil {
		return tokensync.Session{}, fmt.Errorf("redis session read failed: %w", err)
	}
	return tokensync.Session{
		UserID:      fields[fieldUserID],
		AccessToken: fields[fieldAccessToken],
	}, nil
}

func (s *RedisTokenStore) SetSession(ctx context.Context, userID, accessToken string) error {
	// Replace the whole hash so a missing access token does not keep the previous one.
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey())
	pipe.HSet(ctx, s.sessionKey(), fieldUserID, userID, fieldAccessToken, accessToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis session write failed: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) ClearSession(ctx context.Context) error {
	if err := s.client.Del(ctx, s.sessionKey()).Err(); err != nil {
		return fmt.Errorf("redis session clear failed: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) tokenKey() string {
	return fmt.Sprintf("%s:token", s.prefix)
}

func (s *RedisTokenStore) sessionKey() string {
	return fmt.Sprintf("%s:session", s.prefix)
}
