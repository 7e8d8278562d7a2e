package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

type redisSessionRepo struct {
	client redis.UniversalClient
}

// NewRedisSessionRepo creates a Redis-backed SessionRepo. Markers live under
// session:<accountID> without expiry, mirroring the Postgres table; they are
// not removed when an account row is deleted.
func NewRedisSessionRepo(client redis.UniversalClient) SessionRepo {
	return &redisSessionRepo{client: client}
}

func sessionKey(accountID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(accountID, 10)
}

func (r *redisSessionRepo) Upsert(ctx context.Context, accountID int64, token string) error {
	if err := r.client.Set(ctx, sessionKey(accountID), token, 0).Err(); err != nil {
		return fmt.Errorf("upsert session token: %w", err)
	}
	return nil
}

func (r *redisSessionRepo) Exists(ctx context.Context, accountID int64) (bool, error) {
	n, err := r.client.Exists(ctx, sessionKey(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return n == 1, nil
}

func (r *redisSessionRepo) Token(ctx context.Context, accountID int64) (string, error) {
	token, err := r.client.Get(ctx, sessionKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load session token: %w", err)
	}
	return token, nil
}

func (r *redisSessionRepo) Delete(ctx context.Context, accountID int64) error {
	if err := r.client.Del(ctx, sessionKey(accountID)).Err(); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}
