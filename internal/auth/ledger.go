package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshTokenKeyPrefix = "refresh_token:"

// Ledger records refresh tokens that are issued and not yet revoked.
// Tokens are looked up by their exact string; implementations store a digest.
type Ledger interface {
	// Store records a token. A zero ttl keeps it until revoked.
	Store(ctx context.Context, tokenID, token string, ttl time.Duration) error
	// Exists reports whether the token is currently recorded.
	Exists(ctx context.Context, token string) (bool, error)
	// Revoke removes the token atomically and reports whether it was present.
	Revoke(ctx context.Context, token string) (bool, error)
}

// HashToken returns the hex SHA-256 digest under which a token is recorded.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RedisLedger keeps refresh tokens in Redis. Unlike the product cache it
// surfaces every Redis error: a ledger that fails open would un-revoke tokens.
type RedisLedger struct {
	client *redis.Client
}

// Ensure RedisLedger implements Ledger
var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) key(token string) string {
	return refreshTokenKeyPrefix + HashToken(token)
}

// Store records the token under its digest with the token ID as value.
func (l *RedisLedger) Store(ctx context.Context, tokenID, token string, ttl time.Duration) error {
	return l.client.Set(ctx, l.key(token), tokenID, ttl).Err()
}

// Exists checks the token's key.
func (l *RedisLedger) Exists(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke deletes the token's key. DEL is atomic, so of two concurrent
// revocations exactly one observes the key.
func (l *RedisLedger) Revoke(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Del(ctx, l.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
