package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisNoncePrefix = "ltiprovider:nonce:"

// RedisNonceStore implements model.NonceStore on top of redis. SETNX with a
// TTL provides the atomic insert and the expiry.
type RedisNonceStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisNonceStore connects to redis and checks the connection
func NewRedisNonceStore(opts *redis.Options) (*RedisNonceStore, error) {
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}
	return NewRedisNonceStoreFromClient(client), nil
}

// NewRedisNonceStoreFromClient creates a RedisNonceStore using an existing client
func NewRedisNonceStoreFromClient(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client:  client,
		timeout: 2 * time.Second,
	}
}

// Insert implements the model.NonceStore interface
func (s *RedisNonceStore) Insert(consumerKey, nonce string, expires time.Time) (bool, error) {
	ttl := time.Until(expires)
	if ttl <= 0 {
		ttl = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ok, err := s.client.SetNX(ctx, redisNoncePrefix+consumerKey+":"+nonce, expires.Unix(), ttl).Result()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ok, nil
}
