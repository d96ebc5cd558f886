// Package redis is a Store backend for clinicians who keep drafts on a
// shared workstation Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/hpungsan/clinote/internal/config"
)

// Store implements store.Store on Redis. Every key is namespaced by prefix.
type Store struct {
	c      *redis.Client
	prefix string
}

// NewClient builds a client from config.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// New wraps an existing client.
func New(c *redis.Client, prefix string) *Store {
	return &Store{c: c, prefix: prefix}
}

// Open connects using cfg and verifies the server answers.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	c := NewClient(cfg)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return New(c, cfg.RedisPrefix), nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.c.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set stores value without expiry; drafts and history live until cleared.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.c.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.c.Del(ctx, s.prefix+key).Err()
}

func (s *Store) Close() error {
	return s.c.Close()
}
