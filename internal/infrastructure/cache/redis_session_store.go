package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/subsync/backend/internal/domain/billing"
)

// RedisSessionStore implements billing.SessionStore using Redis. Sessions
// share the payment token TTL so an expired token can never be read back.
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSessionStore creates a new Redis-based checkout session store
func NewRedisSessionStore(cfg RedisConfig) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionStore{
		client:    client,
		keyPrefix: "checkout:session:",
	}, nil
}

// NewRedisSessionStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisSessionStoreWithClient(client *redis.Client, keyPrefix string) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "checkout:session:"
	}
	return &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// SaveSession stores the session with the payment token TTL
func (s *RedisSessionStore) SaveSession(ctx context.Context, cartID string, session *billing.CheckoutSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize checkout session: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+cartID, data, billing.PaymentTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}

// GetSession returns the cached session, or (nil, nil) when absent
func (s *RedisSessionStore) GetSession(ctx context.Context, cartID string) (*billing.CheckoutSession, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+cartID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkout session: %w", err)
	}
	var session billing.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &session, nil
}

// DeleteSession drops the session
func (s *RedisSessionStore) DeleteSession(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+cartID).Err(); err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Ensure RedisSessionStore implements SessionStore
var _ billing.SessionStore = (*RedisSessionStore)(nil)
