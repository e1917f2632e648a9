package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trolley/internal/cart/models"
)

const defaultGuestCartKey = "trolley:guest-cart"

// RedisStorage keeps the guest cart under a single namespaced key. Useful when
// the engine runs headless (kiosk, multiple processes sharing one shopper)
// where a per-machine file is not durable enough.
type RedisStorage struct {
	client *redis.Client
	key    string
}

type RedisStorageOption func(*RedisStorage)

// WithKey overrides the storage key, e.g. to scope carts per terminal.
func WithKey(key string) RedisStorageOption {
	return func(s *RedisStorage) { s.key = key }
}

func NewRedisStorage(client *redis.Client, opts ...RedisStorageOption) *RedisStorage {
	s := &RedisStorage{client: client, key: defaultGuestCartKey}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStorage) Read(ctx context.Context) ([]models.Line, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest cart: %w", err)
	}

	var cart []models.Line
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	return cart, nil
}

func (s *RedisStorage) Write(ctx context.Context, cart []models.Line) error {
	if cart == nil {
		cart = []models.Line{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write guest cart: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
