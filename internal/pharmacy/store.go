package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound marks a valid schedule key with no stored roster.
var ErrNotFound = errors.New("no roster stored for key")

// DefaultTTL keeps rosters a few days past their duty window, matching the
// ingest side.
const DefaultTTL = 96 * time.Hour

// Store is the key-value roster storage: one JSON array of pharmacies per
// schedule key, point reads only.
type Store interface {
	Roster(ctx context.Context, key string) ([]Pharmacy, error)
	SaveRoster(ctx context.Context, key string, roster []Pharmacy, ttl time.Duration) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Roster(ctx context.Context, key string) ([]Pharmacy, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roster get %q: %w", key, err)
	}

	var roster []Pharmacy
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("roster decode %q: %w", key, err)
	}
	if roster == nil {
		return nil, ErrNotFound
	}
	return roster, nil
}

func (s *RedisStore) SaveRoster(ctx context.Context, key string, roster []Pharmacy, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("roster encode %q: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("roster set %q: %w", key, err)
	}
	return nil
}
