package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dadbodgeoff/1v1bro-sub009/internal/telemetry"
)

// ErrNotFound is returned when a replay id does not exist or has expired.
var ErrNotFound = errors.New("replay: not found")

// StoreConfig configures the redis-backed replay store.
type StoreConfig struct {
	// URL is a redis connection string, e.g. redis://localhost:6379/0.
	URL string
	// KeyPrefix namespaces replay keys. Defaults to "replay".
	KeyPrefix string
	// TTL bounds replay retention when the record itself carries no expiry.
	// Defaults to the telemetry retention window.
	TTL time.Duration
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "replay"
	}
	if c.TTL <= 0 {
		c.TTL = telemetry.DefaultReplayTTL
	}
	return c
}

// Store persists death replays in redis, msgpack-encoded, with a TTL so
// expired replays disappear without a reaper.
type Store struct {
	cfg    StoreConfig
	client *redis.Client
}

// NewStore connects to redis using the configured URL.
func NewStore(cfg StoreConfig) (*Store, error) {
	cfg = cfg.withDefaults()
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("replay: parse redis url: %w", err)
	}
	return &Store{cfg: cfg, client: redis.NewClient(opts)}, nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(cfg StoreConfig, client *redis.Client) *Store {
	return &Store{cfg: cfg.withDefaults(), client: client}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save persists a replay under its lobby and id. The redis TTL follows the
// record's ExpiresAt when set, otherwise the configured default.
func (s *Store) Save(ctx context.Context, rec *telemetry.DeathReplay) error {
	if rec == nil || rec.ID == "" {
		return errors.New("replay: record missing id")
	}
	ttl := s.cfg.TTL
	if !rec.ExpiresAt.IsZero() {
		if remaining := time.Until(rec.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("replay: encode %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, s.key(rec.LobbyID, rec.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("replay: save %s: %w", rec.ID, err)
	}
	return nil
}

// Load retrieves a replay by lobby and id.
func (s *Store) Load(ctx context.Context, lobbyID, id string) (*telemetry.DeathReplay, error) {
	payload, err := s.client.Get(ctx, s.key(lobbyID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("replay: load %s: %w", id, err)
	}
	var rec telemetry.DeathReplay
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("replay: decode %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes a replay. Deleting a missing replay is not an error.
func (s *Store) Delete(ctx context.Context, lobbyID, id string) error {
	if err := s.client.Del(ctx, s.key(lobbyID, id)).Err(); err != nil {
		return fmt.Errorf("replay: delete %s: %w", id, err)
	}
	return nil
}

// List returns the replay ids currently stored for a lobby.
func (s *Store) List(ctx context.Context, lobbyID string) ([]string, error) {
	pattern := s.key(lobbyID, "*")
	prefix := s.key(lobbyID, "")
	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) > len(prefix) {
			ids = append(ids, key[len(prefix):])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("replay: list lobby %s: %w", lobbyID, err)
	}
	return ids, nil
}

// Close releases the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(lobbyID, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.KeyPrefix, lobbyID, id)
}
