package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Presence is the optional online-presence sidecar. Failures never affect
// matchmaking; callers log and move on.
type Presence interface {
	Up(ctx context.Context, id string, meta models.Meta) error
	// Heartbeat refreshes the expiry of every given connection in one batch.
	Heartbeat(ctx context.Context, ids []string) error
	Down(ctx context.Context, id string) error
	// Count returns the number of online connections, or -1 when unknown.
	Count(ctx context.Context) (int64, error)
	Online(ctx context.Context) ([]string, error)
}

const onlineSetKey = "sockets:online"

func socketKey(id string) string { return "socket:" + id }

// presenceRecord is the JSON value stored under socket:<id>.
type presenceRecord struct {
	models.Meta
	TS int64 `json:"ts"`
}

// RedisPresence stores one expiring key per connection plus a set of online ids.
type RedisPresence struct {
	Redis *redis.Client
	TTL   time.Duration
	Clock clock.Clock
}

// NewRedisPresence constructor
func NewRedisPresence(rdb *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{Redis: rdb, TTL: ttl, Clock: clock.Real()}
}

// Up records the connection as online. Both writes go in one MULTI.
func (s *RedisPresence) Up(ctx context.Context, id string, meta models.Meta) error {
	payload, err := json.Marshal(presenceRecord{Meta: meta, TS: s.Clock.Now().UnixMilli()})
	if err != nil {
		return err
	}

	_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, socketKey(id), string(payload), s.TTL)
		pipe.SAdd(ctx, onlineSetKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence up %s: %w", id, err)
	}
	return nil
}

// Heartbeat refreshes the expiry of the connection keys. All EXPIREs go in
// one pipeline, so a tick costs a single round trip.
func (s *RedisPresence) Heartbeat(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.Redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Expire(ctx, socketKey(id), s.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence heartbeat (%d ids): %w", len(ids), err)
	}
	return nil
}

// Down removes the connection.
func (s *RedisPresence) Down(ctx context.Context, id string) error {
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, socketKey(id))
		pipe.SRem(ctx, onlineSetKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence down %s: %w", id, err)
	}
	return nil
}

func (s *RedisPresence) Count(ctx context.Context) (int64, error) {
	return s.Redis.SCard(ctx, onlineSetKey).Result()
}

func (s *RedisPresence) Online(ctx context.Context) ([]string, error) {
	return s.Redis.SMembers(ctx, onlineSetKey).Result()
}

// NopPresence is used when no Redis is configured.
type NopPresence struct{}

func (NopPresence) Up(context.Context, string, models.Meta) error { return nil }
func (NopPresence) Heartbeat(context.Context, []string) error     { return nil }
func (NopPresence) Down(context.Context, string) error            { return nil }
func (NopPresence) Count(context.Context) (int64, error)          { return -1, nil }
func (NopPresence) Online(context.Context) ([]string, error)      { return nil, nil }

// NewRedisClient parses url (redis://...) or treats it as host:port, and
// checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return rdb, nil
}
