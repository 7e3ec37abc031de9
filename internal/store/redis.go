package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// or rediss:// URL and pings the server.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is empty")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisStore keeps one JSON record per room under arena:game:<id> and the set of
// open rooms under arena:lobby. Every write refreshes a 24h TTL.
type RedisStore struct {
	rdb     *redis.Client
	ownsRDB bool
	retries int
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, retries: 3}
}

// OpenRedisStore dials url and owns the resulting client.
func OpenRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	rdb, err := NewRedisClient(ctx, url)
	if err != nil {
		return nil, err
	}
	s := NewRedisStore(rdb)
	s.ownsRDB = true
	return s, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil || !s.ownsRDB {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(rec.ID), raw, gameTTL)
	s.lobby(ctx, pipe, rec)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save game %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, id string) (*Record, error) {
	return s.load(ctx, s.rdb, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, patch Patch) error {
	return s.mutate(ctx, id, func(rec *Record) error {
		patch(rec)
		return nil
	})
}

func (s *RedisStore) AppendMove(ctx context.Context, id string, mv MoveEntry) error {
	return s.mutate(ctx, id, func(rec *Record) error {
		if mv.Ply != len(rec.MovesUCI)+1 {
			return fmt.Errorf("append ply %d to %d moves: %w", mv.Ply, len(rec.MovesUCI), ErrStaleMove)
		}
		appendMove(rec, mv)
		return nil
	})
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, gameKey(id))
	pipe.SRem(ctx, lobbyKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Lobby(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, lobbyKey).Result()
}

// mutate is an optimistic read-modify-write guarded by WATCH on the game key.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*Record) error) error {
	key := gameKey(id)
	txf := func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, gameTTL)
			s.lobby(ctx, pipe, rec)
			return nil
		})
		return err
	}
	for range max(s.retries, 1) {
		err := s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update game %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) lobby(ctx context.Context, pipe redis.Pipeliner, rec *Record) {
	if rec.Open() {
		pipe.SAdd(ctx, lobbyKey, rec.ID)
		pipe.Expire(ctx, lobbyKey, gameTTL)
		return
	}
	pipe.SRem(ctx, lobbyKey, rec.ID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*Record, error) {
	raw, err := c.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &rec, nil
}

func appendMove(rec *Record, mv MoveEntry) {
	rec.MovesUCI = append(rec.MovesUCI, mv.UCI)
	rec.MovesSAN = append(rec.MovesSAN, mv.SAN)
	rec.FEN = mv.FEN
	rec.Version = mv.Version
	rec.UpdatedAt = mv.At
}
