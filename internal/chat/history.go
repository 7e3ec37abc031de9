package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const historyTTL = 24 * time.Hour

// History keeps the most recent messages per room.
type History interface {
	Append(ctx context.Context, msg Message) error
	Recent(ctx context.Context, room string, n int) ([]Message, error)
}

// RedisHistory stores a capped list per room under arena:chat:<room>, newest first.
type RedisHistory struct {
	rdb  *redis.Client
	size int
}

func NewRedisHistory(rdb *redis.Client, size int) *RedisHistory {
	return &RedisHistory{rdb: rdb, size: max(size, 1)}
}

func chatKey(room string) string { return "arena:chat:" + strings.TrimSpace(room) }

func (h *RedisHistory) Append(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	key := chatKey(msg.Room)
	pipe := h.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(h.size-1))
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat %s: %w", msg.Room, err)
	}
	return nil
}

// Recent returns up to n messages, oldest first.
func (h *RedisHistory) Recent(ctx context.Context, room string, n int) ([]Message, error) {
	n = min(max(n, 1), h.size)
	raws, err := h.rdb.LRange(ctx, chatKey(room), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat %s: %w", room, err)
	}
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	slices.Reverse(out)
	return out, nil
}

// MemoryHistory is the in-process History.
type MemoryHistory struct {
	mu    sync.Mutex
	size  int
	rooms map[string][]Message
}

func NewMemoryHistory(size int) *MemoryHistory {
	return &MemoryHistory{size: max(size, 1), rooms: make(map[string][]Message)}
}

func (h *MemoryHistory) Append(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := append(h.rooms[msg.Room], msg)
	if len(list) > h.size {
		list = slices.Clone(list[len(list)-h.size:])
	}
	h.rooms[msg.Room] = list
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, room string, n int) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.rooms[room]
	n = min(max(n, 1), len(list))
	return slices.Clone(list[len(list)-n:]), nil
}
