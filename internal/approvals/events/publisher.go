// Package events fans committed history entries out to other processes.
// The ledger stays the source of truth; subscribers that miss a message can
// always re-read it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// Publisher receives every history entry after its transaction commits.
type Publisher interface {
	Publish(ctx context.Context, e types.HistoryEntry) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, types.HistoryEntry) error { return nil }

// Recorder keeps published entries in memory. Used by tests.
type Recorder struct {
	mu      sync.Mutex
	entries []types.HistoryEntry
}

func (r *Recorder) Publish(_ context.Context, e types.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *Recorder) Entries() []types.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.HistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// RedisPublisher publishes each entry as JSON on a pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e types.HistoryEntry) error {
	if p.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history event: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Channel is the channel entries are published on.
func (p *RedisPublisher) Channel() string { return p.channel }

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url %q: %w", addr, err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
