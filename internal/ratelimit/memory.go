package ratelimit

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

const shardCount = 32

type counter struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// MemoryStore keeps window counters in a sharded in-process map. Counts are
// lost on restart, which is acceptable for this guard. Distinct tuples land
// on independent shards so hot keys do not serialize unrelated traffic.
type MemoryStore struct {
	shards [shardCount]*shard

	now func() time.Time

	sweepOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]*counter)}
	}
	return s
}

func tupleKey(entityID string, g Granularity, window string) string {
	return entityID + ":" + string(g) + ":" + window
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) CheckAndConsume(ctx context.Context, entityID string, g Granularity, limit int) (Result, error) {
	now := s.now()
	window := windowKey(g, now)
	resetAt := windowReset(g, now)

	key := tupleKey(entityID, g, window)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok || !c.resetAt.After(now) {
		// A counter whose reset has passed is logically absent even if the
		// sweeper has not collected it yet.
		c = &counter{resetAt: resetAt}
		sh.counters[key] = c
	}

	if c.count >= limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    c.resetAt,
			RetryAfter: retryAfter(c.resetAt, now),
		}, nil
	}

	c.count++
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - c.count,
		ResetAt:   c.resetAt,
	}, nil
}

func (s *MemoryStore) Peek(ctx context.Context, entityID string, g Granularity, limit int) (Result, error) {
	now := s.now()
	window := windowKey(g, now)
	resetAt := windowReset(g, now)

	key := tupleKey(entityID, g, window)
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	count := 0
	if c, ok := sh.counters[key]; ok && c.resetAt.After(now) {
		count = c.count
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Sweep drops counters whose window has passed. Safe to call concurrently
// with checks; each shard is locked only while it is scanned.
func (s *MemoryStore) Sweep() {
	now := s.now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, c := range sh.counters {
			if !c.resetAt.After(now) {
				delete(sh.counters, key)
			}
		}
		sh.mu.Unlock()
	}
}

// StartSweeper runs Sweep on the given interval until Close is called.
// Calling it more than once has no effect.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.sweepOnce.Do(func() {
		go func() {
			defer close(s.done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep()
				case <-s.stop:
					return
				}
			}
		}()
		log.Printf("Rate limit sweeper started (interval %v)", interval)
	})
}

func (s *MemoryStore) Close() error {
	// If the sweeper never started there is no goroutine to wait on.
	s.sweepOnce.Do(func() { close(s.done) })
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
