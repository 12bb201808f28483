package lookupguard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/angelmondragon/giftvouchers-backend/pkg/redis"
)

// Record is the per-source lookup history: the last time each distinct
// voucher number was queried, and an optional block deadline.
type Record struct {
	Seen         map[string]time.Time `json:"seen"`
	BlockedUntil time.Time            `json:"blocked_until"`
}

// Store persists lookup records keyed by source address. Put receives the
// caller's clock so expiry and Sweep agree on what time it is.
type Store interface {
	Get(ctx context.Context, source string) (*Record, error)
	Put(ctx context.Context, source string, rec Record, now time.Time, ttl time.Duration) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps records in process memory. Counters are not shared
// between API instances.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryEntry{}}
}

func (s *MemoryStore) Get(_ context.Context, source string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[source]
	if !ok {
		return nil, nil
	}
	rec := cloneRecord(entry.rec)
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, source string, rec Record, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[source] = memoryEntry{rec: cloneRecord(rec), expiresAt: now.Add(ttl)}
	return nil
}

// Sweep drops records whose ttl has passed at now and returns how many
// were removed.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for source, entry := range s.records {
		if !now.Before(entry.expiresAt) {
			delete(s.records, source)
			removed++
		}
	}
	return removed, nil
}

// Len is the number of tracked sources.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func cloneRecord(rec Record) Record {
	out := Record{BlockedUntil: rec.BlockedUntil, Seen: make(map[string]time.Time, len(rec.Seen))}
	for k, v := range rec.Seen {
		out.Seen[k] = v
	}
	return out
}

type keyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LookupGuardKey(source string) string
}

// RedisStore shares records between API instances. Records expire through
// their key TTL, so Sweep has nothing to do.
type RedisStore struct {
	kv keyValue
}

func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{kv: client}
}

func (s *RedisStore) Get(ctx context.Context, source string) (*Record, error) {
	raw, err := s.kv.Get(ctx, s.kv.LookupGuardKey(source))
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lookup record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode lookup record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, source string, rec Record, _ time.Time, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode lookup record: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.LookupGuardKey(source), string(raw), ttl); err != nil {
		return fmt.Errorf("write lookup record: %w", err)
	}
	return nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
