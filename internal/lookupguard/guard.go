// Package lookupguard throttles public voucher lookups per source address so
// that voucher numbers cannot be enumerated.
package lookupguard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/metrics"
)

const (
	defaultWindow        = time.Minute
	defaultDistinctLimit = 10
	defaultBlockDuration = 5 * time.Minute
)

// Decision is the outcome of a single lookup attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

type Guard struct {
	store   Store
	window  time.Duration
	limit   int
	block   time.Duration
	metrics *metrics.VoucherMetrics
	now     func() time.Time

	// Serializes read-modify-write on the store within this process.
	mu sync.Mutex
}

type Params struct {
	Store   Store
	Config  config.LookupGuardConfig
	Metrics *metrics.VoucherMetrics
	Now     func() time.Time
}

func New(params Params) (*Guard, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("lookup guard store required")
	}
	g := &Guard{
		store:   params.Store,
		window:  params.Config.Window,
		limit:   params.Config.DistinctLimit,
		block:   params.Config.BlockDuration,
		metrics: params.Metrics,
		now:     params.Now,
	}
	if g.window <= 0 {
		g.window = defaultWindow
	}
	if g.limit <= 0 {
		g.limit = defaultDistinctLimit
	}
	if g.block <= 0 {
		g.block = defaultBlockDuration
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Allow records a lookup of number from source. Repeating a number already
// seen inside the window refreshes it without counting against the limit;
// the first distinct number past the limit blocks the source.
func (g *Guard) Allow(ctx context.Context, source, number string) (Decision, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = "unknown"
	}
	number = strings.TrimSpace(number)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	current, err := g.store.Get(ctx, source)
	if err != nil {
		return Decision{}, err
	}
	rec := Record{Seen: map[string]time.Time{}}
	if current != nil {
		rec = *current
		if rec.Seen == nil {
			rec.Seen = map[string]time.Time{}
		}
	}

	if rec.BlockedUntil.After(now) {
		return Decision{RetryAfter: rec.BlockedUntil.Sub(now)}, nil
	}

	for n, at := range rec.Seen {
		if now.Sub(at) >= g.window {
			delete(rec.Seen, n)
		}
	}

	if _, seen := rec.Seen[number]; !seen && len(rec.Seen) >= g.limit {
		rec.BlockedUntil = now.Add(g.block)
		rec.Seen = map[string]time.Time{}
		g.metrics.IncLookupBlocked()
		if err := g.store.Put(ctx, source, rec, now, g.block); err != nil {
			return Decision{}, err
		}
		return Decision{RetryAfter: g.block}, nil
	}

	rec.Seen[number] = now
	rec.BlockedUntil = time.Time{}
	if err := g.store.Put(ctx, source, rec, now, g.window); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}

// Sweep drops idle records. It is a no-op for stores that expire entries
// on their own.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	return g.store.Sweep(ctx, g.now())
}
