package reconciler

import (
	"context"
	"strings"
	"time"

	redisclient "github.com/angelmondragon/giftvouchers-backend/pkg/redis"
)

const (
	claimScope      = "payment_webhook"
	defaultClaimTTL = 2 * time.Minute
)

// ReferenceClaims marks payment references as being processed so duplicate
// deliveries racing each other stop before reaching the database. A claim
// lives only while one delivery is processing; committed references are
// answered from the purchases table.
type ReferenceClaims interface {
	Claim(ctx context.Context, reference string) (bool, error)
	Release(ctx context.Context, reference string) error
}

type redisClaims struct {
	store redisclient.IdempotencyStore
	ttl   time.Duration
}

// NewRedisClaims stores claims as SETNX keys that expire after ttl.
func NewRedisClaims(store redisclient.IdempotencyStore, ttl time.Duration) ReferenceClaims {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &redisClaims{store: store, ttl: ttl}
}

func (c *redisClaims) Claim(ctx context.Context, reference string) (bool, error) {
	return c.store.SetNX(ctx, c.key(reference), time.Now().UTC().Format(time.RFC3339), c.ttl)
}

func (c *redisClaims) Release(ctx context.Context, reference string) error {
	return c.store.Del(ctx, c.key(reference))
}

func (c *redisClaims) key(reference string) string {
	return c.store.IdempotencyKey(claimScope, strings.TrimSpace(reference))
}
