package reconcile

import (
	"context"
	"time"

	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/redis"
)

const guardScope = "webhook:curlec"

// DedupeGuard short-circuits redelivered webhooks before they hit the
// database. It is a fast path only: redis being down or a key expiring never
// breaks correctness, because the terminal-state guard in the engine remains
// authoritative. The guard fails open on redis errors.
type DedupeGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewDedupeGuard builds a redis-backed webhook dedupe guard.
func NewDedupeGuard(store redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) *DedupeGuard {
	return &DedupeGuard{store: store, ttl: ttl, logg: logg}
}

// CheckAndMark returns true when an identical delivery was already seen
// within the TTL, and otherwise marks this delivery as seen.
func (g *DedupeGuard) CheckAndMark(ctx context.Context, orderID, status string) bool {
	if g == nil || g.store == nil {
		return false
	}
	key := g.store.IdempotencyKey(guardScope, orderID+":"+status)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		if g.logg != nil {
			g.logg.Warn(ctx, "webhook dedupe guard unavailable, falling through to db guard")
		}
		return false
	}
	return !set
}

// Release clears the seen marker so the gateway's retry of a failed delivery
// is not dropped by the fast path.
func (g *DedupeGuard) Release(ctx context.Context, orderID, status string) {
	if g == nil || g.store == nil {
		return
	}
	key := g.store.IdempotencyKey(guardScope, orderID+":"+status)
	if err := g.store.Del(ctx, key); err != nil && g.logg != nil {
		g.logg.Warn(ctx, "failed to release webhook dedupe marker")
	}
}
