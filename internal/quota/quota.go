// Package quota enforces the per-user ceiling on stored assets.
//
// The check is a soft limit: two uploads admitted concurrently may both pass
// while the owner is one below the ceiling.
package quota

import (
	"context"
	"fmt"
)

// Counter reports how many assets an owner currently holds.
type Counter interface {
	CountAssetsByOwner(ctx context.Context, ownerID int64) (int, error)
}

// Guard admits or rejects uploads based on an owner's asset count.
type Guard struct {
	counter Counter
	ceiling int
}

// NewGuard returns a guard with the given ceiling. A ceiling of zero or less
// disables the check.
func NewGuard(counter Counter, ceiling int) *Guard {
	return &Guard{counter: counter, ceiling: ceiling}
}

// Ceiling returns the configured limit.
func (g *Guard) Ceiling() int {
	return g.ceiling
}

// Enabled reports whether a ceiling is configured.
func (g *Guard) Enabled() bool {
	return g.ceiling > 0
}

// Usage is an owner's standing against the ceiling.
type Usage struct {
	Used    int `json:"used"`
	Ceiling int `json:"ceiling"`
}

// Remaining returns how many more assets may be stored, or -1 when unlimited.
func (u Usage) Remaining() int {
	if u.Ceiling <= 0 {
		return -1
	}
	if u.Used >= u.Ceiling {
		return 0
	}
	return u.Ceiling - u.Used
}

// Usage returns the owner's current count and the ceiling.
func (g *Guard) Usage(ctx context.Context, ownerID int64) (Usage, error) {
	n, err := g.counter.CountAssetsByOwner(ctx, ownerID)
	if err != nil {
		return Usage{}, fmt.Errorf("count assets for owner %d: %w", ownerID, err)
	}
	return Usage{Used: n, Ceiling: g.ceiling}, nil
}

// Admit reports whether ownerID may store one more asset. Nothing is counted
// when the guard is disabled.
func (g *Guard) Admit(ctx context.Context, ownerID int64) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}
	u, err := g.Usage(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return u.Used < g.ceiling, nil
}
