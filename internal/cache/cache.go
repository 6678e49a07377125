// Package cache provides the short-lived verdict cache and the per-claim
// verification lease.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/crisisguard/crisisguard/internal/model"
)

// VerdictCache memoizes recent verdicts so repeated verify requests for
// the same claim do not re-run retrieval and reasoning.
type VerdictCache struct {
	c *gocache.Cache
}

// NewVerdictCache creates a verdict cache with the given TTL.
func NewVerdictCache(ttl time.Duration) *VerdictCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &VerdictCache{c: gocache.New(ttl, 2*ttl)}
}

// Get returns the cached verdict for a claim, if present.
func (vc *VerdictCache) Get(claimID string) (*model.Verdict, bool) {
	v, ok := vc.c.Get(claimID)
	if !ok {
		return nil, false
	}
	return v.(*model.Verdict), true
}

// Put caches a verdict under its claim id.
func (vc *VerdictCache) Put(v *model.Verdict) {
	vc.c.SetDefault(v.ClaimID, v)
}

// Invalidate drops the cached verdict for a claim, used when a forced
// re-verification supersedes it.
func (vc *VerdictCache) Invalidate(claimID string) {
	vc.c.Delete(claimID)
}

// Lease enforces at most one in-flight verification per claim. Acquire is
// atomic: concurrent callers for the same claim see exactly one success.
// The TTL bounds how long a crashed verification can hold its claim.
type Lease struct {
	c *gocache.Cache
}

// NewLease creates a lease table with the given TTL.
func NewLease(ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Lease{c: gocache.New(ttl, ttl)}
}

// Acquire takes the lease for a claim. It reports false when another
// verification already holds it.
func (l *Lease) Acquire(claimID string) bool {
	return l.c.Add(claimID, struct{}{}, gocache.DefaultExpiration) == nil
}

// Release frees the lease before its TTL expires.
func (l *Lease) Release(claimID string) {
	l.c.Delete(claimID)
}
