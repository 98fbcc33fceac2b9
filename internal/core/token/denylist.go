package token

import (
	"context"
	"time"
)

const revokedNamespace = "revoked_refresh"

// setNXer is the subset of cache.Cache the denylist needs.
type setNXer interface {
	SetNX(ctx context.Context, namespace, key string, value any, ttl time.Duration) (bool, error)
}

// CacheDenylist stores revoked refresh token IDs in Redis until they expire.
type CacheDenylist struct {
	cache setNXer
}

// NewCacheDenylist creates a denylist backed by c.
func NewCacheDenylist(c setNXer) *CacheDenylist {
	return &CacheDenylist{cache: c}
}

// Revoke records jti atomically so two concurrent renewals cannot both win.
func (d *CacheDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return d.cache.SetNX(ctx, revokedNamespace, jti, 1, ttl)
}
