// Package auth resolves credentials into Authorization header values.
//
// Two credential shapes exist: a static secret that never expires and is
// never cached, and a dynamic credential backed by an external
// token-issuing capability with a thread-safe token cache. The retry loop
// re-resolves the credential before every attempt, so a token that ages
// out during a long backoff is replaced transparently.
package auth

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

// DefaultRefreshBuffer is the safety margin subtracted from a token's
// expiry. A cached token inside this window of expiring is treated as
// already invalid, so a token cannot expire mid-flight.
const DefaultRefreshBuffer = 2 * time.Minute

// Credential produces an Authorization header value. Implementations must
// be safe for concurrent use.
type Credential interface {
	// Authorization returns the header value for one request attempt.
	Authorization(ctx context.Context) (string, error)
}

// Token is a bearer token with its stated expiry, as returned by a
// TokenSource.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenSource is the external token-issuing capability backing a dynamic
// credential. Implementations may call the network and may fail.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (Token, error)

func (f TokenSourceFunc) Token(ctx context.Context) (Token, error) {
	return f(ctx)
}

// StaticCredential is a fixed secret. Resolution never fails and the
// value is never written to any cache.
type StaticCredential struct {
	key string
}

// NewStatic creates a credential from a fixed API key.
func NewStatic(key string) *StaticCredential {
	return &StaticCredential{key: key}
}

// Authorization returns "Bearer <key>".
func (c *StaticCredential) Authorization(ctx context.Context) (string, error) {
	return "Bearer " + c.key, nil
}

// TokenCredential is a dynamic credential with a cached token. The cache
// slot is guarded by a weighted semaphore held across the fetch, so
// concurrent resolvers against an expired slot collapse into exactly one
// underlying fetch. Waiters suspend on the semaphore and wake on
// cancellation; the slot is released unconditionally however the holder
// exits.
type TokenCredential struct {
	source TokenSource

	sem    *semaphore.Weighted
	cached *Token // replaced wholesale on refresh, never mutated in place

	refreshBuffer time.Duration
	now           func() time.Time
}

// NewTokenCredential creates a dynamic credential backed by src.
func NewTokenCredential(src TokenSource) *TokenCredential {
	return &TokenCredential{
		source:        src,
		sem:           semaphore.NewWeighted(1),
		refreshBuffer: DefaultRefreshBuffer,
		now:           time.Now,
	}
}

// Authorization returns "Bearer <token>", serving from the cache when the
// cached token is outside its refresh buffer, and fetching otherwise.
func (c *TokenCredential) Authorization(ctx context.Context) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", apierr.Auth("credential lock wait aborted", err)
	}
	defer c.sem.Release(1)

	if c.cached != nil && c.now().Before(c.cached.ExpiresAt.Add(-c.refreshBuffer)) {
		return "Bearer " + c.cached.Value, nil
	}
	return c.refreshLocked(ctx)
}

// ForceRefresh bypasses the cache unconditionally and fetches a new
// token. Use it when a caller independently learned the cached token was
// rejected, to avoid a second stale read.
func (c *TokenCredential) ForceRefresh(ctx context.Context) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", apierr.Auth("credential lock wait aborted", err)
	}
	defer c.sem.Release(1)

	return c.refreshLocked(ctx)
}

// refreshLocked fetches a fresh token and replaces the cache slot. The
// caller must hold the semaphore.
func (c *TokenCredential) refreshLocked(ctx context.Context) (string, error) {
	tok, err := c.source.Token(ctx)
	if err != nil {
		return "", apierr.Auth("token fetch failed", err)
	}
	c.cached = &tok
	return "Bearer " + tok.Value, nil
}
