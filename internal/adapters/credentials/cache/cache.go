// Package cache decorates a credential source with an in-memory TTL cache.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/authpipe/internal/core/ports"
)

const cacheKey = "credential"

// expirySkew is subtracted from a JWT expiry so tokens are not sent in
// their last moments of validity.
const expirySkew = 5 * time.Second

// Source caches the credential of an inner source for a fixed TTL.
// Concurrent misses share a single fetch. When the credential is a JWT with
// an exp claim the entry never outlives the token.
type Source struct {
	inner ports.CredentialSource
	ttl   time.Duration
	cache *gocache.Cache
	group singleflight.Group
	now   func() time.Time
}

// New wraps inner with a cache holding credentials for ttl.
func New(inner ports.CredentialSource, ttl time.Duration) *Source {
	return &Source{
		inner: inner,
		ttl:   ttl,
		cache: gocache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

// Credential returns the cached credential or fetches a new one. Errors are
// never cached.
func (s *Source) Credential(ctx context.Context) (string, error) {
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(string), nil
	}

	ch := s.group.DoChan(cacheKey, func() (any, error) {
		// The fetch outlives any single caller that gives up.
		credential, err := s.inner.Credential(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		if ttl := s.entryTTL(credential); ttl > 0 {
			s.cache.Set(cacheKey, credential, ttl)
		}
		return credential, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// Invalidate drops the cached credential, e.g. after the server rejected it.
func (s *Source) Invalidate() {
	s.cache.Delete(cacheKey)
}

func (s *Source) entryTTL(credential string) time.Duration {
	ttl := s.ttl
	exp, ok := jwtExpiry(credential)
	if !ok {
		return ttl
	}
	if remaining := exp.Sub(s.now()) - expirySkew; remaining < ttl {
		ttl = remaining
	}
	return ttl
}

// jwtExpiry extracts the exp claim without verifying the signature. The
// token is only inspected, never trusted.
func jwtExpiry(credential string) (time.Time, bool) {
	raw := credential
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		raw = raw[i+1:]
	}
	if strings.Count(raw, ".") != 2 {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
