package websites

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/redirect10-prog/siteForge-ai/internal/metrics"
)

// SiteCache holds public sites by slug. Concurrent misses for one slug
// share a single load.
type SiteCache struct {
	lru   *expirable.LRU[string, PublicSite]
	group singleflight.Group
}

func NewSiteCache(size int, ttl time.Duration) *SiteCache {
	if size <= 0 {
		size = 512
	}
	return &SiteCache{lru: expirable.NewLRU[string, PublicSite](size, nil, ttl)}
}

// Get returns the cached site or loads it. Load errors are not cached.
func (c *SiteCache) Get(ctx context.Context, slug string, load func(context.Context, string) (PublicSite, error)) (PublicSite, error) {
	if s, ok := c.lru.Get(slug); ok {
		metrics.SiteCacheTotal.WithLabelValues("hit").Inc()
		return s, nil
	}
	v, err, shared := c.group.Do(slug, func() (any, error) {
		if s, ok := c.lru.Get(slug); ok {
			return s, nil
		}
		s, err := load(ctx, slug)
		if err != nil {
			return PublicSite{}, err
		}
		c.lru.Add(slug, s)
		return s, nil
	})
	if shared {
		metrics.SiteCacheTotal.WithLabelValues("shared").Inc()
	} else {
		metrics.SiteCacheTotal.WithLabelValues("miss").Inc()
	}
	if err != nil {
		return PublicSite{}, err
	}
	return v.(PublicSite), nil
}

// Invalidate drops slug so the next read loads fresh content.
func (c *SiteCache) Invalidate(slug string) {
	c.lru.Remove(slug)
}
