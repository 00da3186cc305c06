package ledger

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// projectionCache memoizes derived views per (company, ledger version, view).
// A mutation bumps the version, so stale entries are never read again and
// simply expire.
type projectionCache struct {
	c *cache.Cache
}

func newProjectionCache(ttl time.Duration) *projectionCache {
	return &projectionCache{c: cache.New(ttl, 2*ttl)}
}

func cacheKey(companyID string, version uint64, view string) string {
	return fmt.Sprintf("%s|%d|%s", companyID, version, view)
}

func (p *projectionCache) get(companyID string, version uint64, view string) (any, bool) {
	return p.c.Get(cacheKey(companyID, version, view))
}

func (p *projectionCache) set(companyID string, version uint64, view string, v any) {
	p.c.SetDefault(cacheKey(companyID, version, view), v)
}

func (p *projectionCache) flush() {
	p.c.Flush()
}
