package validate

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheSize bounds the number of memoised relative paths.
const DefaultCacheSize = 4096

const cacheTTL = 5 * time.Minute

type cachedResult struct {
	norm Normalized
	err  error
}

// pathCache memoises normalisation of relative paths. Results depend only on
// the input string, the find flag and the policy, so entries never go stale;
// the TTL only bounds memory. No janitor goroutine is started.
type pathCache struct {
	c   *cache.Cache
	max int
}

func newPathCache(max int) *pathCache {
	if max <= 0 {
		return nil
	}
	return &pathCache{c: cache.New(cacheTTL, 0), max: max}
}

func cacheKey(path string, find bool) string {
	if find {
		return "f:" + path
	}
	return "p:" + path
}

func (pc *pathCache) get(path string, find bool) (cachedResult, bool) {
	if pc == nil {
		return cachedResult{}, false
	}
	v, ok := pc.c.Get(cacheKey(path, find))
	if !ok {
		return cachedResult{}, false
	}
	return v.(cachedResult), true
}

func (pc *pathCache) put(path string, find bool, r cachedResult) {
	if pc == nil {
		return
	}
	if pc.c.ItemCount() >= pc.max {
		pc.c.Flush()
	}
	pc.c.SetDefault(cacheKey(path, find), r)
}
