package surface

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

// Key identifies a cached grid. Changing any component misses the cache.
type Key struct {
	Resolution int
	Bounds     Bounds
	// Function identifies the objective, usually its source text
	Function string
	// Penalty identifies the augmentation: shape, bounds, constraints and k
	Penalty string
}

// Cache memoizes sampled grids with least-recently-used eviction. Matrices of
// evicted grids are recycled through a MatrixPool, so callers always receive
// their own copy. It is safe for concurrent use.
type Cache struct {
	// mu orders copies out of the cache against evictions into the pool
	mu            sync.RWMutex
	grids         *lru.Cache[Key, *Grid]
	pool          *MatrixPool
	maxResolution int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding up to size grids of at most maxResolution
// samples per side. A maxResolution of 0 means no limit.
func NewCache(size, maxResolution int) (*Cache, error) {
	if size < 1 {
		return nil, optimization.InvalidArgumentf("cache size %d is below 1", size).
			WithComponent("surface").WithOperation("NewCache")
	}
	c := &Cache{pool: NewMatrixPool(), maxResolution: maxResolution}
	grids, err := lru.NewWithEvict[Key, *Grid](size, func(_ Key, g *Grid) {
		c.pool.PutDense(g.Values)
	})
	if err != nil {
		return nil, optimization.WrapError(err, "creating grid cache").WithComponent("surface").WithOperation("NewCache")
	}
	c.grids = grids
	return c, nil
}

// Get returns the grid for key, sampling f on a miss. The boolean reports a
// cache hit.
func (c *Cache) Get(ctx context.Context, key Key, f optimization.Func) (*Grid, bool, error) {
	if c.maxResolution > 0 && key.Resolution > c.maxResolution {
		return nil, false, optimization.InvalidArgumentf("resolution %d exceeds %d", key.Resolution, c.maxResolution).
			WithComponent("surface").WithOperation("Get")
	}

	c.mu.RLock()
	cached, ok := c.grids.Get(key)
	var g *Grid
	if ok {
		g = cached.clone()
	}
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return g, true, nil
	}
	c.misses.Add(1)

	var dst *mat.Dense
	if key.Resolution >= 2 {
		dst = c.pool.GetDense(key.Resolution, key.Resolution)
	}
	g, err := Evaluate(ctx, f, key.Bounds, key.Resolution, dst)
	if err != nil {
		c.pool.PutDense(dst)
		return nil, false, err
	}

	out := g.clone()
	c.mu.Lock()
	c.grids.Add(key, g)
	c.mu.Unlock()
	return out, false, nil
}

// Invalidate drops every cached grid.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grids.Purge()
}

// Len returns the number of cached grids.
func (c *Cache) Len() int {
	return c.grids.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (g *Grid) clone() *Grid {
	out := *g
	out.Values = mat.DenseCopyOf(g.Values)
	return &out
}
