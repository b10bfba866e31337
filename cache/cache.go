// Package cache implements the shared buffer cache: a sharded hash table
// of pages with CLOCK (second-chance) eviction, a byte budget, and a
// guard-aware eviction veto.
package cache

import (
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"

	"github.com/sirixgo/sirixgo/epoch"
	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

// Config configures a Cache instance.
type Config struct {
	ShardCount     int
	ByteBudget     int64
	SweepInterval  time.Duration
}

// entry is one cached page plus its CLOCK reference bit and cached
// weight.
type entry struct {
	key        pageref.Key
	page       *page.Page
	referenced atomic.Bool
	weight     int64
}

type shard struct {
	mu    sync.Mutex
	items map[pageref.Key]*entry
	ring  []*entry
	hand  int
	bytes int64
}

// Cache is the process-wide, resource-agnostic buffer cache: keys are
// fully qualified by (database_id, resource_id, log_key, storage_key)
// so no collisions arise across resources.
type Cache struct {
	clearMu sync.RWMutex // cache-clear latch; highest in the locking order
	shards  []*shard
	budget  int64
	tracker *epoch.Tracker

	stop      chan struct{}
	wg        sync.WaitGroup
	started   bool
	closeOnce sync.Once
}

// New builds a cache with cfg.ShardCount shards (rounded up to at least
// 1) and starts its sweeper goroutines. tracker may be nil, in which
// case eviction is vetoed only by outstanding guards.
func New(cfg Config, tracker *epoch.Tracker) *Cache {
	n := cfg.ShardCount
	if n < 1 {
		n = 1
	}
	c := &Cache{
		shards:  make([]*shard, n),
		budget:  cfg.ByteBudget,
		tracker: tracker,
		stop:    make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[pageref.Key]*entry)}
	}
	if cfg.SweepInterval > 0 {
		c.startSweepers(cfg.SweepInterval)
	}
	return c
}

func (c *Cache) shardFor(key pageref.Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.DatabaseID))
	h.Write([]byte(strconv.FormatUint(key.ResourceID, 10)))
	h.Write([]byte(strconv.FormatInt(key.LogKey, 10)))
	h.Write([]byte(strconv.FormatInt(key.StorageKey, 10)))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns the cached page for key without acquiring a guard,
// marking it referenced for the CLOCK sweep. Prefer GetAndGuard for any
// use that outlives the lookup.
func (c *Cache) Get(key pageref.Key) (*page.Page, bool) {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e.referenced.Store(true)
	return e.page, true
}

// GetAndGuard looks up key and, on a hit, acquires a guard on the
// resident page before returning it. The guard must be released exactly
// once by the caller.
func (c *Cache) GetAndGuard(key pageref.Key) (*page.Guard, bool) {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e.referenced.Store(true)
	return e.page.AcquireGuard(), true
}

// Put inserts p under key via a per-key atomic compute: if another
// caller already won the race to insert this key, the losing page is
// closed and the winner's guard is handed back instead.
func (c *Cache) Put(key pageref.Key, p *page.Page) (guard *page.Guard, inserted bool) {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		p.Close()
		return existing.page.AcquireGuard(), false
	}

	e := &entry{key: key, page: p, weight: int64(p.ResidentBytes())}
	e.referenced.Store(true)
	s.items[key] = e
	s.ring = append(s.ring, e)
	s.bytes += e.weight
	return p.AcquireGuard(), true
}

// Remove evicts key immediately regardless of budget pressure, e.g. when
// a page moves into a writer's intent log. A guarded page is left in the
// cache; it goes only through a later Remove or Clear, or a sweeper pass
// that finds the shard over budget.
func (c *Cache) Remove(key pageref.Key) {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.evictLocked(s, key)
}

// evictLocked removes key from s if present and not guarded, closing
// its page and splicing it out of the CLOCK ring so the sweeper never
// revisits a closed entry. Caller must hold s.mu.
func (c *Cache) evictLocked(s *shard, key pageref.Key) bool {
	e, ok := s.items[key]
	if !ok {
		return false
	}
	if e.page.GuardCount() != 0 {
		return false
	}
	delete(s.items, key)
	s.bytes -= e.weight
	e.page.Close()
	if i := slices.IndexFunc(s.ring, func(r *entry) bool { return r == e }); i >= 0 {
		s.ring = slices.Delete(s.ring, i, i+1)
		if s.hand > i {
			s.hand--
		}
	}
	return true
}

// Clear evicts every unguarded page across all shards, taking the
// cache-clear write latch so no concurrent Get/Put/Remove can observe a
// half-cleared state. The cache-clear latch is always acquired before
// any shard lock, never the reverse.
func (c *Cache) Clear() {
	c.clearMu.Lock()
	defer c.clearMu.Unlock()

	for _, s := range c.shards {
		s.mu.Lock()
		kept := s.ring[:0]
		for _, e := range s.ring {
			if e.page.GuardCount() != 0 {
				kept = append(kept, e)
				continue
			}
			delete(s.items, e.key)
			s.bytes -= e.weight
			e.page.Close()
		}
		s.ring = kept
		s.hand = 0
		s.mu.Unlock()
	}
}

// AuditResult summarises leaked state found by Audit.
type AuditResult struct {
	TotalEntries  int
	GuardedEntries int
}

// Audit scans every shard logging (at Warn level) any entry whose guard
// count is still nonzero, for diagnosing a leaked guard without aborting
// whatever called Audit.
func (c *Cache) Audit() AuditResult {
	c.clearMu.RLock()
	defer c.clearMu.RUnlock()

	var res AuditResult
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.items {
			res.TotalEntries++
			if e.page.GuardCount() != 0 {
				res.GuardedEntries++
				obs.For("cache").Warn().
					Str("index_type", e.page.IndexType.String()).
					Uint64("page_key", e.page.PageKey).
					Int32("guard_count", e.page.GuardCount()).
					Msg("audit: page still guarded")
			}
		}
		s.mu.Unlock()
	}
	return res
}

// Close stops the sweeper goroutines and clears every shard, releasing
// every unguarded page. Safe to call exactly once when the last open
// resource's transaction manager closes (SPEC_FULL.md §9.1 shutdown
// policy).
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.started {
			close(c.stop)
			c.wg.Wait()
		}
	})
	c.Clear()
}
