// Package intent implements the per-writer transaction intent log: an
// ordered list of page containers the log owns exclusively, keyed by
// log_key, isolating uncommitted modifications from the shared buffer
// cache.
package intent

import (
	"sync"

	"github.com/sirixgo/sirixgo/cache"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

// Container pairs a complete merged view with the modification delta a
// writer actually mutates. Complete and Delta may be the same
// *page.Page instance.
type Container struct {
	Complete *page.Page
	Delta    *page.Page
}

// Log is a single writer's intent log, owned exclusively by one
// transaction at a time; concurrent use by more than one writer is not
// safe.
type Log struct {
	mu         sync.Mutex
	cache      *cache.Cache
	containers []*Container
	index      map[pageref.Key]int
	closed     bool
}

// New builds an empty log. cache may be nil if this log is used outside
// the shared-cache-bypass path (e.g. in isolated tests).
func New(c *cache.Cache) *Log {
	return &Log{cache: c, index: make(map[pageref.Key]int)}
}

// Put stores container under ref's identity, assigning ref a log_key
// equal to the container's position. Any guards the container's pages
// still carry are force-released first, since the log is now their sole
// owner, and only then is ref removed from the shared cache — releasing
// guards after the removal would leave evictLocked refusing to evict a
// still-guarded entry, so the cached instance would survive alongside
// the log's copy. Returns the reference updated with its new log_key.
func (l *Log) Put(ref *pageref.Reference, container *Container) *pageref.Reference {
	l.mu.Lock()
	defer l.mu.Unlock()

	container.Complete.ForceReleaseGuards()
	if container.Delta != container.Complete {
		container.Delta.ForceReleaseGuards()
	}
	if l.cache != nil {
		l.cache.Remove(ref.Key())
	}

	logKey := len(l.containers)
	l.containers = append(l.containers, container)
	updated := ref.WithLogKey(int64(logKey))
	l.index[updated.Key()] = logKey
	return updated
}

// Get returns the container addressed by ref's log_key in O(1).
func (l *Log) Get(ref *pageref.Reference) (*Container, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !ref.InLog() {
		return nil, false
	}
	idx := int(ref.LogKey)
	if idx < 0 || idx >= len(l.containers) {
		return nil, false
	}
	return l.containers[idx], true
}

// Clear closes every container's pages in reverse insertion order, then
// empties the log. A container whose Complete and Delta are the same
// instance is closed once.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
}

func (l *Log) clearLocked() {
	for i := len(l.containers) - 1; i >= 0; i-- {
		c := l.containers[i]
		if c == nil {
			continue
		}
		c.Complete.Close()
		if c.Delta != c.Complete {
			c.Delta.Close()
		}
	}
	l.containers = nil
	l.index = make(map[pageref.Key]int)
}

// Close clears the log and marks it closed; safe to call more than
// once. Must be called before the owning transaction returns, after the
// transaction has released any guards on these pages.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.clearLocked()
	l.closed = true
}

// Stats reports entry count and resident bytes held, the counterpart to
// the buffer cache's weigher (SPEC_FULL.md §4.4 addition, exposed for a
// transaction facade debug flag).
func (l *Log) Stats() (entries int, bytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.containers {
		if c == nil {
			continue
		}
		entries++
		bytes += int64(c.Complete.ResidentBytes())
		if c.Delta != c.Complete {
			bytes += int64(c.Delta.ResidentBytes())
		}
	}
	return entries, bytes
}
