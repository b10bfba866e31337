// Package alloc implements the segment allocator: a size-classed pool
// of byte regions backed by OS memory, handed out to the page codec for
// decompression targets and to the buffer cache for large resident
// pages, avoiding a per-page heap allocation.
package alloc

import (
	"sort"
	"sync"

	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/internal/xerrors"
)

// DefaultSizeClasses mirrors the common run of page sizes a resource may
// be configured with (4 KiB pages up through large overflow regions).
var DefaultSizeClasses = []int{4 << 10, 16 << 10, 64 << 10, 256 << 10}

// Releaser, when invoked, advises the OS to release the physical backing
// of a previously allocated segment and marks its slot borrowable again.
// Invoking it more than once is a no-op.
type Releaser func()

// pool is one size class's backing store plus its own mutex; one mutex
// per size class is granular enough that allocators of different sizes
// never contend with each other.
type pool struct {
	mu            sync.Mutex
	size          int
	free          [][]byte
	borrowed      map[*byte]bool
	physicalBytes int64
	backing       backing
}

// Allocator hands out segments from the appropriate size class.
type Allocator struct {
	classes []int
	pools   map[int]*pool
}

// New builds an allocator with the given size classes (ascending), each
// backed by anonymous OS memory where the platform supports it.
func New(sizeClasses []int) *Allocator {
	classes := append([]int(nil), sizeClasses...)
	sort.Ints(classes)
	a := &Allocator{classes: classes, pools: make(map[int]*pool, len(classes))}
	for _, c := range classes {
		a.pools[c] = &pool{size: c, borrowed: make(map[*byte]bool), backing: newBacking()}
	}
	return a
}

// classFor returns the smallest configured size class that can hold
// size bytes, or -1 if none is large enough.
func (a *Allocator) classFor(size int) int {
	for _, c := range a.classes {
		if c >= size {
			return c
		}
	}
	return -1
}

// Allocate returns a segment of at least size bytes and a releaser that
// returns it to the pool. PoolExhausted is reported when no configured
// size class is large enough for size, or when the platform backing
// itself fails (e.g. mmap returns ENOMEM); the logical size-classed
// pools grow on demand, bounded only by the platform.
func (a *Allocator) Allocate(size int) ([]byte, Releaser, error) {
	class := a.classFor(size)
	if class < 0 {
		return nil, nil, xerrors.PoolExhaustedf("alloc.Allocate", nil)
	}
	p := a.pools[class]
	p.mu.Lock()
	defer p.mu.Unlock()

	var seg []byte
	if n := len(p.free); n > 0 {
		seg = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		var err error
		seg, err = p.backing.acquire(class)
		if err != nil {
			return nil, nil, xerrors.PoolExhaustedf("alloc.Allocate", err)
		}
	}
	p.borrowed[segKey(seg)] = true
	p.physicalBytes += int64(class)

	released := false
	releaser := func() {
		if released {
			return
		}
		released = true
		a.release(p, seg)
	}
	return seg[:size], releaser, nil
}

func (a *Allocator) release(p *pool, seg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := segKey(seg)
	if !p.borrowed[key] {
		return // idempotent: already released
	}
	delete(p.borrowed, key)
	p.physicalBytes -= int64(p.size)
	if p.physicalBytes < 0 {
		p.physicalBytes = 0 // clamp at zero, never negative
	}
	if err := p.backing.decommit(seg); err != nil {
		obs.For("alloc").Debug().Err(err).Msg("advise-release failed, keeping segment resident")
	}
	p.free = append(p.free, seg[:cap(seg)])
}

func segKey(seg []byte) *byte {
	if len(seg) == 0 {
		return nil
	}
	return &seg[:1][0]
}

// PhysicalBytes reports the currently-borrowed byte total across all
// size classes, for diagnostics.
func (a *Allocator) PhysicalBytes() int64 {
	var total int64
	for _, p := range a.pools {
		p.mu.Lock()
		total += p.physicalBytes
		p.mu.Unlock()
	}
	return total
}

// Close releases every size class's backing resources. Safe to call once
// at process/database shutdown.
func (a *Allocator) Close() {
	for _, p := range a.pools {
		p.mu.Lock()
		for _, seg := range p.free {
			_ = p.backing.free(seg)
		}
		p.free = nil
		p.mu.Unlock()
	}
}
