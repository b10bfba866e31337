// Package page implements the materialised page container, its
// populated-slot bitmap, and the guard/version lifetime protocol that
// protects a page's backing memory from concurrent reuse.
package page

import (
	"sync/atomic"

	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/internal/xerrors"
	"github.com/sirixgo/sirixgo/pageref"
)

// Page is a fixed-capacity container of up to SlotsPerPage slots, each
// holding either a variable-length byte payload or nothing, plus its
// identity (index type, page key, revision), populated-slot bitmap,
// optional dewey-id region, overflow map, and guard/version state.
type Page struct {
	IndexType pageref.IndexType
	PageKey   uint64
	Revision  uint64

	Bitmap  Bitmap
	Slots   [][]byte          // len SlotsPerPage; nil entry == empty slot
	Overflow map[uint32]uint64 // slot -> overflow page pointer, out-of-band refs
	Dewey   []byte            // optional dewey-id auxiliary region

	guardCount int32  // atomic
	version    uint64 // atomic
	closed     atomic.Bool
	free       bool // FreePage marker, set by segment reclamation above this layer
}

// New allocates an empty page for the given identity. Slots starts as a
// slice of SlotsPerPage nils so FindSlot-style callers can index directly.
func New(idx pageref.IndexType, pageKey, revision uint64) *Page {
	return &Page{
		IndexType: idx,
		PageKey:   pageKey,
		Revision:  revision,
		Slots:     make([][]byte, SlotsPerPage),
	}
}

// Populated reports slot i's occupancy via the bitmap, which must always
// agree with Slots[i] != nil.
func (p *Page) Populated(i int) bool { return p.Bitmap.Test(i) }

// Set stores a payload in slot i, keeping bitmap and slice coherent.
func (p *Page) Set(i int, payload []byte) {
	p.Slots[i] = payload
	if payload == nil {
		p.Bitmap.Clear(i)
	} else {
		p.Bitmap.Set(i)
	}
}

// Clear empties slot i.
func (p *Page) Clear(i int) {
	p.Slots[i] = nil
	p.Bitmap.Clear(i)
}

// Version returns the current reuse-generation counter.
func (p *Page) Version() uint64 { return atomic.LoadUint64(&p.version) }

// GuardCount returns the number of currently-outstanding guards.
func (p *Page) GuardCount() int32 { return atomic.LoadInt32(&p.guardCount) }

// Closed reports whether Close has already succeeded on this page. It
// implements pageref.Swizzlable so a Reference's cached direct pointer
// can be revalidated without importing this package from pageref.
func (p *Page) Closed() bool { return p.closed.Load() }

// Guard is a short-lived access right to a page instance, carrying the
// page's version number sampled at acquisition time.
type Guard struct {
	page    *Page
	sampled uint64
}

// AcquireGuard increments the guard count and samples the current
// version. The caller now holds a Guard that must be released exactly
// once on every code path.
func (p *Page) AcquireGuard() *Guard {
	atomic.AddInt32(&p.guardCount, 1)
	return &Guard{page: p, sampled: p.Version()}
}

// Page returns the guarded page. Data copied out of it before Release is
// safe to keep; raw references into its backing slices are not — callers
// must copy slot payloads they intend to retain past Release.
func (g *Guard) Page() *Page { return g.page }

// Release decrements the guard count and compares the sampled version to
// the current one. A mismatch means the frame was reused while this
// guard was outstanding (a FrameReused signal); the caller should
// discard anything derived from the page and retry its lookup.
func (g *Guard) Release() error {
	p := g.page
	n := atomic.AddInt32(&p.guardCount, -1)
	if n < 0 {
		// Guard imbalance: more releases than acquisitions. Reported as
		// a ContractViolation, not a panic, so a release build degrades
		// instead of crashing.
		atomic.AddInt32(&p.guardCount, 1) // undo, keep the counter sane
		obs.For("page").Warn().
			Str("index_type", p.IndexType.String()).
			Uint64("page_key", p.PageKey).
			Msg("guard released without a matching acquire")
		return xerrors.ContractViolationf("page.Guard.Release", nil)
	}
	if g.sampled != p.Version() {
		return xerrors.FrameReusedf("page.Guard.Release", nil)
	}
	return nil
}

// ForceReleaseGuards resets the guard count to zero. It exists for the
// handoff when a page moves into a writer's intent log: the log becomes
// the page's sole owner, and any cache-side guards still outstanding are
// force-released rather than waited on.
func (p *Page) ForceReleaseGuards() {
	atomic.StoreInt32(&p.guardCount, 0)
}

// bumpVersion strictly increases the reuse generation. Called by the
// buffer cache's eviction path and by explicit reset, never by ordinary
// mutation of slot contents.
func (p *Page) bumpVersion() { atomic.AddUint64(&p.version, 1) }

// Close is the page's destructor: it requires GuardCount() == 0 and is
// idempotent via the close-once flag. A non-zero guard count makes Close
// a no-op plus a logged warning rather than an abort, so a leaked guard
// surfaces as a diagnostic instead of crashing whatever called Close.
//
// Close also bumps the version counter, so closing counts as a reuse of
// the frame. It does not detach any pageref.Reference's swizzled
// pointer; nothing in this package or the buffer cache does.
func (p *Page) Close() bool {
	if p.GuardCount() != 0 {
		obs.For("page").Warn().
			Str("index_type", p.IndexType.String()).
			Uint64("page_key", p.PageKey).
			Int32("guard_count", p.GuardCount()).
			Msg("close skipped: page still guarded")
		return false
	}
	if !p.closed.CompareAndSwap(false, true) {
		return true // already closed: idempotent no-op
	}
	p.bumpVersion()
	return true
}

// Reset clears a page's contents so the instance can be reused under a
// new identity, bumping its version exactly once —
// matching the "every time a page's backing memory is reused... version
// counter strictly increases" invariant even outside of Close/evict.
func (p *Page) Reset(idx pageref.IndexType, pageKey, revision uint64) {
	p.IndexType = idx
	p.PageKey = pageKey
	p.Revision = revision
	p.Bitmap = Bitmap{}
	for i := range p.Slots {
		p.Slots[i] = nil
	}
	p.Overflow = nil
	p.Dewey = nil
	p.free = false
	p.closed.Store(false)
	p.bumpVersion()
}

// MarkFree flags the page as returned to the free-page chain.
func (p *Page) MarkFree()      { p.free = true }
func (p *Page) IsFree() bool   { return p.free }

// ResidentBytes is the weigher input for the buffer cache: the actual
// resident byte size of this page's populated payloads plus bitmap and
// header overhead, used to charge the cache's byte budget.
func (p *Page) ResidentBytes() int {
	n := len(p.Bitmap) * 8
	for _, s := range p.Slots {
		n += len(s)
	}
	n += len(p.Dewey)
	n += len(p.Overflow) * 12
	return n
}
