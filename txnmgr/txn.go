package txnmgr

import (
	"sync"

	"github.com/sirixgo/sirixgo/epoch"
	"github.com/sirixgo/sirixgo/intent"
	"github.com/sirixgo/sirixgo/internal/xerrors"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

// mostRecentSlot is a small per-index-type optimisation: the page key
// and cache key of the "most recent page", which the transaction
// revalidates against the cache on every access. It holds no pointer to
// the page itself.
type mostRecentSlot struct {
	pageKey uint64
	key     pageref.Key
}

// Txn is either a read-only transaction pinned to one revision or a
// read-write transaction pinned to a base revision. It owns at most one
// current guard and, for writers, exactly one intent log.
type Txn struct {
	mgr      *Manager
	revision uint64
	writer   bool

	mu         sync.Mutex
	ticket     epoch.Ticket
	guard      *page.Guard
	bypass     *page.Page // current writer PATH_SUMMARY bypass page; txn-owned, never cache-resident
	log        *intent.Log
	mostRecent map[pageref.IndexType]mostRecentSlot
	staged     []stagedAddr
	closed     bool
}

// stagedAddr remembers which (index_type, page_key) a log position
// belongs to, since the log itself is only addressable by log_key.
type stagedAddr struct {
	idx     pageref.IndexType
	pageKey uint64
}

// BeginRead opens a read-only transaction pinned to the latest
// committed revision.
func (m *Manager) BeginRead() (*Txn, error) {
	return m.begin(false)
}

// BeginWrite opens a read-write transaction pinned to the current
// revision as its base; commit will produce base+1.
func (m *Manager) BeginWrite() (*Txn, error) {
	return m.begin(true)
}

func (m *Manager) begin(writer bool) (*Txn, error) {
	revision := m.CurrentRevision()
	ticket, err := m.tracker.Register(revision)
	if err != nil {
		return nil, err
	}
	t := &Txn{
		mgr:        m,
		revision:   revision,
		writer:     writer,
		ticket:     ticket,
		mostRecent: make(map[pageref.IndexType]mostRecentSlot),
	}
	if writer {
		t.log = intent.New(m.cache)
	}
	return t, nil
}

// Revision reports the transaction's pinned (read) or base (write)
// revision.
func (t *Txn) Revision() uint64 { return t.revision }

// Fetch resolves (idx, pageKey) to a guarded page, in order: revalidate
// the cached most-recent slot, bypass the shared cache entirely for a
// writer's PATH_SUMMARY access, then fall back to a shared-cache lookup
// that loads and inserts on a miss.
func (t *Txn) Fetch(idx pageref.IndexType, pageKey uint64) (*page.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, xerrors.ContractViolationf("txnmgr.Txn.Fetch", nil)
	}

	// Step 1: validate the most-recent slot for this index type.
	if slot, ok := t.mostRecent[idx]; ok && slot.pageKey == pageKey {
		guard, hit := t.mgr.cache.GetAndGuard(slot.key)
		if hit && !guard.Page().Closed() {
			t.swapGuard(guard)
			return guard.Page(), nil
		}
		if hit {
			guard.Release()
		}
		delete(t.mostRecent, idx)
	}

	// Step 2: writer PATH_SUMMARY bypass: never touch the shared cache
	// for this index type while writing. This is a
	// correctness requirement, not an optimisation: the loaded page is
	// owned solely by this transaction, so the previous bypass page (if
	// any) must be closed on replacement rather than left to the cache's
	// sweeper, which never sees it.
	if t.writer && idx == pageref.PathSummary {
		combined, err := t.mgr.loadCombined(idx, pageKey, t.revision)
		if err != nil {
			return nil, err
		}
		t.swapGuard(combined.AcquireGuard())
		t.closeBypass()
		t.bypass = combined
		return combined, nil
	}

	// Step 3: shared-cache lookup; on miss, load and insert.
	history := t.mgr.fragmentHistory(idx, pageKey)
	if len(history) == 0 {
		return nil, xerrors.NotFoundf("txnmgr.Txn.Fetch", nil)
	}
	key := t.mgr.cacheKey(history[0])
	if guard, hit := t.mgr.cache.GetAndGuard(key); hit {
		t.swapGuard(guard)
		t.mostRecent[idx] = mostRecentSlot{pageKey: pageKey, key: key}
		return guard.Page(), nil
	}

	combined, err := t.mgr.loadCombined(idx, pageKey, t.revision)
	if err != nil {
		return nil, err
	}
	guard, _ := t.mgr.cache.Put(key, combined)
	t.swapGuard(guard)
	t.mostRecent[idx] = mostRecentSlot{pageKey: pageKey, key: key}
	return guard.Page(), nil
}

// swapGuard releases the transaction's current guard (if any) and
// adopts newGuard as the current cursor guard: a transaction owns at
// most one guard at a time. This always drops the previous
// bypass page's guard count to zero before closeBypass runs, whether or
// not the previous guard belonged to a bypass page.
func (t *Txn) swapGuard(newGuard *page.Guard) {
	if t.guard != nil {
		t.guard.Release()
	}
	t.guard = newGuard
}

// closeBypass closes the transaction's current PATH_SUMMARY bypass page,
// if any, and clears it. Must run after the page's guard has reached
// zero (via swapGuard or the guard release in Close), since Close is a
// no-op on a still-guarded page.
func (t *Txn) closeBypass() {
	if t.bypass != nil {
		t.bypass.Close()
		t.bypass = nil
	}
}

// Stage records a write: complete is the fully materialised page view,
// delta is the subset of slots this transaction actually mutated. Only
// valid on a write transaction. Returns the container's reference,
// updated with its intent-log position.
func (t *Txn) Stage(idx pageref.IndexType, pageKey uint64, complete, delta *page.Page) (*pageref.Reference, error) {
	if !t.writer {
		return nil, xerrors.ContractViolationf("txnmgr.Txn.Stage", nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, xerrors.ContractViolationf("txnmgr.Txn.Stage", nil)
	}

	ref := &pageref.Reference{
		DatabaseID: t.mgr.DatabaseID,
		ResourceID: t.mgr.ResourceID,
		IndexType:  idx,
		PageKey:    pageKey,
		LogKey:     pageref.NoLogKey,
		StorageKey: pageref.NoStorageKey,
	}
	updated := t.log.Put(ref, &intent.Container{Complete: complete, Delta: delta})
	t.staged = append(t.staged, stagedAddr{idx: idx, pageKey: pageKey})
	return updated, nil
}

// Flush writes every staged delta to disk via the page writer and
// records it in the manager's fragment history, returning the
// storage_keys assigned in log order. It does not advance the
// revision; call Manager.CommitRevision once the tree layer above has
// built its new revision root from these storage_keys.
func (t *Txn) Flush() ([]int64, error) {
	if !t.writer {
		return nil, xerrors.ContractViolationf("txnmgr.Txn.Flush", nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var storageKeys []int64
	for logKey, addr := range t.staged {
		ref := &pageref.Reference{LogKey: int64(logKey)}
		container, ok := t.log.Get(ref)
		if !ok {
			continue
		}
		storageKey, err := t.mgr.writer.WritePage(container.Delta)
		if err != nil {
			return nil, err
		}
		t.mgr.recordFragment(addr.idx, addr.pageKey, storageKey)
		storageKeys = append(storageKeys, storageKey)
	}
	return storageKeys, nil
}

// Close releases the current guard, closes the intent log (if any),
// then deregisters the epoch ticket, in that order, so cache operations
// remain safe until all guards are gone. Idempotent.
func (t *Txn) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.guard != nil {
		t.guard.Release()
		t.guard = nil
	}
	t.closeBypass()
	if t.log != nil {
		t.log.Close()
	}
	t.mgr.tracker.Deregister(t.ticket)
	t.closed = true
}
