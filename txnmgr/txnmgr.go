// Package txnmgr implements the transaction facade: the public surface
// the record/tree layer consumes, wiring together the buffer cache,
// versioning strategy, page reader/writer, intent log and epoch tracker
// built in the sibling packages.
package txnmgr

import (
	"fmt"
	"sync"

	"github.com/sirixgo/sirixgo/cache"
	"github.com/sirixgo/sirixgo/epoch"
	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/internal/xerrors"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
	"github.com/sirixgo/sirixgo/storage"
	"github.com/sirixgo/sirixgo/version"
)

// Manager owns the shared resources one open resource needs to serve
// transactions: the cache, the on-disk reader/writer, the fragment
// history, the revision index and the epoch tracker.
//
// Locating the fragment list for a (index_type, page_key) pair is, in a
// full implementation, the job of the indirect tree above this layer,
// which is out of scope here. Manager stands in for that collaborator
// with an in-memory, newest-first fragment history so this facade is
// testable standalone; a real embedding replaces fragmentHistory with
// indirect page lookups.
type Manager struct {
	DatabaseID string
	ResourceID uint64

	cache    *cache.Cache
	reader   *storage.PageReader
	writer   *storage.PageWriter
	revs     *storage.RevisionIndex
	uber     *storage.UberPage
	tracker  *epoch.Tracker
	strategy version.Strategy
	window   int

	mu              sync.Mutex
	currentRevision uint64
	fragments       map[fragKey][]int64 // newest-first
}

type fragKey struct {
	IndexType pageref.IndexType
	PageKey   uint64
}

// New builds a Manager over already-open storage components.
func New(databaseID string, resourceID uint64, c *cache.Cache, reader *storage.PageReader, writer *storage.PageWriter, revs *storage.RevisionIndex, uber *storage.UberPage, tracker *epoch.Tracker, strategy version.Strategy, restoreWindow int) *Manager {
	startRevision, _, ok, _ := uber.ReadHead()
	if !ok {
		startRevision = 0
	}
	tracker.SetLastCommitted(startRevision)
	return &Manager{
		DatabaseID:      databaseID,
		ResourceID:      resourceID,
		cache:           c,
		reader:          reader,
		writer:          writer,
		revs:            revs,
		uber:            uber,
		tracker:         tracker,
		strategy:        strategy,
		window:          restoreWindow,
		currentRevision: startRevision,
		fragments:       make(map[fragKey][]int64),
	}
}

// recordFragment prepends storageKey to the newest-first fragment
// history for (idx, pageKey), trimming to the strategy's read window
// plus one so history never grows unbounded beyond what combine could
// ever need.
func (m *Manager) recordFragment(idx pageref.IndexType, pageKey uint64, storageKey int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fragKey{idx, pageKey}
	history := append([]int64{storageKey}, m.fragments[k]...)
	if max := m.strategy.FragmentsToRead(m.window) + 1; len(history) > max {
		history = history[:max]
	}
	m.fragments[k] = history
}

func (m *Manager) fragmentHistory(idx pageref.IndexType, pageKey uint64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.fragments[fragKey{idx, pageKey}]...)
}

func (m *Manager) cacheKey(storageKey int64) pageref.Key {
	return pageref.Key{DatabaseID: m.DatabaseID, ResourceID: m.ResourceID, LogKey: pageref.NoLogKey, StorageKey: storageKey}
}

// loadCombined reads and combines the fragment history for (idx,
// pageKey) as of revision, returning nil with NotFound if no fragment
// has ever been written for it.
func (m *Manager) loadCombined(idx pageref.IndexType, pageKey, revision uint64) (*page.Page, error) {
	history := m.fragmentHistory(idx, pageKey)
	if len(history) == 0 {
		return nil, xerrors.NotFoundf("txnmgr.loadCombined", fmt.Errorf("index_type=%s page_key=%d", idx, pageKey))
	}
	limit := m.strategy.FragmentsToRead(m.window)
	if limit < len(history) {
		history = history[:limit]
	}

	fragments := make([]*page.Page, 0, len(history))
	for _, storageKey := range history {
		p, release, err := m.reader.ReadPage(storageKey)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, p)
		release()
	}
	obs.For("txnmgr").Trace().
		Str("index_type", idx.String()).
		Uint64("page_key", pageKey).
		Int("fragments", len(fragments)).
		Msg("combine")
	return version.Combine(idx, pageKey, revision, fragments), nil
}

// CommitRevision advances the revision counter and publishes the new
// head through the revisions file and UberPage. It writes no fragments
// itself: staged pages reach disk through Txn.Flush, which the caller
// runs first. rootStorageKey is supplied by the caller:
// the indirect tree layer above this facade owns constructing a
// revision root, which is out of scope here.
func (m *Manager) CommitRevision(rootStorageKey int64) (uint64, error) {
	m.mu.Lock()
	newRevision := m.currentRevision + 1
	m.mu.Unlock()

	if err := m.revs.Append(newRevision, rootStorageKey); err != nil {
		return 0, err
	}
	if err := m.uber.WriteHead(newRevision, rootStorageKey); err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.currentRevision = newRevision
	m.mu.Unlock()
	m.tracker.SetLastCommitted(newRevision)
	return newRevision, nil
}

// CurrentRevision returns the latest committed revision number.
func (m *Manager) CurrentRevision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRevision
}

// Close stops the manager's shared cache (only call once no resource
// using it remains open; SPEC_FULL.md §9.1 shutdown policy leaves this
// decision to the embedder since the cache may be shared process-wide).
func (m *Manager) Close() {
	m.cache.Close()
}
