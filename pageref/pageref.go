// Package pageref defines the identity used for buffer-cache keys and
// parent-to-child links: the page reference and the closed set of index
// types a resource's trees may belong to.
package pageref

import "sync/atomic"

// IndexType is the closed enumeration of logical trees a resource may
// hold. PATH_NAME_MAPPING is carried forward from the wider family of
// versioned-tree engines this system is modelled on even though the
// distilled spec's examples never exercise it; it behaves like any other
// index type here (no special-cased logic beyond the PATH_SUMMARY
// bypass, which is keyed on the constant below, not on type identity
// generally).
type IndexType uint8

const (
	Document IndexType = iota
	PathSummary
	Name
	Path
	CAS
	ChangedNodes
	RecordToRevisions
	PathNameMapping
)

func (t IndexType) String() string {
	switch t {
	case Document:
		return "DOCUMENT"
	case PathSummary:
		return "PATH_SUMMARY"
	case Name:
		return "NAME"
	case Path:
		return "PATH"
	case CAS:
		return "CAS"
	case ChangedNodes:
		return "CHANGED_NODES"
	case RecordToRevisions:
		return "RECORD_TO_REVISIONS"
	case PathNameMapping:
		return "PATH_NAME_MAPPING"
	default:
		return "UNKNOWN"
	}
}

// NoLogKey and NoStorageKey are the sentinel values meaning "not logged"
// and "not yet assigned a disk offset".
const (
	NoLogKey     int64 = -1
	NoStorageKey int64 = -1
)

// Swizzlable is the minimal surface a swizzled pointer target must offer
// so pageref does not need to import the page package (which in turn
// holds Reference values), avoiding an import cycle.
type Swizzlable interface {
	// Closed reports whether the underlying page has already been
	// closed; a swizzled pointer to a closed page must be discarded by
	// the caller rather than used.
	Closed() bool
}

// Reference is the cache key and parent-link identity for a page.
//
// Logical equality is (DatabaseID, ResourceID, LogKey, StorageKey), as
// specified: IndexType and PageKey travel alongside purely as addressing
// metadata (used for the PATH_SUMMARY bypass and for logging), not as
// part of the identity tuple, since a given (LogKey, StorageKey) pair
// already pins down exactly one page for a given resource.
type Reference struct {
	DatabaseID string
	ResourceID uint64
	IndexType  IndexType
	PageKey    uint64

	LogKey     int64
	StorageKey int64

	swizzled atomic.Pointer[Swizzlable]
}

// Key is the comparable value used as a map key by the buffer cache.
type Key struct {
	DatabaseID string
	ResourceID uint64
	LogKey     int64
	StorageKey int64
}

func (r *Reference) Key() Key {
	return Key{
		DatabaseID: r.DatabaseID,
		ResourceID: r.ResourceID,
		LogKey:     r.LogKey,
		StorageKey: r.StorageKey,
	}
}

// Swizzle caches a direct pointer to the resolved page instance. It is a
// runtime-only cache, never ownership: callers must always revalidate
// via the buffer cache before dereferencing it (see Swizzled).
func (r *Reference) Swizzle(target Swizzlable) {
	r.swizzled.Store(&target)
}

// Unswizzle drops any cached direct pointer, e.g. once the page this
// reference pointed to has been evicted. The buffer cache keys entries
// by Key, not Reference, and never calls it.
func (r *Reference) Unswizzle() {
	r.swizzled.Store(nil)
}

// Swizzled returns the cached direct pointer and whether one is present.
// The caller must still check Closed() before trusting it.
func (r *Reference) Swizzled() (Swizzlable, bool) {
	p := r.swizzled.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// InLog reports whether this reference currently lives in a writer's
// intent log rather than (potentially) the shared cache.
func (r *Reference) InLog() bool { return r.LogKey != NoLogKey }

// WithLogKey returns a new reference assigned to a position in an intent
// log, matching the intent log's "the reference's log_key is assigned to
// the container's position" contract. It never copies the receiver's
// atomic swizzle slot (atomic.Pointer values must not be copied).
func (r *Reference) WithLogKey(logKey int64) *Reference {
	return &Reference{
		DatabaseID: r.DatabaseID,
		ResourceID: r.ResourceID,
		IndexType:  r.IndexType,
		PageKey:    r.PageKey,
		LogKey:     logKey,
		StorageKey: r.StorageKey,
	}
}

// WithStorageKey returns a new reference pointing at a committed on-disk
// fragment offset, clearing any log key (the fragment is no longer only
// visible through the intent log).
func (r *Reference) WithStorageKey(storageKey int64) *Reference {
	return &Reference{
		DatabaseID: r.DatabaseID,
		ResourceID: r.ResourceID,
		IndexType:  r.IndexType,
		PageKey:    r.PageKey,
		LogKey:     NoLogKey,
		StorageKey: storageKey,
	}
}
