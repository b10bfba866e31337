package storage

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/sirixgo/sirixgo/internal/xerrors"
)

const revisionRecordLen = 16 // u64 revision + u64 storageKey

// RevisionIndex is the append-only revisions file, mapping revision
// number to the storage_key of that revision's root page. It is rebuilt
// into memory on open by scanning the backing file front to back.
type RevisionIndex struct {
	mu      sync.RWMutex
	backing Backing
	offset  int64
	entries map[uint64]int64
	head    uint64
	hasHead bool
}

// OpenRevisionIndex scans backing from the start and rebuilds the
// in-memory revision -> storage_key map.
func OpenRevisionIndex(backing Backing) (*RevisionIndex, error) {
	ri := &RevisionIndex{backing: backing, entries: make(map[uint64]int64)}

	record := make([]byte, revisionRecordLen)
	for {
		_, err := backing.ReadAt(record, ri.offset)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, xerrors.IOFailuref("storage.OpenRevisionIndex", err)
		}
		revision := binary.BigEndian.Uint64(record[0:8])
		storageKey := int64(binary.BigEndian.Uint64(record[8:16]))
		ri.entries[revision] = storageKey
		ri.head, ri.hasHead = revision, true
		ri.offset += revisionRecordLen
	}
	return ri, nil
}

// Append records revision's root storage_key and advances the head.
func (ri *RevisionIndex) Append(revision uint64, storageKey int64) error {
	record := make([]byte, revisionRecordLen)
	binary.BigEndian.PutUint64(record[0:8], revision)
	binary.BigEndian.PutUint64(record[8:16], uint64(storageKey))

	ri.mu.Lock()
	defer ri.mu.Unlock()
	if _, err := ri.backing.WriteAt(record, ri.offset); err != nil {
		return xerrors.IOFailuref("storage.RevisionIndex.Append", err)
	}
	ri.offset += revisionRecordLen
	ri.entries[revision] = storageKey
	ri.head, ri.hasHead = revision, true
	return nil
}

// Get returns the root storage_key for revision, if known.
func (ri *RevisionIndex) Get(revision uint64) (int64, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	storageKey, ok := ri.entries[revision]
	return storageKey, ok
}

// Head returns the most recently appended (revision, storage_key) pair.
func (ri *RevisionIndex) Head() (revision uint64, storageKey int64, ok bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	if !ri.hasHead {
		return 0, 0, false
	}
	return ri.head, ri.entries[ri.head], true
}
