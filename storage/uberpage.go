package storage

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/sirixgo/sirixgo/internal/xerrors"
)

const uberPageOffset = 0
const uberPageLen = 16 // u64 revision + u64 storageKey

// UberPage is the small, fixed-offset pointer to the active revisions
// file head. It is the single thing a resource reopen must locate to
// find its latest committed revision.
type UberPage struct {
	backing Backing
}

// NewUberPage wraps backing, a small dedicated region (or a reserved
// prefix of a larger file) at a fixed offset.
func NewUberPage(backing Backing) *UberPage {
	return &UberPage{backing: backing}
}

// WriteHead persists the current revision head.
func (u *UberPage) WriteHead(revision uint64, storageKey int64) error {
	record := make([]byte, uberPageLen)
	binary.BigEndian.PutUint64(record[0:8], revision)
	binary.BigEndian.PutUint64(record[8:16], uint64(storageKey))
	if _, err := u.backing.WriteAt(record, uberPageOffset); err != nil {
		return xerrors.IOFailuref("storage.UberPage.WriteHead", err)
	}
	return nil
}

// ReadHead reads back the persisted revision head. ok is false on a
// freshly-initialised (empty) backing.
func (u *UberPage) ReadHead() (revision uint64, storageKey int64, ok bool, err error) {
	record := make([]byte, uberPageLen)
	if _, readErr := u.backing.ReadAt(record, uberPageOffset); readErr != nil {
		if errors.Is(readErr, io.EOF) {
			return 0, 0, false, nil
		}
		return 0, 0, false, xerrors.IOFailuref("storage.UberPage.ReadHead", readErr)
	}
	revision = binary.BigEndian.Uint64(record[0:8])
	storageKey = int64(binary.BigEndian.Uint64(record[8:16]))
	return revision, storageKey, true, nil
}
