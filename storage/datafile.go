package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/sirixgo/sirixgo/internal/xerrors"
)

// Backing is the minimal random-access surface a DataFile needs. An
// *os.File satisfies it directly; tests back it with
// github.com/dsnet/golib/memfile for an in-memory file.
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

const frameHeaderLen = 8 // u32 totalLen + u32 decompressedLen

// DataFile is the log-structured, append-only data file: a
// concatenation of length-framed, compressed page byte regions. An
// offset into it (the start of a frame) is the storage_key referenced
// by a pageref.Reference.
//
// A frame is self-describing so a storage_key alone is sufficient to
// read a fragment back: [u32 totalLen][u32 decompressedLen][totalLen-4
// bytes of codec-specific payload]. totalLen covers everything after
// itself, so totalLen-4 is the payload length.
type DataFile struct {
	mu      sync.Mutex
	backing Backing
	offset  int64
}

// NewDataFile wraps backing, appending starting at initialOffset (0 for
// a brand new file, or the prior write offset recovered from the
// UberPage/revisions file on reopen).
func NewDataFile(backing Backing, initialOffset int64) *DataFile {
	return &DataFile{backing: backing, offset: initialOffset}
}

// Append writes one frame and returns its storage_key. The write is an
// atomic, sequential append: a single mutex serialises the offset bump
// and the WriteAt call.
func (d *DataFile) Append(compressed []byte, decompressedLen int) (int64, error) {
	frame := make([]byte, frameHeaderLen+len(compressed))
	binary.BigEndian.PutUint32(frame[0:4], uint32(4+len(compressed)))
	binary.BigEndian.PutUint32(frame[4:8], uint32(decompressedLen))
	copy(frame[frameHeaderLen:], compressed)

	d.mu.Lock()
	storageKey := d.offset
	_, err := d.backing.WriteAt(frame, storageKey)
	if err != nil {
		d.mu.Unlock()
		return 0, xerrors.IOFailuref("storage.DataFile.Append", err)
	}
	d.offset += int64(len(frame))
	d.mu.Unlock()
	return storageKey, nil
}

// ReadFrame reads the frame at storageKey and returns its compressed
// payload and the decompressed length the writer recorded.
func (d *DataFile) ReadFrame(storageKey int64) (compressed []byte, decompressedLen int, err error) {
	header := make([]byte, frameHeaderLen)
	if _, err := d.backing.ReadAt(header, storageKey); err != nil {
		return nil, 0, xerrors.IOFailuref("storage.DataFile.ReadFrame", err)
	}
	totalLen := binary.BigEndian.Uint32(header[0:4])
	decompressedLen = int(binary.BigEndian.Uint32(header[4:8]))
	if totalLen < 4 {
		return nil, 0, xerrors.CorruptFragmentf("storage.DataFile.ReadFrame", fmt.Errorf("frame length %d below minimum", totalLen))
	}
	payload := make([]byte, totalLen-4)
	if len(payload) > 0 {
		if _, err := d.backing.ReadAt(payload, storageKey+frameHeaderLen); err != nil {
			return nil, 0, xerrors.IOFailuref("storage.DataFile.ReadFrame", err)
		}
	}
	return payload, decompressedLen, nil
}

// Offset reports the next append position, used to persist a recovery
// point in the UberPage.
func (d *DataFile) Offset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}
