package storage

import (
	"github.com/sirixgo/sirixgo/alloc"
	"github.com/sirixgo/sirixgo/codec"
	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/page"
)

// PageWriter serialises and compresses a page, then appends it to a
// DataFile, returning the assigned storage_key.
type PageWriter struct {
	df    *DataFile
	codec codec.Codec
}

// NewPageWriter builds a writer over df using c for compression.
func NewPageWriter(df *DataFile, c codec.Codec) *PageWriter {
	return &PageWriter{df: df, codec: c}
}

// WritePage serialises p, compresses it, and appends the resulting
// frame. The append itself is atomic and sequential (DataFile.Append).
func (w *PageWriter) WritePage(p *page.Page) (int64, error) {
	raw := serializePage(p)
	compressed, err := w.codec.Compress(nil, raw)
	if err != nil {
		return 0, err
	}
	return w.df.Append(compressed, len(raw))
}

// PageReader reads a fragment back by storage_key, decompressing and
// deserialising it. It never caches; callers do.
type PageReader struct {
	df    *DataFile
	codec codec.Codec
	alloc *alloc.Allocator // optional: off-heap decompression target
}

// NewPageReader builds a reader over df. allocator may be nil, in which
// case decompression targets a plain heap-allocated slice.
func NewPageReader(df *DataFile, c codec.Codec, allocator *alloc.Allocator) *PageReader {
	return &PageReader{df: df, codec: c, alloc: allocator}
}

// ReadPage loads and decompresses the fragment at storageKey, returning
// the deserialised page and (if an allocator is configured) a releaser
// for its off-heap decompression buffer — callers must invoke it once
// they are done with the page's slot payloads, mirroring the guard
// discipline the page/cache layers already use for borrowed memory.
//
// The database_id/resource_id context a caller needs alongside this
// page is carried on the pageref.Reference that accompanies the fetch,
// not stamped onto the page itself: these ids are supplied by context,
// never persisted inside the page.
func (r *PageReader) ReadPage(storageKey int64) (*page.Page, alloc.Releaser, error) {
	compressed, decompressedLen, err := r.df.ReadFrame(storageKey)
	if err != nil {
		return nil, nil, err
	}

	var dst []byte
	var release alloc.Releaser
	if r.alloc != nil {
		dst, release, err = r.alloc.Allocate(decompressedLen)
		if err != nil {
			return nil, nil, err
		}
	} else {
		dst = make([]byte, decompressedLen)
		release = func() {}
	}

	n, err := r.codec.Decompress(dst, compressed)
	if err != nil {
		release()
		obs.For("storage").Debug().Int64("storage_key", storageKey).Err(err).Msg("decompress failed")
		return nil, nil, err
	}

	p, err := deserializePage(dst[:n])
	if err != nil {
		release()
		return nil, nil, err
	}
	return p, release, nil
}
