// Package codec implements the pluggable page compression codec:
// identity (no-op) and LZ4, selected per resource from the resource
// configuration blob.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Name identifies a codec choice in the resource configuration blob.
type Name string

const (
	Identity Name = "identity"
	LZ4      Name = "lz4"
)

// Codec compresses/decompresses a single page byte region. Implementations
// must be safe for concurrent use by multiple readers/writers.
type Codec interface {
	Name() Name
	// Compress appends the compressed form of src to dst and returns the
	// result (dst may be nil).
	Compress(dst, src []byte) ([]byte, error)
	// Decompress writes the decompressed form of src into dst, which
	// must already be sized to the known decompressed length (the
	// length prefix the data file stores ahead of the codec-specific
	// bytes), and returns the number of bytes written.
	Decompress(dst, src []byte) (int, error)
}

// For resolves a codec by name.
func For(name Name) (Codec, error) {
	switch name {
	case Identity, "":
		return identityCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

type identityCodec struct{}

func (identityCodec) Name() Name { return Identity }

func (identityCodec) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func (identityCodec) Decompress(dst, src []byte) (int, error) {
	return copy(dst, src), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() Name { return LZ4 }

func (lz4Codec) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	w := lz4.NewWriter(buf)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(dst, src []byte) (int, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return n, nil
}
