//go:build !unix

package alloc

import "github.com/ncw/directio"

// alignedBacking is the non-unix fallback: page-aligned heap blocks from
// ncw/directio's AlignedBlock. decommit/free are no-ops beyond letting
// the GC reclaim the block: there is no portable anonymous-mmap
// equivalent on this build, so only the pool's own borrowed-byte
// accounting stays correct, not the return of physical memory to the OS.
type alignedBacking struct{}

func newBacking() backing { return alignedBacking{} }

func (alignedBacking) acquire(size int) ([]byte, error) {
	n := size
	if n < directio.BlockSize {
		n = directio.BlockSize
	}
	return directio.AlignedBlock(n)[:size], nil
}

func (alignedBacking) decommit(seg []byte) error { return nil }

func (alignedBacking) free(seg []byte) error { return nil }
