//go:build unix

package alloc

import "golang.org/x/sys/unix"

// mmapBacking backs a size class with anonymous, private OS pages, the
// way FiloDB's database.mmapInit backs its whole file with
// unix.Mmap/Munmap (filodb_mmap_unix.go). Here each segment is its own
// anonymous mapping rather than a window into a file mapping, since the
// allocator's segments are transient scratch/payload regions, not the
// durable store itself.
type mmapBacking struct{}

func newBacking() backing { return mmapBacking{} }

func (mmapBacking) acquire(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func (mmapBacking) decommit(seg []byte) error {
	return unix.Madvise(seg, unix.MADV_DONTNEED)
}

func (mmapBacking) free(seg []byte) error {
	return unix.Munmap(seg)
}
