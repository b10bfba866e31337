package alloc

// backing is the platform seam between a size class and the OS memory it
// draws from. acquire returns a zeroed region of exactly `size` bytes;
// decommit advises the OS the region is no longer needed without
// unmapping it (so it can be handed out again later without a fresh
// syscall); free tears the region down entirely at allocator Close.
type backing interface {
	acquire(size int) ([]byte, error)
	decommit(seg []byte) error
	free(seg []byte) error
}
