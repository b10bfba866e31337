package version_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
	"github.com/sirixgo/sirixgo/version"
)

func frag(rev uint64, sets map[int]string) *page.Page {
	p := page.New(pageref.Document, 0, rev)
	for slot, v := range sets {
		p.Set(slot, []byte(v))
	}
	return p
}

func TestCombineNewestWins(t *testing.T) {
	// F0 newest: slot 0 = "new"; F1 older: slot 0 = "old", slot 1 = "kept".
	f0 := frag(3, map[int]string{0: "new"})
	f1 := frag(2, map[int]string{0: "old", 1: "kept"})

	out := version.Combine(pageref.Document, 0, 3, []*page.Page{f0, f1})
	require.Equal(t, "new", string(out.Slots[0]))
	require.Equal(t, "kept", string(out.Slots[1]))
	require.Equal(t, 2, out.Bitmap.Count())
}

func TestCombineEmptyFragmentList(t *testing.T) {
	out := version.Combine(pageref.Document, 0, 1, nil)
	require.Equal(t, 0, out.Bitmap.Count())
}

func TestCombineFullyPopulatedPage(t *testing.T) {
	sets := make(map[int]string, page.SlotsPerPage)
	for i := 0; i < page.SlotsPerPage; i++ {
		sets[i] = "x"
	}
	f0 := frag(1, sets)
	out := version.Combine(pageref.Document, 0, 1, []*page.Page{f0})
	require.Equal(t, page.SlotsPerPage, out.Bitmap.Count())
}

func TestCombineOverflowMergeNewestWins(t *testing.T) {
	f0 := frag(2, nil)
	f0.Overflow = map[uint32]uint64{5: 200}
	f1 := frag(1, nil)
	f1.Overflow = map[uint32]uint64{5: 100, 6: 300}

	out := version.Combine(pageref.Document, 0, 2, []*page.Page{f0, f1})
	require.Equal(t, uint64(200), out.Overflow[5])
	require.Equal(t, uint64(300), out.Overflow[6])
}

func TestCombineForModificationPlainDeltaStartsEmpty(t *testing.T) {
	f0 := frag(1, map[int]string{0: "v1"})
	view := version.Incremental.CombineForModification(pageref.Document, 0, 2, []*page.Page{f0}, 3)
	require.Equal(t, "v1", string(view.Complete.Slots[0]))
	require.Equal(t, 0, view.Delta.Bitmap.Count())
}

func TestSlidingSnapshotCarriesOutOfWindowSlot(t *testing.T) {
	// window=2: fragments[0:2] in window, fragments[2:] out of window.
	// slot 9 is only populated by the out-of-window fragment -> must be
	// carried into delta so the bounded-restore guarantee holds.
	inWin0 := frag(5, map[int]string{0: "v5"})
	inWin1 := frag(4, map[int]string{0: "v4"})
	outOfWin := frag(3, map[int]string{9: "only-here"})

	view := version.SlidingSnapshot.CombineForModification(
		pageref.Document, 0, 6,
		[]*page.Page{inWin0, inWin1, outOfWin},
		2,
	)
	require.True(t, view.Delta.Populated(9))
	require.Equal(t, "only-here", string(view.Delta.Slots[9]))
	require.False(t, view.Delta.Populated(0)) // untouched, in-window slot stays out of delta
}

func TestSlidingSnapshotWindowEqualToFragmentCountCarriesNothing(t *testing.T) {
	f0 := frag(2, map[int]string{0: "v2"})
	f1 := frag(1, map[int]string{1: "v1"})
	view := version.SlidingSnapshot.CombineForModification(pageref.Document, 0, 3, []*page.Page{f0, f1}, 2)
	require.Equal(t, 0, view.Delta.Bitmap.Count())
}

func TestRestoreWindowOfOneHasNoRestoreWindow(t *testing.T) {
	require.Equal(t, 1, version.Incremental.FragmentsToRead(1))
	require.Equal(t, 1, version.SlidingSnapshot.FragmentsToRead(1))
	require.Equal(t, 1, version.Full.FragmentsToRead(5)) // R ignored for FULL
	require.Equal(t, 2, version.Differential.FragmentsToRead(5))
}
