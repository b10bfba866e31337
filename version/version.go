// Package version implements the four fragment-combining strategies:
// FULL, DIFFERENTIAL, INCREMENTAL, SLIDING_SNAPSHOT. Each strategy
// decides how many on-disk fragments a combine needs to read and how a
// write transaction's modification delta is shaped; the combine
// algorithm itself (newest-fragment-wins per slot) is shared.
package version

import (
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

// Strategy selects how many fragments a page's history is split across
// and how combine-for-modification's delta is shaped.
type Strategy int

const (
	Full Strategy = iota
	Differential
	Incremental
	SlidingSnapshot
)

func (s Strategy) String() string {
	switch s {
	case Full:
		return "FULL"
	case Differential:
		return "DIFFERENTIAL"
	case Incremental:
		return "INCREMENTAL"
	case SlidingSnapshot:
		return "SLIDING_SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// FragmentsToRead returns the maximum number of fragments combine needs
// to load for this strategy given a restore window R (ignored for FULL
// and DIFFERENTIAL). R=0 is treated as 1, the smallest meaningful window.
func (s Strategy) FragmentsToRead(r int) int {
	if r < 1 {
		r = 1
	}
	switch s {
	case Full:
		return 1
	case Differential:
		return 2
	case Incremental, SlidingSnapshot:
		return r
	default:
		return 1
	}
}

// Combine merges an ordered fragment list (newest first, F[0] is the
// most recent contribution) into a single logical page: for every slot
// i, the result takes F[j][i] where j is the smallest index at which
// that fragment populates slot i, and is empty if no fragment does.
// Overflow references are merged by the same newest-wins rule. Iteration
// walks each fragment's populated-slot bitmap so the cost is
// proportional to populated slots, not page capacity.
func Combine(idx pageref.IndexType, pageKey, revision uint64, fragments []*page.Page) *page.Page {
	out := page.New(idx, pageKey, revision)
	if len(fragments) == 0 {
		return out
	}
	// Walk fragments oldest-first so a newer fragment's Set simply
	// overwrites anything an older one already wrote into out — this
	// gives "smallest index populated wins" without needing a per-slot
	// already-set check.
	for i := len(fragments) - 1; i >= 0; i-- {
		f := fragments[i]
		f.Bitmap.Range(func(slot int) {
			out.Set(slot, f.Slots[slot])
		})
		for slot, ptr := range f.Overflow {
			if out.Overflow == nil {
				out.Overflow = make(map[uint32]uint64)
			}
			out.Overflow[slot] = ptr
		}
	}
	return out
}

// ModificationView is the pair (complete, delta) a write transaction
// works against: complete is the plain Combine result; delta starts
// empty and accumulates exactly the slots the transaction writes.
type ModificationView struct {
	Complete *page.Page
	Delta    *page.Page
}

// CombineForModification builds the (complete, delta) pair a writer
// needs. For SlidingSnapshot, any slot populated by an out-of-window
// fragment but by no in-window fragment is carried into delta up front
// so the bounded-restore guarantee holds even if the transaction never
// touches that slot itself.
func (s Strategy) CombineForModification(idx pageref.IndexType, pageKey, revision uint64, fragments []*page.Page, windowSize int) ModificationView {
	complete := Combine(idx, pageKey, revision, fragments)
	delta := page.New(idx, pageKey, revision)

	if s == SlidingSnapshot && windowSize > 0 && windowSize < len(fragments) {
		inWindow := fragments[:windowSize]
		outOfWindow := fragments[windowSize:]

		inWindowBitmap := unionBitmap(inWindow)
		for _, f := range outOfWindow {
			f.Bitmap.Range(func(slot int) {
				if !inWindowBitmap.Test(slot) {
					delta.Set(slot, f.Slots[slot])
					inWindowBitmap.Set(slot) // carried forward, don't duplicate from an even-older fragment
				}
			})
		}
	}

	return ModificationView{Complete: complete, Delta: delta}
}

// unionBitmap computes the in-window populated-slot bitmap used by
// CombineForModification without materialising a full scratch page: a
// 128-byte bitmap stands in for the 64KB page the naive approach would
// need.
func unionBitmap(fragments []*page.Page) page.Bitmap {
	var u page.Bitmap
	for _, f := range fragments {
		for w := range u {
			u[w] |= f.Bitmap[w]
		}
	}
	return u
}
