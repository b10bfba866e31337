package intent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/cache"
	"github.com/sirixgo/sirixgo/intent"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

func TestPutAssignsLogKeyAndRemovesFromSharedCache(t *testing.T) {
	c := cache.New(cache.Config{ShardCount: 1}, nil)
	defer c.Close()

	p := page.New(pageref.CAS, 1, 1)
	ref := &pageref.Reference{DatabaseID: "db", ResourceID: 1, IndexType: pageref.CAS, PageKey: 1, LogKey: pageref.NoLogKey, StorageKey: 42}
	guard, _ := c.Put(ref.Key(), p)
	require.NoError(t, guard.Release())

	log := intent.New(c)
	updated := log.Put(ref, &intent.Container{Complete: p, Delta: p})

	require.True(t, updated.InLog())
	require.Equal(t, int64(0), updated.LogKey)

	_, stillCached := c.Get(ref.Key())
	require.False(t, stillCached)

	container, ok := log.Get(updated)
	require.True(t, ok)
	require.Same(t, p, container.Complete)
}

func TestPutRemovesStillGuardedPageFromSharedCache(t *testing.T) {
	c := cache.New(cache.Config{ShardCount: 1}, nil)
	defer c.Close()

	p := page.New(pageref.CAS, 1, 1)
	ref := &pageref.Reference{DatabaseID: "db", ResourceID: 1, IndexType: pageref.CAS, PageKey: 1, LogKey: pageref.NoLogKey, StorageKey: 42}
	guard, _ := c.Put(ref.Key(), p)
	require.Equal(t, int32(1), p.GuardCount()) // guard from Put is never released before Put

	log := intent.New(c)
	log.Put(ref, &intent.Container{Complete: p, Delta: p})

	_, stillCached := c.Get(ref.Key())
	require.False(t, stillCached, "a still-guarded page must still be evicted from the shared cache once it moves into the intent log")
	require.Error(t, guard.Release())
}

func TestPutForceReleasesOutstandingGuards(t *testing.T) {
	p := page.New(pageref.Name, 1, 1)
	guard := p.AcquireGuard()
	require.Equal(t, int32(1), p.GuardCount())

	log := intent.New(nil)
	ref := &pageref.Reference{DatabaseID: "db", ResourceID: 1, LogKey: pageref.NoLogKey}
	log.Put(ref, &intent.Container{Complete: p, Delta: p})

	require.Equal(t, int32(0), p.GuardCount())
	require.Error(t, guard.Release()) // guard was force-released; release now detects the mismatch
}

func TestClearClosesCompleteAndDeltaOnceEach(t *testing.T) {
	log := intent.New(nil)
	complete := page.New(pageref.Path, 1, 1)
	delta := page.New(pageref.Path, 1, 1)

	ref1 := &pageref.Reference{DatabaseID: "db", ResourceID: 1, LogKey: pageref.NoLogKey}
	log.Put(ref1, &intent.Container{Complete: complete, Delta: delta})

	log.Clear()
	require.True(t, complete.Closed())
	require.True(t, delta.Closed())

	_, ok := log.Get(&pageref.Reference{LogKey: 0})
	require.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	log := intent.New(nil)
	p := page.New(pageref.CAS, 1, 1)
	ref := &pageref.Reference{DatabaseID: "db", ResourceID: 1, LogKey: pageref.NoLogKey}
	log.Put(ref, &intent.Container{Complete: p, Delta: p})

	log.Close()
	log.Close() // must not panic or double-close

	entries, bytes := log.Stats()
	require.Equal(t, 0, entries)
	require.Equal(t, int64(0), bytes)
}
