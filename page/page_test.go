package page_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

func TestBitmapCoherence(t *testing.T) {
	p := page.New(pageref.Document, 0, 1)
	require.Equal(t, 0, p.Bitmap.Count())

	p.Set(0, []byte("a"))
	p.Set(1023, []byte("b"))
	require.True(t, p.Populated(0))
	require.True(t, p.Populated(1023))
	require.False(t, p.Populated(1))
	require.Equal(t, 2, p.Bitmap.Count())

	var seen []int
	p.Bitmap.Range(func(slot int) { seen = append(seen, slot) })
	require.Equal(t, []int{0, 1023}, seen)

	p.Clear(0)
	require.False(t, p.Populated(0))
	require.Equal(t, 1, p.Bitmap.Count())
}

func TestGuardReleaseMatchesVersion(t *testing.T) {
	p := page.New(pageref.Document, 0, 1)
	g := p.AcquireGuard()
	require.EqualValues(t, 1, p.GuardCount())
	require.NoError(t, g.Release())
	require.EqualValues(t, 0, p.GuardCount())
}

func TestCloseNoopWhileGuarded(t *testing.T) {
	p := page.New(pageref.Document, 0, 1)
	_ = p.AcquireGuard()
	require.False(t, p.Close())
	require.False(t, p.Closed())
}

func TestCloseIdempotent(t *testing.T) {
	p := page.New(pageref.Document, 0, 1)
	require.True(t, p.Close())
	require.True(t, p.Close())
}

