package storage_test

import (
	"testing"

	"github.com/dsnet/golib/memfile"
	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/codec"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
	"github.com/sirixgo/sirixgo/storage"
)

func TestPageWriteReadRoundTrip(t *testing.T) {
	backing := memfile.New(nil)
	df := storage.NewDataFile(backing, 0)

	c, err := codec.For(codec.Identity)
	require.NoError(t, err)
	writer := storage.NewPageWriter(df, c)
	reader := storage.NewPageReader(df, c, nil)

	p := page.New(pageref.CAS, 7, 3)
	p.Set(0, []byte("alpha"))
	p.Set(5, []byte("beta"))
	p.Overflow = map[uint32]uint64{5: 99}
	p.Dewey = []byte{0x01, 0x02}

	storageKey, err := writer.WritePage(p)
	require.NoError(t, err)

	got, release, err := reader.ReadPage(storageKey)
	require.NoError(t, err)
	defer release()

	require.Equal(t, p.IndexType, got.IndexType)
	require.Equal(t, p.PageKey, got.PageKey)
	require.Equal(t, p.Revision, got.Revision)
	require.Equal(t, []byte("alpha"), got.Slots[0])
	require.Equal(t, []byte("beta"), got.Slots[5])
	require.True(t, got.Populated(0))
	require.True(t, got.Populated(5))
	require.False(t, got.Populated(1))
	require.Equal(t, uint64(99), got.Overflow[5])
	require.Equal(t, []byte{0x01, 0x02}, got.Dewey)
}

func TestPageWriteReadRoundTripLZ4(t *testing.T) {
	backing := memfile.New(nil)
	df := storage.NewDataFile(backing, 0)

	c, err := codec.For(codec.LZ4)
	require.NoError(t, err)
	writer := storage.NewPageWriter(df, c)
	reader := storage.NewPageReader(df, c, nil)

	p := page.New(pageref.Document, 1, 1)
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i % 13)
	}
	p.Set(10, payload)

	storageKey, err := writer.WritePage(p)
	require.NoError(t, err)

	got, release, err := reader.ReadPage(storageKey)
	require.NoError(t, err)
	defer release()
	require.Equal(t, payload, got.Slots[10])
}

func TestMultiplePagesAppendSequentially(t *testing.T) {
	backing := memfile.New(nil)
	df := storage.NewDataFile(backing, 0)
	c, err := codec.For(codec.Identity)
	require.NoError(t, err)
	writer := storage.NewPageWriter(df, c)
	reader := storage.NewPageReader(df, c, nil)

	p1 := page.New(pageref.Name, 1, 1)
	p1.Set(0, []byte("one"))
	p2 := page.New(pageref.Name, 2, 2)
	p2.Set(0, []byte("two"))

	key1, err := writer.WritePage(p1)
	require.NoError(t, err)
	key2, err := writer.WritePage(p2)
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)

	got1, release1, err := reader.ReadPage(key1)
	require.NoError(t, err)
	defer release1()
	got2, release2, err := reader.ReadPage(key2)
	require.NoError(t, err)
	defer release2()

	require.Equal(t, []byte("one"), got1.Slots[0])
	require.Equal(t, []byte("two"), got2.Slots[0])
}

func TestCorruptFragmentDetected(t *testing.T) {
	backing := memfile.New(nil)
	df := storage.NewDataFile(backing, 0)
	c, err := codec.For(codec.Identity)
	require.NoError(t, err)
	writer := storage.NewPageWriter(df, c)
	reader := storage.NewPageReader(df, c, nil)

	p := page.New(pageref.CAS, 1, 1)
	p.Set(0, []byte("data"))
	storageKey, err := writer.WritePage(p)
	require.NoError(t, err)

	// Flip a byte inside the frame payload to corrupt the checksum.
	backing.WriteAt([]byte{0xFF}, storageKey+9)

	_, _, err = reader.ReadPage(storageKey)
	require.Error(t, err)
}

func TestRevisionIndexAppendAndReopen(t *testing.T) {
	backing := memfile.New(nil)
	ri, err := storage.OpenRevisionIndex(backing)
	require.NoError(t, err)

	require.NoError(t, ri.Append(1, 100))
	require.NoError(t, ri.Append(2, 250))

	storageKey, ok := ri.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(100), storageKey)

	rev, key, ok := ri.Head()
	require.True(t, ok)
	require.Equal(t, uint64(2), rev)
	require.Equal(t, int64(250), key)

	reopened, err := storage.OpenRevisionIndex(backing)
	require.NoError(t, err)
	key2, ok := reopened.Get(2)
	require.True(t, ok)
	require.Equal(t, int64(250), key2)
}

func TestUberPageRoundTrip(t *testing.T) {
	backing := memfile.New(nil)
	u := storage.NewUberPage(backing)

	_, _, ok, err := u.ReadHead()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, u.WriteHead(5, 4096))

	rev, key, ok, err := u.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), rev)
	require.Equal(t, int64(4096), key)
}

func TestResourceConfigRoundTrip(t *testing.T) {
	cfg := storage.NewResourceConfig(42)
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := storage.LoadResourceConfig(data)
	require.NoError(t, err)
	require.Equal(t, cfg.DatabaseID, loaded.DatabaseID)
	require.Equal(t, uint64(42), loaded.ResourceID)

	strategy, err := loaded.Strategy()
	require.NoError(t, err)
	require.Equal(t, "FULL", strategy.String())
}
