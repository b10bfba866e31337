package epoch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/epoch"
)

func TestMinActiveRevisionTracksSmallestRegistered(t *testing.T) {
	tr := epoch.New(4)

	t1, err := tr.Register(5)
	require.NoError(t, err)
	_, err = tr.Register(7)
	require.NoError(t, err)
	t3, err := tr.Register(3)
	require.NoError(t, err)

	require.Equal(t, uint64(3), tr.MinActiveRevision())

	tr.Deregister(t3)
	require.Equal(t, uint64(5), tr.MinActiveRevision())

	tr.Deregister(t1)
	require.Equal(t, uint64(7), tr.MinActiveRevision())
}

func TestMinActiveRevisionFallsBackToLastCommitted(t *testing.T) {
	tr := epoch.New(4)
	tr.SetLastCommitted(42)
	require.Equal(t, uint64(42), tr.MinActiveRevision())

	ticket, err := tr.Register(10)
	require.NoError(t, err)
	require.Equal(t, uint64(10), tr.MinActiveRevision())

	tr.Deregister(ticket)
	require.Equal(t, uint64(42), tr.MinActiveRevision())
}

func TestRegisterExhaustionReturnsPoolExhausted(t *testing.T) {
	tr := epoch.New(2)
	_, err := tr.Register(1)
	require.NoError(t, err)
	_, err = tr.Register(2)
	require.NoError(t, err)

	_, err = tr.Register(3)
	require.Error(t, err)
}

func TestDeregisterIsIdempotentAndFreesSlotForReuse(t *testing.T) {
	tr := epoch.New(1)
	ticket, err := tr.Register(1)
	require.NoError(t, err)

	tr.Deregister(ticket)
	tr.Deregister(ticket) // no-op, must not corrupt free bitmap

	_, err = tr.Register(2)
	require.NoError(t, err)
}
