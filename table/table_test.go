package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/stackerr"
)

func TestNewAllCellsEmpty(t *testing.T) {
	tbl, err := New(3, 2)
	require.NoError(t, err)
	for r := uint32(0); r < 3; r++ {
		for c := uint32(0); c < 2; c++ {
			v, err := tbl.Get(r, c)
			require.NoError(t, err)
			require.Equal(t, Empty, v)
		}
	}
}

func TestSetGet(t *testing.T) {
	tbl, err := New(2, 2)
	require.NoError(t, err)
	require.NoError(t, tbl.Set(1, 1, 42))
	v, err := tbl.Get(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)
}

func TestOutOfRange(t *testing.T) {
	tbl, err := New(2, 2)
	require.NoError(t, err)

	_, err = tbl.Get(2, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, stackerr.ErrRange))

	err = tbl.Set(0, 2, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, stackerr.ErrRange))
}

func TestAppendRowsWithinPadding(t *testing.T) {
	tbl, err := NewPadded(10, 1, 0.5) // allocates 15 rows
	require.NoError(t, err)
	prev, err := tbl.AppendRows(3)
	require.NoError(t, err)
	require.Equal(t, uint32(10), prev)
	require.Equal(t, uint32(13), tbl.Rows())
	v, err := tbl.Get(12, 0)
	require.NoError(t, err)
	require.Equal(t, Empty, v)
}

func TestAppendRowsReallocates(t *testing.T) {
	tbl, err := NewPadded(1, 1, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Set(0, 0, 7))
	_, err = tbl.AppendRows(5)
	require.NoError(t, err)
	require.Equal(t, uint32(6), tbl.Rows())
	v, err := tbl.Get(0, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(7), v)
	v, err = tbl.Get(5, 0)
	require.NoError(t, err)
	require.Equal(t, Empty, v)
}

func TestTruncateRowsBlanksVacatedRegion(t *testing.T) {
	tbl, err := NewPadded(5, 1, 1.0) // allocates 10 rows
	require.NoError(t, err)
	for i := uint32(0); i < 5; i++ {
		require.NoError(t, tbl.Set(i, 0, i+1))
	}
	require.NoError(t, tbl.TruncateRows(2))
	require.Equal(t, uint32(2), tbl.Rows())

	_, err = tbl.AppendRows(3)
	require.NoError(t, err)
	for i := uint32(2); i < 5; i++ {
		v, err := tbl.Get(i, 0)
		require.NoError(t, err)
		require.Equal(t, Empty, v)
	}
}

func TestTruncateRowsPastAllocatedFails(t *testing.T) {
	tbl, err := NewPadded(2, 1, 0)
	require.NoError(t, err)
	err = tbl.TruncateRows(5)
	require.Error(t, err)
	require.True(t, errors.Is(err, stackerr.ErrRange))
}

func TestRawRowMajorOrder(t *testing.T) {
	tbl, err := New(2, 2)
	require.NoError(t, err)
	require.NoError(t, tbl.Set(0, 0, 1))
	require.NoError(t, tbl.Set(0, 1, 2))
	require.NoError(t, tbl.Set(1, 0, 3))
	require.NoError(t, tbl.Set(1, 1, 4))
	require.Equal(t, []uint32{1, 2, 3, 4}, tbl.Raw())
}

func TestFromRawRoundTrip(t *testing.T) {
	raw := []uint32{1, 2, 3, 4, 5, 6}
	tbl, err := FromRaw(3, 2, raw)
	require.NoError(t, err)
	require.Equal(t, raw, tbl.Raw())
}
