package arena

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/table"
)

func TestAppendAndReadList(t *testing.T) {
	a, err := NewEmpty()
	require.NoError(t, err)

	idx, err := a.AppendList([]uint32{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	items, err := a.ReadList(idx)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2, 3}, items)
}

func TestEmptyListPointsAtTerminator(t *testing.T) {
	a, err := NewEmpty()
	require.NoError(t, err)

	idx, err := a.AppendList(nil)
	require.NoError(t, err)

	items, err := a.ReadList(idx)
	require.NoError(t, err)
	require.Empty(t, items)

	v, err := a.Table().Get(idx, 0)
	require.NoError(t, err)
	require.Equal(t, EndOfList, v)
}

func TestReadListMissingTerminatorIsCorruption(t *testing.T) {
	raw, err := table.New(2, 1)
	require.NoError(t, err)
	require.NoError(t, raw.Set(0, 0, 99))
	require.NoError(t, raw.Set(1, 0, 5))
	a, err := New(raw)
	require.NoError(t, err)

	_, err = a.ReadList(0)
	require.Error(t, err)
}

// indexTable is a minimal IndexTable used to exercise Compress
// without pulling in the full mapping engine.
type indexTable struct {
	rows []uint32
}

func (it *indexTable) Rows() uint32 { return uint32(len(it.rows)) }
func (it *indexTable) Get(row, col uint32) (uint32, error) {
	return it.rows[row], nil
}
func (it *indexTable) Set(row, col, value uint32) error {
	it.rows[row] = value
	return nil
}

func TestCompressDropsOrphansAndRewritesIndexes(t *testing.T) {
	a, err := NewEmpty()
	require.NoError(t, err)

	idxA, err := a.AppendList([]uint32{10, 11})
	require.NoError(t, err)
	_, err = a.AppendList([]uint32{20}) // orphaned: no owner below
	require.NoError(t, err)
	idxC, err := a.AppendList([]uint32{30, 31, 32})
	require.NoError(t, err)

	owners := &indexTable{rows: []uint32{idxA, idxC}}

	warnings, err := a.Compress(owners, 0)
	require.NoError(t, err)
	require.Empty(t, warnings)

	listA, err := a.ReadList(owners.rows[0])
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 11}, listA)

	listC, err := a.ReadList(owners.rows[1])
	require.NoError(t, err)
	require.Equal(t, []uint32{30, 31, 32}, listC)

	// 2 items + terminator, 3 items + terminator = 7 rows remain.
	require.Equal(t, uint32(7), a.Table().Rows())
}

func TestCompressIsIdempotent(t *testing.T) {
	a, err := NewEmpty()
	require.NoError(t, err)
	idxA, err := a.AppendList([]uint32{1, 2})
	require.NoError(t, err)
	owners := &indexTable{rows: []uint32{idxA}}

	_, err = a.Compress(owners, 0)
	require.NoError(t, err)
	sizeAfterFirst := a.Table().Rows()
	dataAfterFirst := append([]uint32(nil), a.Table().Raw()...)

	_, err = a.Compress(owners, 0)
	require.NoError(t, err)
	require.Equal(t, sizeAfterFirst, a.Table().Rows())
	require.Equal(t, dataAfterFirst, a.Table().Raw())
}

func TestCompressWarnsOnDuplicateOwner(t *testing.T) {
	a, err := NewEmpty()
	require.NoError(t, err)
	idx, err := a.AppendList([]uint32{1})
	require.NoError(t, err)
	owners := &indexTable{rows: []uint32{idx, idx}}

	warnings, err := a.Compress(owners, 0)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}
