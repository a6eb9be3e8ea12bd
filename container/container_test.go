package container

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/table"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.h5")

	tbl, err := table.New(2, 3)
	require.NoError(t, err)
	require.NoError(t, tbl.Set(0, 0, 10))
	require.NoError(t, tbl.Set(0, 1, 20))
	require.NoError(t, tbl.Set(1, 2, 30))

	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.CreateGroup("superpixel"))
	require.NoError(t, f.WriteDataset("segment", tbl))
	require.NoError(t, f.Close())

	r, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadDataset("segment")
	require.NoError(t, err)
	require.Equal(t, tbl.Raw(), got.Raw())
	require.Equal(t, tbl.Rows(), got.Rows())
	require.Equal(t, tbl.Columns(), got.Columns())
}

func TestOpenRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.h.Root().SetAttribute(VersionAttribute, uint32(2)))
	require.NoError(t, f.Close())

	_, err = OpenReadOnly(path)
	require.Error(t, err)
}

func TestListDatasetsUnderGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.h5")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.CreateGroup("superpixel"))

	tbl, err := table.New(1, 1)
	require.NoError(t, err)
	require.NoError(t, f.WriteDataset("superpixel/0", tbl))
	require.NoError(t, f.WriteDataset("superpixel/1", tbl))
	require.NoError(t, f.Close())

	r, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()

	names, err := r.ListDatasets("/superpixel")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0", "1"}, names)
}
