package stlexport

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/table"
)

func TestWriteBodySingleCubeLayout(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBody(&buf, []uint32{3}, []table.Bounds{{X: 0, Y: 0, Width: 2, Height: 2}}, 1.0)
	require.NoError(t, err)

	data := buf.Bytes()
	require.Len(t, data, 80+4+12*(12+36+2))

	require.NotEqual(t, "solid", string(data[:5]))

	count := binary.LittleEndian.Uint32(data[80:84])
	require.Equal(t, uint32(12), count)
}

func TestWriteBodyMismatchedLengths(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBody(&buf, []uint32{1, 2}, []table.Bounds{{Width: 1, Height: 1}}, 1.0)
	require.Error(t, err)
}

func TestWriteBodyEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBody(&buf, nil, nil, 1.0)
	require.NoError(t, err)
	require.Len(t, buf.Bytes(), 84)
}
