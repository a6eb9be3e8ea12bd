package construct

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/stackerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildRemapsZeroSegmentSuperpixel(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		BoundsPath:   writeFile(t, dir, "bounds.txt", "0 1 0 0 2 2 4\n"),
		SegmentsPath: writeFile(t, dir, "segments.txt", "0 1 0\n"),
		BodiesPath:   writeFile(t, dir, "bodies.txt", ""),
	}

	s, err := Build(in, Options{LogDir: dir})
	require.NoError(t, err)

	g, err := s.SegmentOf(0, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), g)

	b, err := s.BodyOf(g)
	require.NoError(t, err)
	require.Equal(t, uint32(1), b)

	require.Equal(t, []uint32{1}, s.NewBodies())
}

func TestBuildDropsOrphansAndPhantoms(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		// spid 2 has bounds but no segment mapping (orphan).
		BoundsPath: writeFile(t, dir, "bounds.txt",
			"0 1 0 0 2 2 4\n0 2 2 0 2 2 4\n"),
		// spid 3 has a segment mapping but no bounds (phantom).
		SegmentsPath: writeFile(t, dir, "segments.txt",
			"0 1 5\n0 3 5\n"),
		BodiesPath: writeFile(t, dir, "bodies.txt", "5 9\n"),
	}

	s, err := Build(in, Options{LogDir: dir})
	require.NoError(t, err)

	g, err := s.SegmentOf(0, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(5), g)

	b, err := s.BodyOf(g)
	require.NoError(t, err)
	require.Equal(t, uint32(9), b)

	ok, err := s.HasSuperpixel(0, 2)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = s.SegmentOf(0, 2)
	require.Error(t, err)
	require.ErrorIs(t, err, stackerr.ErrAbsent)

	_, err = os.Stat(filepath.Join(dir, "superpixels-in-bounds-only.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "superpixels-in-map-only.txt"))
	require.NoError(t, err)
}

func TestBuildRejectsSegmentSpanningMultiplePlanes(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		BoundsPath: writeFile(t, dir, "bounds.txt",
			"0 1 0 0 2 2 4\n1 2 0 0 2 2 4\n"),
		SegmentsPath: writeFile(t, dir, "segments.txt",
			"0 1 5\n1 2 5\n"),
		BodiesPath: writeFile(t, dir, "bodies.txt", "5 9\n"),
	}

	_, err := Build(in, Options{LogDir: dir})
	require.Error(t, err)
	require.ErrorIs(t, err, stackerr.ErrFormat)
}

func TestBuildRejectsDuplicateSegmentInBodies(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		BoundsPath: writeFile(t, dir, "bounds.txt",
			"0 1 0 0 2 2 4\n"),
		SegmentsPath: writeFile(t, dir, "segments.txt", "0 1 3\n"),
		BodiesPath:   writeFile(t, dir, "bodies.txt", "3 10\n3 11\n"),
	}

	_, err := Build(in, Options{LogDir: dir})
	require.Error(t, err)
}
