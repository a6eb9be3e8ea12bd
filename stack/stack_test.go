package stack

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/table"
)

func buildSimpleStack(t *testing.T) *Stack {
	t.Helper()
	s, err := New()
	require.NoError(t, err)

	sp0, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp0, table.Bounds{X: 0, Y: 0, Width: 2, Height: 2}, 4))

	sp1, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp1, table.Bounds{X: 2, Y: 0, Width: 3, Height: 2}, 6))

	g, err := s.CreateSegment()
	require.NoError(t, err)
	require.NoError(t, s.AddSuperpixel(0, sp0, g))
	require.NoError(t, s.AddSuperpixel(0, sp1, g))

	b, err := s.CreateBody()
	require.NoError(t, err)
	require.NoError(t, s.AddSegments([]uint32{g}, b))

	return s
}

func TestCreateAssignAndQuery(t *testing.T) {
	s := buildSimpleStack(t)

	sps, err := s.SuperpixelsInPlane(0)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{0, 1}, sps)

	g, err := s.SegmentOf(0, 0)
	require.NoError(t, err)
	b, err := s.BodyOf(g)
	require.NoError(t, err)

	vol, err := s.GetBodyVolume(b)
	require.NoError(t, err)
	require.Equal(t, uint64(10), vol)

	segs, err := s.SuperpixelsInSegment(g)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, segs)
}

func TestAddSuperpixelRejectsCrossPlaneSegment(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	_, err = s.planeTable(0)
	require.NoError(t, err)

	// create a second plane manually to exercise the cross-plane check
	t2, err := table.New(0, numSuperpixelColumns)
	require.NoError(t, err)
	s.superpixel[1] = t2
	s.zmax = 1

	sp0, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	sp1, err := s.CreateSuperpixel(1)
	require.NoError(t, err)

	g, err := s.CreateSegment()
	require.NoError(t, err)
	require.NoError(t, s.AddSuperpixel(0, sp0, g))

	err = s.AddSuperpixel(1, sp1, g)
	require.Error(t, err)
}

func TestDeleteSegmentRemovesFromBody(t *testing.T) {
	s := buildSimpleStack(t)

	g, err := s.SegmentOf(0, 0)
	require.NoError(t, err)
	b, err := s.BodyOf(g)
	require.NoError(t, err)

	require.NoError(t, s.DeleteSegment(g))

	segs, err := s.SegmentsInBody(b)
	require.NoError(t, err)
	require.Empty(t, segs)

	ok, err := s.HasSegment(g)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGarbageCollectDropsZeroVolumeSuperpixel(t *testing.T) {
	s := buildSimpleStack(t)

	sp2, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp2, table.Bounds{X: 5, Y: 5, Width: 1, Height: 1}, 0))
	g, err := s.CreateSegment()
	require.NoError(t, err)
	require.NoError(t, s.AddSuperpixel(0, sp2, g))

	warnings, err := s.GarbageCollect()
	require.NoError(t, err)
	require.Empty(t, warnings)

	ok, err := s.HasSuperpixel(0, sp2)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.HasSegment(g)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := buildSimpleStack(t)
	path := filepath.Join(t.TempDir(), "stack.h5")

	require.NoError(t, s.Save(path, false))

	loaded, err := Load(path)
	require.NoError(t, err)

	sps, err := loaded.SuperpixelsInPlane(0)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{0, 1}, sps)

	g, err := loaded.SegmentOf(0, 0)
	require.NoError(t, err)
	b, err := loaded.BodyOf(g)
	require.NoError(t, err)
	vol, err := loaded.GetBodyVolume(b)
	require.NoError(t, err)
	require.Equal(t, uint64(10), vol)
}

func TestGetBodyBoundsUnion(t *testing.T) {
	s := buildSimpleStack(t)

	g, err := s.SegmentOf(0, 0)
	require.NoError(t, err)
	b, err := s.BodyOf(g)
	require.NoError(t, err)

	planes, bounds, err := s.GetBodyBounds(b)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, planes)
	require.Equal(t, table.Bounds{X: 0, Y: 0, Width: 5, Height: 2}, bounds[0])
}

func TestEmptyStackBoundaryCase(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	require.Equal(t, uint32(0), s.NumBodies())
	require.Equal(t, uint32(0), s.NumSegments())
	sps, err := s.SuperpixelsInPlane(0)
	require.NoError(t, err)
	require.Empty(t, sps)
}
