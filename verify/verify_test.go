package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/table"
)

func TestRunOnConsistentStackFindsNothing(t *testing.T) {
	s, err := stack.New()
	require.NoError(t, err)

	sp, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp, table.Bounds{X: 0, Y: 0, Width: 2, Height: 2}, 4))

	g, err := s.CreateSegment()
	require.NoError(t, err)
	require.NoError(t, s.AddSuperpixel(0, sp, g))

	b, err := s.CreateBody()
	require.NoError(t, err)
	require.NoError(t, s.AddSegments([]uint32{g}, b))

	res, err := Run(s, false)
	require.NoError(t, err)
	require.True(t, res.OK())
}

func TestRunReportsSuperpixelWithNoSegment(t *testing.T) {
	s, err := stack.New()
	require.NoError(t, err)

	sp, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp, table.Bounds{X: 0, Y: 0, Width: 2, Height: 2}, 4))

	res, err := Run(s, false)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Empty(t, res.Repairs)
}

func TestRunReportsPartiallyEmptySegmentWithoutAborting(t *testing.T) {
	s, err := stack.New()
	require.NoError(t, err)

	// A freshly created segment has a real spindex (even if its
	// superpixel list is empty) but no plane or body assigned yet:
	// exactly the partially-EMPTY row the checker must report rather
	// than walk into SegmentOf/PlaneOf and error out.
	_, err = s.CreateSegment()
	require.NoError(t, err)

	res, err := Run(s, false)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], "partially EMPTY")
	require.Contains(t, res.Errors[0], "segid=1")
}

func TestRunWithRepairCreatesBodyAndSegment(t *testing.T) {
	s, err := stack.New()
	require.NoError(t, err)

	sp, err := s.CreateSuperpixel(0)
	require.NoError(t, err)
	require.NoError(t, s.SetBoundsAndVolume(0, sp, table.Bounds{X: 0, Y: 0, Width: 2, Height: 2}, 4))

	res, err := Run(s, true)
	require.NoError(t, err)
	require.Len(t, res.Repairs, 1)

	g, err := s.SegmentOf(0, sp)
	require.NoError(t, err)
	require.NotEqual(t, table.Empty, g)

	verified, err := Run(s, false)
	require.NoError(t, err)
	require.True(t, verified.OK())
}
