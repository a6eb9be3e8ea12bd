package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/table"
)

func buildStack(t *testing.T) *stack.Stack {
	t.Helper()
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

	return s
}

func TestQueueGetSuperpixelsInBodyRoundTrip(t *testing.T) {
	s := buildStack(t)
	a := New(s)

	bodies := s.GetAllBodies()
	require.Len(t, bodies, 1)
	b := bodies[0]

	count, err := a.QueueSuperpixelsInBody(b)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	planes, spids, err := a.GetSuperpixelsInBody(b, count)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, planes)
	require.Equal(t, []uint32{0}, spids)
}

func TestGetWithoutQueueFails(t *testing.T) {
	a := New(buildStack(t))
	_, _, err := a.GetSuperpixelsInBody(1, 1)
	require.Error(t, err)
}

func TestGetWithWrongKeyFails(t *testing.T) {
	s := buildStack(t)
	a := New(s)
	bodies := s.GetAllBodies()
	b := bodies[0]

	count, err := a.QueueSuperpixelsInBody(b)
	require.NoError(t, err)

	_, _, err = a.GetSuperpixelsInBody(b+1, count)
	require.Error(t, err)
}

func TestGetWithWrongCountFails(t *testing.T) {
	s := buildStack(t)
	a := New(s)
	bodies := s.GetAllBodies()
	b := bodies[0]

	_, err := a.QueueSuperpixelsInBody(b)
	require.NoError(t, err)

	_, _, err = a.GetSuperpixelsInBody(b, 99)
	require.Error(t, err)
}

func TestQueueAllBodyVolumes(t *testing.T) {
	s := buildStack(t)
	a := New(s)

	count, err := a.QueueAllBodyVolumes()
	require.NoError(t, err)

	bodyIDs, volumes, err := a.GetAllBodyVolumes(count)
	require.NoError(t, err)
	require.Len(t, bodyIDs, count)
	require.Len(t, volumes, count)
}
