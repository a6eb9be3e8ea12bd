// Copyright 2012 HHMI.  All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//     * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//     * Redistributions in binary form must reproduce the above
// copyright notice, this list of conditions and the following disclaimer
// in the documentation and/or other materials provided with the
// distribution.
//     * Neither the name of HHMI nor the names of its
// contributors may be used to endorse or promote products derived from
// this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
//
// Written as part of the FlyEM Project at Janelia Farm Research Center.

// Package stack implements the three-level superpixel/segment/body
// mapping engine: the per-plane superpixel tables, the segment and
// body-index tables, the two list-of-lists arenas linking them, the
// mutation API and its consistency invariants, garbage collection, and
// container load/save. This is the Go-native analogue of the original
// HdfStack C++ class.
package stack

import (
	"fmt"
	"sort"

	"github.com/janelia-flyem/raveler-utils/arena"
	"github.com/janelia-flyem/raveler-utils/container"
	"github.com/janelia-flyem/raveler-utils/stackerr"
	"github.com/janelia-flyem/raveler-utils/table"
)

// Empty is the reserved sentinel re-exported from package table for
// caller convenience (callers comparing query results to "no value").
const Empty = table.Empty

// ZeroSegment and ZeroBody are the reserved identifiers that only the
// zero superpixel (spid 0 on every plane) may belong to.
const (
	ZeroSegment uint32 = 0
	ZeroBody    uint32 = 0
)

// Superpixel table columns.
const (
	spX = iota
	spY
	spWidth
	spHeight
	spVolume
	spSegID
	numSuperpixelColumns
)

// Segment table columns.
const (
	segZ = iota
	segBodyID
	segSPIndex
	numSegmentColumns
)

// Stack owns every table and arena of the three-level mapping: the
// per-plane superpixel tables, the segment table, the segment to
// superpixels arena, the body-index table, and the body to segments
// arena.
type Stack struct {
	zmin, zmax uint32

	superpixel map[uint32]*table.Table

	segment   *table.Table
	segmentSP *arena.Arena

	bodyIndex *table.Table
	bodySeg   *arena.Arena

	newBodies []uint32
}

// New creates an empty Stack spanning a single plane 0 with no
// superpixels, segments or bodies — the "empty stack" boundary case
// from spec.md §8. Row 0 of the segment and body-index tables is
// allocated but left Empty (not live), so CreateSegment and
// CreateBody never hand out the reserved zero identifiers.
func New() (*Stack, error) {
	s := &Stack{superpixel: make(map[uint32]*table.Table)}

	plane, err := table.New(0, numSuperpixelColumns)
	if err != nil {
		return nil, err
	}
	s.superpixel[0] = plane
	s.zmin, s.zmax = 0, 0

	seg, err := table.New(1, numSegmentColumns)
	if err != nil {
		return nil, err
	}
	s.segment = seg
	segSP, err := arena.NewEmpty()
	if err != nil {
		return nil, err
	}
	s.segmentSP = segSP

	bi, err := table.New(1, 1)
	if err != nil {
		return nil, err
	}
	s.bodyIndex = bi
	bodySeg, err := arena.NewEmpty()
	if err != nil {
		return nil, err
	}
	s.bodySeg = bodySeg

	return s, nil
}

// Assemble builds a Stack directly from already-populated tables and
// arenas. It exists for package construct, which materializes these
// structures itself while cross-referencing the three bulk-ingest text
// tables (spec.md §4.5) rather than replaying the mutation API row by
// row. newBodies records bodies synthesized while remapping
// zero-segment superpixels, returned later via NewBodies.
func Assemble(
	planes map[uint32]*table.Table,
	zmin, zmax uint32,
	segment *table.Table,
	segmentSP *arena.Arena,
	bodyIndex *table.Table,
	bodySeg *arena.Arena,
	newBodies []uint32,
) (*Stack, error) {
	if segment.Columns() != numSegmentColumns {
		return nil, fmt.Errorf("stack: segment table must have %d columns, got %d: %w",
			numSegmentColumns, segment.Columns(), stackerr.ErrFormat)
	}
	if bodyIndex.Columns() != 1 {
		return nil, fmt.Errorf("stack: body index table must have 1 column, got %d: %w",
			bodyIndex.Columns(), stackerr.ErrFormat)
	}
	for z, t := range planes {
		if t.Columns() != numSuperpixelColumns {
			return nil, fmt.Errorf("stack: plane %d table must have %d columns, got %d: %w",
				z, numSuperpixelColumns, t.Columns(), stackerr.ErrFormat)
		}
	}
	return &Stack{
		zmin:       zmin,
		zmax:       zmax,
		superpixel: planes,
		segment:    segment,
		segmentSP:  segmentSP,
		bodyIndex:  bodyIndex,
		bodySeg:    bodySeg,
		newBodies:  newBodies,
	}, nil
}

// ZMin and ZMax return the lowest and highest numbered plane.
func (s *Stack) ZMin() uint32 { return s.zmin }
func (s *Stack) ZMax() uint32 { return s.zmax }

// NewBodies returns the bodies synthesized by the bulk constructor to
// absorb illegal zero-segment superpixel assignments.
func (s *Stack) NewBodies() []uint32 { return append([]uint32(nil), s.newBodies...) }

func (s *Stack) planeTable(z uint32) (*table.Table, error) {
	t, ok := s.superpixel[z]
	if !ok {
		return nil, fmt.Errorf("stack: plane %d does not exist: %w", z, stackerr.ErrAbsent)
	}
	return t, nil
}

// --- existence predicates ---

// HasSuperpixel reports whether (z, s) is a live superpixel.
func (s *Stack) HasSuperpixel(z, spid uint32) (bool, error) {
	t, err := s.planeTable(z)
	if err != nil {
		return false, err
	}
	if spid >= t.Rows() {
		return false, nil
	}
	v, err := t.Get(spid, spX)
	if err != nil {
		return false, err
	}
	return v != table.Empty, nil
}

// HasSegment reports whether g is a live segment.
func (s *Stack) HasSegment(g uint32) (bool, error) {
	if g >= s.segment.Rows() {
		return false, nil
	}
	v, err := s.segment.Get(g, segSPIndex)
	if err != nil {
		return false, err
	}
	return v != table.Empty, nil
}

// SegmentRaw returns the raw z, bodyid, and spindex columns of segment
// row g without regard to liveness, so a caller can tell a fully-EMPTY
// row apart from one that is only partially EMPTY.
func (s *Stack) SegmentRaw(g uint32) (z, bodyID, spIndex uint32, err error) {
	if g >= s.segment.Rows() {
		return table.Empty, table.Empty, table.Empty, nil
	}
	if z, err = s.segment.Get(g, segZ); err != nil {
		return 0, 0, 0, err
	}
	if bodyID, err = s.segment.Get(g, segBodyID); err != nil {
		return 0, 0, 0, err
	}
	if spIndex, err = s.segment.Get(g, segSPIndex); err != nil {
		return 0, 0, 0, err
	}
	return z, bodyID, spIndex, nil
}

// HasBody reports whether b is a live body.
func (s *Stack) HasBody(b uint32) (bool, error) {
	if b >= s.bodyIndex.Rows() {
		return false, nil
	}
	v, err := s.bodyIndex.Get(b, 0)
	if err != nil {
		return false, err
	}
	return v != table.Empty, nil
}

func (s *Stack) checkSuperpixel(z, spid uint32) error {
	ok, err := s.HasSuperpixel(z, spid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stack: superpixel (%d, %d) does not exist: %w", z, spid, stackerr.ErrAbsent)
	}
	return nil
}

func (s *Stack) checkSegment(g uint32) error {
	ok, err := s.HasSegment(g)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stack: segment %d does not exist: %w", g, stackerr.ErrAbsent)
	}
	return nil
}

func (s *Stack) checkBody(b uint32) error {
	ok, err := s.HasBody(b)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stack: body %d does not exist: %w", b, stackerr.ErrAbsent)
	}
	return nil
}

// --- basic queries ---

// Bounds returns the bounding box of superpixel (z, spid).
func (s *Stack) Bounds(z, spid uint32) (table.Bounds, error) {
	if err := s.checkSuperpixel(z, spid); err != nil {
		return table.Bounds{}, err
	}
	t := s.superpixel[z]
	x, _ := t.Get(spid, spX)
	y, _ := t.Get(spid, spY)
	w, _ := t.Get(spid, spWidth)
	h, _ := t.Get(spid, spHeight)
	return table.Bounds{X: x, Y: y, Width: w, Height: h}, nil
}

// Volume returns the voxel volume of superpixel (z, spid).
func (s *Stack) Volume(z, spid uint32) (uint32, error) {
	if err := s.checkSuperpixel(z, spid); err != nil {
		return 0, err
	}
	return s.superpixel[z].Get(spid, spVolume)
}

// SegmentOf returns the segment id that (z, spid) maps to, which may
// legitimately be table.Empty.
func (s *Stack) SegmentOf(z, spid uint32) (uint32, error) {
	if err := s.checkSuperpixel(z, spid); err != nil {
		return 0, err
	}
	return s.superpixel[z].Get(spid, spSegID)
}

// PlaneOf returns the single plane a non-zero segment lives on.
func (s *Stack) PlaneOf(g uint32) (uint32, error) {
	if g == ZeroSegment {
		return 0, fmt.Errorf("stack: zero segment has no plane: %w", stackerr.ErrPolicy)
	}
	if err := s.checkSegment(g); err != nil {
		return 0, err
	}
	return s.segment.Get(g, segZ)
}

// BodyOf returns the body a segment belongs to.
func (s *Stack) BodyOf(g uint32) (uint32, error) {
	if err := s.checkSegment(g); err != nil {
		return 0, err
	}
	return s.segment.Get(g, segBodyID)
}

// SuperpixelsInSegment returns, in arena storage order, the
// superpixels belonging to segment g.
func (s *Stack) SuperpixelsInSegment(g uint32) ([]uint32, error) {
	if err := s.checkSegment(g); err != nil {
		return nil, err
	}
	idx, err := s.segment.Get(g, segSPIndex)
	if err != nil {
		return nil, err
	}
	return s.segmentSP.ReadList(idx)
}

// SegmentsInBody returns, in arena storage order, the segments
// belonging to body b.
func (s *Stack) SegmentsInBody(b uint32) ([]uint32, error) {
	if err := s.checkBody(b); err != nil {
		return nil, err
	}
	idx, err := s.bodyIndex.Get(b, 0)
	if err != nil {
		return nil, err
	}
	return s.bodySeg.ReadList(idx)
}

// SuperpixelsInPlane returns every live superpixel id on plane z.
func (s *Stack) SuperpixelsInPlane(z uint32) ([]uint32, error) {
	t, err := s.planeTable(z)
	if err != nil {
		return nil, err
	}
	var result []uint32
	for spid := uint32(0); spid < t.Rows(); spid++ {
		x, _ := t.Get(spid, spX)
		if x != table.Empty {
			result = append(result, spid)
		}
	}
	return result, nil
}

// SuperpixelBodiesInPlane returns the body id of every live
// superpixel on plane z, in the same order as SuperpixelsInPlane.
func (s *Stack) SuperpixelBodiesInPlane(z uint32) ([]uint32, error) {
	spids, err := s.SuperpixelsInPlane(z)
	if err != nil {
		return nil, err
	}
	result := make([]uint32, 0, len(spids))
	for _, spid := range spids {
		g, err := s.SegmentOf(z, spid)
		if err != nil {
			return nil, err
		}
		if g == table.Empty {
			result = append(result, table.Empty)
			continue
		}
		b, err := s.BodyOf(g)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// SuperpixelsInBody returns the planes and spids of every superpixel
// belonging to any segment of body b.
func (s *Stack) SuperpixelsInBody(b uint32) (planes, spids []uint32, err error) {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return nil, nil, err
	}
	for _, g := range segs {
		z, err := s.PlaneOf(g)
		if err != nil {
			return nil, nil, err
		}
		sps, err := s.SuperpixelsInSegment(g)
		if err != nil {
			return nil, nil, err
		}
		for _, sp := range sps {
			planes = append(planes, z)
			spids = append(spids, sp)
		}
	}
	return planes, spids, nil
}

// SuperpixelsInBodyInPlane returns the spids belonging to body b that
// lie on plane z.
func (s *Stack) SuperpixelsInBodyInPlane(b, z uint32) ([]uint32, error) {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return nil, err
	}
	var result []uint32
	for _, g := range segs {
		plane, err := s.PlaneOf(g)
		if err != nil {
			return nil, err
		}
		if plane != z {
			continue
		}
		sps, err := s.SuperpixelsInSegment(g)
		if err != nil {
			return nil, err
		}
		result = append(result, sps...)
	}
	return result, nil
}

// NumBodies returns the count of live bodies, including the zero body.
func (s *Stack) NumBodies() uint32 {
	var n uint32
	for b := uint32(0); b < s.bodyIndex.Rows(); b++ {
		if ok, _ := s.HasBody(b); ok {
			n++
		}
	}
	return n
}

// NumBodiesNonzero returns the count of live bodies excluding body 0.
func (s *Stack) NumBodiesNonzero() uint32 {
	n := s.NumBodies()
	if ok, _ := s.HasBody(ZeroBody); ok {
		n--
	}
	return n
}

// NumSegments returns the count of live segments.
func (s *Stack) NumSegments() uint32 {
	var n uint32
	for g := uint32(0); g < s.segment.Rows(); g++ {
		if ok, _ := s.HasSegment(g); ok {
			n++
		}
	}
	return n
}

// GetAllBodies returns every live body id, including the zero body.
func (s *Stack) GetAllBodies() []uint32 {
	var result []uint32
	for b := uint32(0); b < s.bodyIndex.Rows(); b++ {
		if ok, _ := s.HasBody(b); ok {
			result = append(result, b)
		}
	}
	return result
}

// SegmentRows returns the allocated row count of the segment table,
// i.e. one past the highest segment id ever created. The verifier
// sweeps this full range rather than just the live ids, since a
// dangling reference can point at a blanked row.
func (s *Stack) SegmentRows() uint32 { return s.segment.Rows() }

// GetAllSegments returns every live segment id.
func (s *Stack) GetAllSegments() []uint32 {
	var result []uint32
	for g := uint32(0); g < s.segment.Rows(); g++ {
		if ok, _ := s.HasSegment(g); ok {
			result = append(result, g)
		}
	}
	return result
}

// GetMaxSuperpixelID returns the highest assigned spid on plane z
// (the table's row count minus one; spec.md tables are sized to
// max spid + 1 rows).
func (s *Stack) GetMaxSuperpixelID(z uint32) (uint32, error) {
	t, err := s.planeTable(z)
	if err != nil {
		return 0, err
	}
	if t.Rows() == 0 {
		return 0, fmt.Errorf("stack: plane %d has no superpixels: %w", z, stackerr.ErrAbsent)
	}
	return t.Rows() - 1, nil
}

// --- mutations ---

// CreateSuperpixel appends one row to plane z's table (all columns
// Empty) and returns the new spid.
func (s *Stack) CreateSuperpixel(z uint32) (uint32, error) {
	t, err := s.planeTable(z)
	if err != nil {
		return 0, err
	}
	spid, err := t.AppendRows(1)
	if err != nil {
		return 0, err
	}
	return spid, nil
}

// SetBoundsAndVolume populates the geometry columns of (z, spid). It
// tolerates a currently-absent row: a freshly created row reads
// all-Empty, and so is not live per HasSuperpixel (which tests the X
// column), until this call writes its X column.
func (s *Stack) SetBoundsAndVolume(z, spid uint32, bounds table.Bounds, volume uint32) error {
	t, err := s.planeTable(z)
	if err != nil {
		return err
	}
	if spid >= t.Rows() {
		return fmt.Errorf("stack: superpixel (%d, %d) out of range: %w", z, spid, stackerr.ErrRange)
	}
	if err := t.Set(spid, spX, bounds.X); err != nil {
		return err
	}
	if err := t.Set(spid, spY, bounds.Y); err != nil {
		return err
	}
	if err := t.Set(spid, spWidth, bounds.Width); err != nil {
		return err
	}
	if err := t.Set(spid, spHeight, bounds.Height); err != nil {
		return err
	}
	return t.Set(spid, spVolume, volume)
}

// AddSuperpixel assigns (z, spid) to segment g. g must be non-zero and
// must already exist; if the segment already has any superpixel, its
// plane must equal z.
func (s *Stack) AddSuperpixel(z, spid, g uint32) error {
	if g == ZeroSegment {
		return fmt.Errorf("stack: cannot assign non-zero superpixel to the zero segment: %w", stackerr.ErrPolicy)
	}
	if err := s.checkSegment(g); err != nil {
		return err
	}
	t, err := s.planeTable(z)
	if err != nil {
		return err
	}

	existing, err := s.SuperpixelsInSegment(g)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		plane, err := s.PlaneOf(g)
		if err != nil {
			return err
		}
		if plane != z {
			return fmt.Errorf("stack: segment %d is on plane %d, cannot add superpixel from plane %d: %w",
				g, plane, z, stackerr.ErrPolicy)
		}
	}

	if err := t.Set(spid, spSegID, g); err != nil {
		return err
	}

	for _, sp := range existing {
		if sp == spid {
			return nil
		}
	}
	newList := append(append([]uint32(nil), existing...), spid)
	return s.setSuperpixelsRaw(g, z, newList)
}

// SetSegmentID writes only the superpixel's segment-id column,
// without touching the arenas. Repair paths use this and then
// normalize the inverse side themselves.
func (s *Stack) SetSegmentID(z, spid, g uint32) error {
	if g == ZeroSegment {
		return fmt.Errorf("stack: cannot set segment id to the zero segment directly: %w", stackerr.ErrPolicy)
	}
	if err := s.checkSuperpixel(z, spid); err != nil {
		return err
	}
	return s.superpixel[z].Set(spid, spSegID, g)
}

// CreateSegment appends a new, empty segment and returns its id.
func (s *Stack) CreateSegment() (uint32, error) {
	g, err := s.segment.AppendRows(1)
	if err != nil {
		return 0, err
	}
	if err := s.setSuperpixelsRaw(g, table.Empty, nil); err != nil {
		return 0, err
	}
	return g, nil
}

// SetSuperpixels requires g < segment row count; if z != Empty, z must
// be a real plane. It appends a fresh list to the segment→superpixels
// arena (orphaning the previous list) and updates SEG[g].z/spindex.
func (s *Stack) SetSuperpixels(g uint32, z uint32, spids []uint32) error {
	if g >= s.segment.Rows() {
		return fmt.Errorf("stack: SetSuperpixels segment %d out of range [0,%d): %w",
			g, s.segment.Rows(), stackerr.ErrRange)
	}
	if z != table.Empty {
		if _, err := s.planeTable(z); err != nil {
			return err
		}
	}
	return s.setSuperpixelsRaw(g, z, spids)
}

func (s *Stack) setSuperpixelsRaw(g, z uint32, spids []uint32) error {
	idx, err := s.segmentSP.AppendList(spids)
	if err != nil {
		return err
	}
	if err := s.segment.Set(g, segZ, z); err != nil {
		return err
	}
	return s.segment.Set(g, segSPIndex, idx)
}

// DeleteSegment removes g from its body's segment list and blanks the
// segment's row. The segment's own superpixel list is intentionally
// left orphaned for the next compaction.
func (s *Stack) DeleteSegment(g uint32) error {
	if err := s.checkSegment(g); err != nil {
		return err
	}
	b, err := s.segment.Get(g, segBodyID)
	if err != nil {
		return err
	}
	if b != table.Empty {
		if err := s.removeSegmentFromBody(g, b); err != nil {
			return err
		}
	}
	for _, col := range []uint32{segZ, segBodyID, segSPIndex} {
		if err := s.segment.Set(g, col, table.Empty); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stack) removeSegmentFromBody(g, b uint32) error {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return err
	}
	filtered := segs[:0:0]
	for _, existing := range segs {
		if existing != g {
			filtered = append(filtered, existing)
		}
	}
	idx, err := s.bodySeg.AppendList(filtered)
	if err != nil {
		return err
	}
	return s.bodyIndex.Set(b, 0, idx)
}

// CreateBody appends a new, empty body and returns its id.
func (s *Stack) CreateBody() (uint32, error) {
	b, err := s.bodyIndex.AppendRows(1)
	if err != nil {
		return 0, err
	}
	if err := s.setSegmentsRaw(b, nil); err != nil {
		return 0, err
	}
	return b, nil
}

func (s *Stack) setSegmentsRaw(b uint32, segs []uint32) error {
	idx, err := s.bodySeg.AppendList(segs)
	if err != nil {
		return err
	}
	return s.bodyIndex.Set(b, 0, idx)
}

// AddSegments assigns each segid's body to b and merges them
// (suppressing duplicates) into body b's segment list. b must be
// non-zero and every segid must already exist.
func (s *Stack) AddSegments(segids []uint32, b uint32) error {
	if b == ZeroBody {
		return fmt.Errorf("stack: cannot add segments to the zero body: %w", stackerr.ErrPolicy)
	}
	if err := s.checkBody(b); err != nil {
		return err
	}
	for _, g := range segids {
		if err := s.checkSegment(g); err != nil {
			return err
		}
	}

	existing, err := s.SegmentsInBody(b)
	if err != nil {
		return err
	}
	seen := make(map[uint32]bool, len(existing)+len(segids))
	merged := make([]uint32, 0, len(existing)+len(segids))
	for _, g := range existing {
		if !seen[g] {
			seen[g] = true
			merged = append(merged, g)
		}
	}
	for _, g := range segids {
		if err := s.segment.Set(g, segBodyID, b); err != nil {
			return err
		}
		if !seen[g] {
			seen[g] = true
			merged = append(merged, g)
		}
	}
	return s.setSegmentsRaw(b, merged)
}

// --- garbage collection ---

// GarbageCollect runs the three sequential sweeps of spec.md §4.4.3
// (drop zero-volume superpixels, drop now-empty segments, drop
// now-empty bodies) followed by compacting both arenas.
func (s *Stack) GarbageCollect() ([]string, error) {
	var warnings []string

	for z, t := range s.superpixel {
		for spid := uint32(0); spid < t.Rows(); spid++ {
			x, err := t.Get(spid, spX)
			if err != nil {
				return nil, err
			}
			if x == table.Empty {
				continue
			}
			vol, err := t.Get(spid, spVolume)
			if err != nil {
				return nil, err
			}
			if vol != 0 {
				continue
			}
			g, err := t.Get(spid, spSegID)
			if err != nil {
				return nil, err
			}
			if g != table.Empty {
				if err := s.removeSuperpixelFromSegment(z, spid, g); err != nil {
					return nil, err
				}
			}
			for _, col := range []uint32{spX, spY, spWidth, spHeight, spVolume, spSegID} {
				if err := t.Set(spid, col, table.Empty); err != nil {
					return nil, err
				}
			}
		}
	}

	for g := uint32(0); g < s.segment.Rows(); g++ {
		idx, err := s.segment.Get(g, segSPIndex)
		if err != nil {
			return nil, err
		}
		if idx == table.Empty {
			continue
		}
		first, err := s.segmentSP.Table().Get(idx, 0)
		if err != nil {
			return nil, err
		}
		if first == arena.EndOfList {
			if err := s.DeleteSegment(g); err != nil {
				return nil, err
			}
		}
	}

	for b := uint32(0); b < s.bodyIndex.Rows(); b++ {
		idx, err := s.bodyIndex.Get(b, 0)
		if err != nil {
			return nil, err
		}
		if idx == table.Empty {
			continue
		}
		first, err := s.bodySeg.Table().Get(idx, 0)
		if err != nil {
			return nil, err
		}
		if first == arena.EndOfList {
			if err := s.bodyIndex.Set(b, 0, table.Empty); err != nil {
				return nil, err
			}
		}
	}

	w, err := s.segmentSP.Compress(s.segment, segSPIndex)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	w, err = s.bodySeg.Compress(s.bodyIndex, 0)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	return warnings, nil
}

func (s *Stack) removeSuperpixelFromSegment(z, spid, g uint32) error {
	sps, err := s.SuperpixelsInSegment(g)
	if err != nil {
		return err
	}
	filtered := sps[:0:0]
	for _, sp := range sps {
		if sp != spid {
			filtered = append(filtered, sp)
		}
	}
	return s.setSuperpixelsRaw(g, z, filtered)
}

// --- aggregate geometry/volume queries ---

func (s *Stack) getSegmentVolume(g uint32) (uint64, error) {
	sps, err := s.SuperpixelsInSegment(g)
	if err != nil {
		return 0, err
	}
	z, err := s.PlaneOf(g)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, spid := range sps {
		v, err := s.Volume(z, spid)
		if err != nil {
			return 0, err
		}
		total += uint64(v)
	}
	return total, nil
}

// GetBodyVolume returns the sum of superpixel volumes across every
// segment of body b.
func (s *Stack) GetBodyVolume(b uint32) (uint64, error) {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, g := range segs {
		v, err := s.getSegmentVolume(g)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// GetPlaneLimits returns the lowest and highest plane spanned by any
// segment of body b.
func (s *Stack) GetPlaneLimits(b uint32) (zmin, zmax uint32, err error) {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return 0, 0, err
	}
	if len(segs) == 0 {
		return 0, 0, fmt.Errorf("stack: body %d has no segments: %w", b, stackerr.ErrAbsent)
	}
	zmin, zmax = table.Empty, 0
	for _, g := range segs {
		z, err := s.PlaneOf(g)
		if err != nil {
			return 0, 0, err
		}
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
	}
	return zmin, zmax, nil
}

// GetAllPlaneLimits returns per-body plane limits for every id in
// bodyIDs, in the same order.
func (s *Stack) GetAllPlaneLimits(bodyIDs []uint32) (zmins, zmaxs []uint32, err error) {
	zmins = make([]uint32, len(bodyIDs))
	zmaxs = make([]uint32, len(bodyIDs))
	for i, b := range bodyIDs {
		zmin, zmax, err := s.GetPlaneLimits(b)
		if err != nil {
			return nil, nil, err
		}
		zmins[i] = zmin
		zmaxs[i] = zmax
	}
	return zmins, zmaxs, nil
}

// GetBodyBounds returns, for each plane body b touches, the union of
// its superpixel bounding boxes on that plane.
func (s *Stack) GetBodyBounds(b uint32) (planes []uint32, bounds []table.Bounds, err error) {
	segs, err := s.SegmentsInBody(b)
	if err != nil {
		return nil, nil, err
	}

	byPlane := make(map[uint32]table.Bounds)
	for _, g := range segs {
		z, err := s.PlaneOf(g)
		if err != nil {
			return nil, nil, err
		}
		sps, err := s.SuperpixelsInSegment(g)
		if err != nil {
			return nil, nil, err
		}
		for _, spid := range sps {
			bb, err := s.Bounds(z, spid)
			if err != nil {
				return nil, nil, err
			}
			union, ok := byPlane[z]
			if !ok {
				byPlane[z] = bb
				continue
			}
			byPlane[z] = unionBounds(union, bb)
		}
	}

	for z := range byPlane {
		planes = append(planes, z)
	}
	sort.Slice(planes, func(i, j int) bool { return planes[i] < planes[j] })
	for _, z := range planes {
		bounds = append(bounds, byPlane[z])
	}
	return planes, bounds, nil
}

func unionBounds(a, b table.Bounds) table.Bounds {
	x0 := minU32(a.X, b.X)
	y0 := minU32(a.Y, b.Y)
	x1 := maxU32(a.X+a.Width, b.X+b.Width)
	y1 := maxU32(a.Y+a.Height, b.Y+b.Height)
	return table.Bounds{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// GetBodyGeometryXZ returns, for every plane body b touches, the X
// extent of its bounding box on that plane paired with the plane
// index — an XZ projection consumed by visualization tooling outside
// this module's scope.
func (s *Stack) GetBodyGeometryXZ(b uint32) (x, z []uint32, err error) {
	planes, bounds, err := s.GetBodyBounds(b)
	if err != nil {
		return nil, nil, err
	}
	for i, plane := range planes {
		x = append(x, bounds[i].X, bounds[i].X+bounds[i].Width)
		z = append(z, plane, plane)
	}
	return x, z, nil
}

// GetBodyGeometryYZ is the YZ analogue of GetBodyGeometryXZ.
func (s *Stack) GetBodyGeometryYZ(b uint32) (y, z []uint32, err error) {
	planes, bounds, err := s.GetBodyBounds(b)
	if err != nil {
		return nil, nil, err
	}
	for i, plane := range planes {
		y = append(y, bounds[i].Y, bounds[i].Y+bounds[i].Height)
		z = append(z, plane, plane)
	}
	return y, z, nil
}

// --- load/save ---

// Load reads a container file into a fresh Stack.
func Load(path string) (*Stack, error) {
	f, err := container.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := f.ListDatasets("/superpixel")
	if err != nil {
		return nil, err
	}

	s := &Stack{superpixel: make(map[uint32]*table.Table)}
	planes := make(map[uint32]bool, len(names))
	s.zmin, s.zmax = table.Empty, 0
	for _, name := range names {
		var z uint32
		if _, err := fmt.Sscanf(name, "%d", &z); err != nil {
			return nil, fmt.Errorf("stack: bad superpixel dataset name %q: %w", name, stackerr.ErrFormat)
		}
		planes[z] = true
		if z < s.zmin {
			s.zmin = z
		}
		if z > s.zmax {
			s.zmax = z
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("stack: container has no superpixel planes: %w", stackerr.ErrFormat)
	}

	for z := s.zmin; z <= s.zmax; z++ {
		if !planes[z] {
			return nil, fmt.Errorf("stack: missing plane %d: %w", z, stackerr.ErrFormat)
		}
		t, err := f.ReadDataset(fmt.Sprintf("superpixel/%d", z))
		if err != nil {
			return nil, err
		}
		s.superpixel[z] = t
	}

	s.segment, err = f.ReadDataset("segment")
	if err != nil {
		return nil, err
	}
	segSPTable, err := f.ReadDataset("segment_superpixels")
	if err != nil {
		return nil, err
	}
	s.segmentSP, err = arena.New(segSPTable)
	if err != nil {
		return nil, err
	}
	s.bodyIndex, err = f.ReadDataset("body_index")
	if err != nil {
		return nil, err
	}
	bodySegTable, err := f.ReadDataset("body_segments")
	if err != nil {
		return nil, err
	}
	s.bodySeg, err = arena.New(bodySegTable)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes the five datasets of spec.md §6 to path. Unless isBackup
// is set, GarbageCollect runs first so saved state carries no dead
// arena space (blanked rows stay in their tables, all-Empty); backup
// saves skip it so an undo-style
// workflow can resurrect blanked rows.
func (s *Stack) Save(path string, isBackup bool) error {
	if !isBackup {
		if _, err := s.GarbageCollect(); err != nil {
			return err
		}
	}

	f, err := container.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.CreateGroup("superpixel"); err != nil {
		return err
	}
	zs := make([]uint32, 0, len(s.superpixel))
	for z := range s.superpixel {
		zs = append(zs, z)
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i] < zs[j] })
	for _, z := range zs {
		if err := f.WriteDataset(fmt.Sprintf("superpixel/%d", z), s.superpixel[z]); err != nil {
			return err
		}
	}

	if err := f.WriteDataset("segment", s.segment); err != nil {
		return err
	}
	if err := f.WriteDataset("segment_superpixels", s.segmentSP.Table()); err != nil {
		return err
	}
	if err := f.WriteDataset("body_index", s.bodyIndex); err != nil {
		return err
	}
	return f.WriteDataset("body_segments", s.bodySeg.Table())
}
