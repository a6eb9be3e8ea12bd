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

// Package construct bulk-ingests the three whitespace-delimited text
// tables (superpixel bounds, superpixel-to-segment map,
// segment-to-body map) and materializes a stack.Stack from them,
// mirroring HdfStack::create and remapZeroSuperpixels.
package construct

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/janelia-flyem/raveler-utils/arena"
	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/stackerr"
	"github.com/janelia-flyem/raveler-utils/table"
	"github.com/janelia-flyem/raveler-utils/verify"
)

// Bounds table columns.
const (
	boundsZ = iota
	boundsSPID
	boundsX
	boundsY
	boundsWidth
	boundsHeight
	boundsVolume
	numBoundsColumns
)

// Segments table columns.
const (
	segmentsZ = iota
	segmentsSPID
	segmentsSegID
	numSegmentsColumns
)

// Bodies table columns.
const (
	bodiesSegID = iota
	bodiesBodyID
	numBodiesColumns
)

// Inputs names the three source text files.
type Inputs struct {
	BoundsPath   string
	SegmentsPath string
	BodiesPath   string
}

// Options controls logging during ingestion.
type Options struct {
	// LogDir receives the five per-category warning logfiles. If
	// empty, os.TempDir() semantics are the caller's responsibility;
	// construct never defaults this itself.
	LogDir string
	Logger *zap.SugaredLogger
}

// Build ingests the three text tables named by in and returns a fully
// assembled, verified Stack.
func Build(in Inputs, opts Options) (*stack.Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	bounds, err := readIntTable(in.BoundsPath, numBoundsColumns)
	if err != nil {
		return nil, err
	}
	segments, err := readIntTable(in.SegmentsPath, numSegmentsColumns)
	if err != nil {
		return nil, err
	}
	bodies, err := readIntTable(in.BodiesPath, numBodiesColumns)
	if err != nil {
		return nil, err
	}

	newBodies, err := remapZeroSuperpixels(segments, &bodies, opts.LogDir, logger)
	if err != nil {
		return nil, err
	}

	s, err := create(bounds, segments, bodies, newBodies, opts.LogDir, logger)
	if err != nil {
		return nil, err
	}

	res, err := verify.Run(s, false)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		logger.Warnw("verification found discrepancies after ingest", "count", len(res.Errors))
	}

	return s, nil
}

// remapZeroSuperpixels rewrites every segment row with a non-zero spid
// mapped to the zero segment, synthesizing a new segid/bodyid pair for
// each. The zero superpixel itself (spid 0) is exempt: it is always
// allowed to remain mapped to the zero segment.
func remapZeroSuperpixels(segments [][]uint32, bodies *[][]uint32, logDir string, logger *zap.SugaredLogger) ([]uint32, error) {
	var maxsegid, maxbodyid uint32
	for _, row := range segments {
		if row[segmentsSegID] > maxsegid {
			maxsegid = row[segmentsSegID]
		}
	}
	for _, row := range *bodies {
		if row[bodiesBodyID] > maxbodyid {
			maxbodyid = row[bodiesBodyID]
		}
	}

	log := newLogFile(logDir, "zerosuperpixels.txt", "")
	defer log.Close()

	var newBodies []uint32
	remapped := 0
	for i, row := range segments {
		if row[segmentsSPID] == 0 {
			continue
		}
		if row[segmentsSegID] != 0 {
			continue
		}

		remapped++
		maxsegid++
		maxbodyid++
		newBodies = append(newBodies, maxbodyid)

		segments[i][segmentsSegID] = maxsegid
		*bodies = append(*bodies, []uint32{maxsegid, maxbodyid})

		if err := log.log("%d %d %d %d", row[segmentsZ], row[segmentsSPID], maxsegid, maxbodyid); err != nil {
			return nil, err
		}
	}

	if remapped > 0 {
		logger.Warnw("remapped zero-segment superpixels", "count", remapped, "logfile", log.Filename())
	}
	return newBodies, nil
}

func create(bounds, segments, bodies [][]uint32, newBodies []uint32, logDir string, logger *zap.SugaredLogger) (*stack.Stack, error) {
	zmin, zmax := table.Empty, uint32(0)
	boundSet := make(map[uint32]map[uint32]bool)
	maxspid := make(map[uint32]uint32)
	for _, row := range bounds {
		z, spid := row[boundsZ], row[boundsSPID]
		if boundSet[z] == nil {
			boundSet[z] = make(map[uint32]bool)
		}
		boundSet[z][spid] = true
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
		if cur, ok := maxspid[z]; !ok || spid > cur {
			maxspid[z] = spid
		}
	}
	if len(bounds) == 0 {
		zmin, zmax = 0, 0
	}

	segMap := make(map[uint32]map[uint32]int)
	for i, row := range segments {
		z, spid := row[segmentsZ], row[segmentsSPID]
		if segMap[z] == nil {
			segMap[z] = make(map[uint32]int)
		}
		segMap[z][spid] = i
	}

	planes := make(map[uint32]*table.Table)
	for z, highest := range maxspid {
		t, err := table.New(highest+1, 6)
		if err != nil {
			return nil, err
		}
		planes[z] = t
	}
	if _, ok := planes[zmin]; !ok && len(bounds) == 0 {
		t, err := table.New(0, 6)
		if err != nil {
			return nil, err
		}
		planes[zmin] = t
	}

	orphans := newLogFile(logDir, "superpixels-in-bounds-only.txt", "# z spid volume")
	defer orphans.Close()
	drop, keep := 0, 0

	for _, row := range bounds {
		z, spid := row[boundsZ], row[boundsSPID]
		if _, ok := segMap[z][spid]; !ok {
			drop++
			if err := orphans.log("%d %d %d", z, spid, row[boundsVolume]); err != nil {
				return nil, err
			}
			continue
		}
		keep++
		t := planes[z]
		if err := t.Set(spid, 0, row[boundsX]); err != nil {
			return nil, err
		}
		if err := t.Set(spid, 1, row[boundsY]); err != nil {
			return nil, err
		}
		if err := t.Set(spid, 2, row[boundsWidth]); err != nil {
			return nil, err
		}
		if err := t.Set(spid, 3, row[boundsHeight]); err != nil {
			return nil, err
		}
		if err := t.Set(spid, 4, row[boundsVolume]); err != nil {
			return nil, err
		}
	}
	if drop > 0 {
		logger.Warnw("dropped orphaned superpixels present in bounds but not the segment map",
			"dropped", drop, "kept", keep, "logfile", orphans.Filename())
	}

	phantoms := newLogFile(logDir, "superpixels-in-map-only.txt", "# z spid segid")
	defer phantoms.Close()
	drop, keep = 0, 0
	var maxsegid uint32

	for _, row := range segments {
		z, spid, segid := row[segmentsZ], row[segmentsSPID], row[segmentsSegID]
		if !boundSet[z][spid] {
			drop++
			if err := phantoms.log("%d %d %d", z, spid, segid); err != nil {
				return nil, err
			}
			continue
		}
		keep++
		if err := planes[z].Set(spid, 5, segid); err != nil {
			return nil, err
		}
		if segid > maxsegid {
			maxsegid = segid
		}
	}
	if drop > 0 {
		logger.Infow("dropped phantom superpixels present in the segment map but not bounds",
			"dropped", drop, "kept", keep, "logfile", phantoms.Filename())
	}

	segment, err := table.New(maxsegid+1, 3)
	if err != nil {
		return nil, err
	}
	for _, z := range sortedKeys(planes) {
		t := planes[z]
		for spid := uint32(0); spid < t.Rows(); spid++ {
			segid, err := t.Get(spid, 5)
			if err != nil {
				return nil, err
			}
			if segid != table.Empty {
				prevZ, err := segment.Get(segid, 0)
				if err != nil {
					return nil, err
				}
				if segid != stack.ZeroSegment && prevZ != table.Empty && prevZ != z {
					return nil, fmt.Errorf(
						"construct: segment %d asserted on both plane %d and plane %d: %w",
						segid, prevZ, z, stackerr.ErrFormat)
				}
				if err := segment.Set(segid, 0, z); err != nil {
					return nil, err
				}
			}
		}
	}

	emptySegments := newLogFile(logDir, "empty-segments.txt", "# segid")
	defer emptySegments.Close()
	drop, keep = 0, 0
	deletedSegs := make(map[uint32]bool)

	for _, row := range bodies {
		segid, bodyid := row[bodiesSegID], row[bodiesBodyID]
		var z uint32 = table.Empty
		if segid < segment.Rows() {
			var err error
			z, err = segment.Get(segid, 0)
			if err != nil {
				return nil, err
			}
		}
		if z != table.Empty {
			if err := segment.Set(segid, 1, bodyid); err != nil {
				return nil, err
			}
			keep++
		} else {
			drop++
			if err := emptySegments.log("%d", segid); err != nil {
				return nil, err
			}
			deletedSegs[segid] = true
		}
	}
	if drop > 0 {
		logger.Infow("dropped empty segments with no superpixels", "dropped", drop, "kept", keep,
			"logfile", emptySegments.Filename())
	}

	spidsBySegment := make(map[uint32][]uint32)
	var segIDsInOrder []uint32
	for _, z := range sortedKeys(planes) {
		t := planes[z]
		for spid := uint32(0); spid < t.Rows(); spid++ {
			segid, err := t.Get(spid, 5)
			if err != nil {
				return nil, err
			}
			if segid == table.Empty {
				continue
			}
			if _, ok := spidsBySegment[segid]; !ok {
				segIDsInOrder = append(segIDsInOrder, segid)
			}
			spidsBySegment[segid] = append(spidsBySegment[segid], spid)
		}
	}
	sort.Slice(segIDsInOrder, func(i, j int) bool { return segIDsInOrder[i] < segIDsInOrder[j] })

	segmentSP, err := arena.NewEmpty()
	if err != nil {
		return nil, err
	}
	for _, segid := range segIDsInOrder {
		idx, err := segmentSP.AppendList(spidsBySegment[segid])
		if err != nil {
			return nil, err
		}
		if err := segment.Set(segid, 2, idx); err != nil {
			return nil, err
		}
	}

	emptyBodies := newLogFile(logDir, "empty-bodies.txt", "# bodyid")
	defer emptyBodies.Close()

	segsByBody := make(map[uint32][]uint32)
	uniqueSegments := make(map[uint32]bool)
	pendingBodies := make(map[uint32]bool)
	var maxbodyid uint32

	for _, row := range bodies {
		segid, bodyid := row[bodiesSegID], row[bodiesBodyID]
		if uniqueSegments[segid] {
			return nil, fmt.Errorf(
				"construct: segment %d mapped to more than one body in segment_to_body_map: %w",
				segid, stackerr.ErrFormat)
		}
		uniqueSegments[segid] = true

		if deletedSegs[segid] {
			pendingBodies[bodyid] = true
			continue
		}
		if bodyid > maxbodyid {
			maxbodyid = bodyid
		}
		segsByBody[bodyid] = append(segsByBody[bodyid], segid)
	}

	drop = 0
	for bodyid := range pendingBodies {
		if _, ok := segsByBody[bodyid]; !ok {
			drop++
			if err := emptyBodies.log("%d", bodyid); err != nil {
				return nil, err
			}
		}
	}
	if drop > 0 {
		logger.Infow("dropped empty bodies with no surviving segments", "dropped", drop,
			"kept", len(segsByBody), "logfile", emptyBodies.Filename())
	}

	bodyIndex, err := table.New(maxbodyid+1, 1)
	if err != nil {
		return nil, err
	}
	bodySeg, err := arena.NewEmpty()
	if err != nil {
		return nil, err
	}

	var bodyIDsInOrder []uint32
	for bodyid := range segsByBody {
		bodyIDsInOrder = append(bodyIDsInOrder, bodyid)
	}
	sort.Slice(bodyIDsInOrder, func(i, j int) bool { return bodyIDsInOrder[i] < bodyIDsInOrder[j] })

	for _, bodyid := range bodyIDsInOrder {
		idx, err := bodySeg.AppendList(segsByBody[bodyid])
		if err != nil {
			return nil, err
		}
		if err := bodyIndex.Set(bodyid, 0, idx); err != nil {
			return nil, err
		}
	}

	return stack.Assemble(planes, zmin, zmax, segment, segmentSP, bodyIndex, bodySeg, newBodies)
}

func sortedKeys(m map[uint32]*table.Table) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
