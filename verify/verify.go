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

// Package verify walks a stack.Stack's cross-references for
// consistency and, optionally, repairs the one class of defect that
// has an unambiguous fix: a live superpixel with no segment.
package verify

import (
	"fmt"

	"github.com/janelia-flyem/raveler-utils/stack"
	"github.com/janelia-flyem/raveler-utils/table"
)

// MaxErrors caps how many discrepancies a single Run reports. The
// segment walk stops once the cap is reached; the superpixel sweep
// still visits every superpixel (so repair reaches all of them) but
// records no discrepancy past the cap.
const MaxErrors = 30

// Result summarizes one verification pass.
type Result struct {
	Errors  []string
	Repairs []string
}

// OK reports whether the stack was found fully consistent.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Run checks every live segment's bidirectional references to its
// superpixels and body, then checks every live superpixel has a
// segment. When repair is true, a superpixel with no segment is fixed
// by creating a new body and segment and assigning the superpixel to
// it; all other discrepancies are report-only.
func Run(s *stack.Stack, repair bool) (Result, error) {
	var res Result

	for g := uint32(0); g < s.SegmentRows(); g++ {
		if len(res.Errors) >= MaxErrors {
			break
		}
		if err := checkSegment(s, g, &res); err != nil {
			return res, err
		}
	}

	for _, z := range planeRange(s) {
		spids, err := s.SuperpixelsInPlane(z)
		if err != nil {
			return res, err
		}
		for _, spid := range spids {
			g, err := s.SegmentOf(z, spid)
			if err != nil {
				return res, err
			}
			if g != table.Empty {
				continue
			}
			if len(res.Errors) < MaxErrors {
				res.Errors = append(res.Errors,
					fmt.Sprintf("superpixel has no segment plane=%d spid=%d", z, spid))
			}

			if !repair {
				continue
			}
			if err := repairSuperpixel(s, z, spid, &res); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

func planeRange(s *stack.Stack) []uint32 {
	planes := make([]uint32, 0, int(s.ZMax()-s.ZMin())+1)
	for z := s.ZMin(); z <= s.ZMax(); z++ {
		planes = append(planes, z)
	}
	return planes
}

func checkSegment(s *stack.Stack, g uint32, res *Result) error {
	z, bodyID, spIndex, err := s.SegmentRaw(g)
	if err != nil {
		return err
	}
	allEmpty := z == table.Empty && bodyID == table.Empty && spIndex == table.Empty
	allSet := z != table.Empty && bodyID != table.Empty && spIndex != table.Empty
	if !allEmpty && !allSet {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"segid=%d is partially EMPTY (z=%d bodyid=%d spindex=%d)", g, z, bodyID, spIndex))
		return nil
	}
	if allEmpty {
		return nil
	}

	spids, err := s.SuperpixelsInSegment(g)
	if err != nil {
		return err
	}
	for _, spid := range spids {
		spSeg, err := s.SegmentOf(z, spid)
		if err != nil {
			return err
		}
		if spSeg != g {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"segid=%d has spid (%d, %d) but superpixel reports segid=%d", g, z, spid, spSeg))
			if len(res.Errors) >= MaxErrors {
				return nil
			}
		}
	}

	b := bodyID
	liveBody, err := s.HasBody(b)
	if err != nil {
		return err
	}
	if !liveBody {
		res.Errors = append(res.Errors, fmt.Sprintf("segid=%d maps to nonexistent bodyid=%d", g, b))
		return nil
	}
	bodysegs, err := s.SegmentsInBody(b)
	if err != nil {
		return err
	}
	if !contains(bodysegs, g) {
		res.Errors = append(res.Errors, fmt.Sprintf("bodyid=%d doesn't contain segid=%d", b, g))
	}
	return nil
}

func repairSuperpixel(s *stack.Stack, z, spid uint32, res *Result) error {
	b, err := s.CreateBody()
	if err != nil {
		return err
	}
	g, err := s.CreateSegment()
	if err != nil {
		return err
	}
	if err := s.AddSegments([]uint32{g}, b); err != nil {
		return err
	}
	if err := s.SetSuperpixels(g, z, []uint32{spid}); err != nil {
		return err
	}
	if err := s.SetSegmentID(z, spid, g); err != nil {
		return err
	}
	res.Repairs = append(res.Repairs,
		fmt.Sprintf("added z=%d spid=%d to new body=%d segment=%d", z, spid, b, g))
	return nil
}

func contains(list []uint32, v uint32) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
