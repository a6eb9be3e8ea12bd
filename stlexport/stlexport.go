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

// Package stlexport writes a binary STL mesh where every superpixel
// bounding box becomes a zaspect-scaled axis-aligned cube, grounded on
// STLExport.cpp's STLMesh::addcube.
package stlexport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/janelia-flyem/raveler-utils/table"
)

type vec3 struct {
	X, Y, Z float32
}

type triangle struct {
	normal     vec3
	a, b, c    vec3
}

// WriteBody writes one binary STL mesh to w: one cube per (plane,
// bounds) pair, each face wound counter-clockwise as viewed from
// outside the cube, per spec.md §6.
func WriteBody(w io.Writer, planes []uint32, bounds []table.Bounds, zaspect float32) error {
	if len(planes) != len(bounds) {
		return fmt.Errorf("stlexport: planes and bounds length mismatch: %d vs %d", len(planes), len(bounds))
	}

	var tris []triangle
	for i, plane := range planes {
		tris = append(tris, cubeTriangles(bounds[i], plane, zaspect)...)
	}

	header := make([]byte, 80)
	copy(header, "Binary STL by hdfstack")
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("stlexport: write header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(tris))); err != nil {
		return fmt.Errorf("stlexport: write triangle count: %w", err)
	}

	for _, t := range tris {
		if err := writeTriangle(w, t); err != nil {
			return err
		}
	}
	return nil
}

func writeTriangle(w io.Writer, t triangle) error {
	for _, v := range []vec3{t.normal, t.a, t.b, t.c} {
		if err := binary.Write(w, binary.LittleEndian, v.X); err != nil {
			return fmt.Errorf("stlexport: write vertex: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, v.Y); err != nil {
			return fmt.Errorf("stlexport: write vertex: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, v.Z); err != nil {
			return fmt.Errorf("stlexport: write vertex: %w", err)
		}
	}
	return binary.Write(w, binary.LittleEndian, uint16(0))
}

// cubeTriangles builds the 12 triangles (two per face, six faces) of
// one bounding box extruded from plane*zaspect to (plane+1)*zaspect.
func cubeTriangles(b table.Bounds, plane uint32, zaspect float32) []triangle {
	x0, x1 := float32(b.X), float32(b.X+b.Width)
	y0, y1 := float32(b.Y), float32(b.Y+b.Height)
	z0 := float32(plane) * zaspect
	z1 := float32(plane+1) * zaspect

	var tris []triangle
	addFace := func(a, b, c, d, n vec3) {
		tris = append(tris, triangle{normal: n, a: a, b: b, c: c})
		tris = append(tris, triangle{normal: n, a: a, b: c, c: d})
	}

	// top
	addFace(
		vec3{x0, y0, z0}, vec3{x0, y1, z0}, vec3{x1, y1, z0}, vec3{x1, y0, z0},
		vec3{0, 0, -1})
	// front
	addFace(
		vec3{x0, y1, z0}, vec3{x0, y1, z1}, vec3{x1, y1, z1}, vec3{x1, y1, z0},
		vec3{0, 1, 0})
	// left
	addFace(
		vec3{x0, y0, z0}, vec3{x0, y0, z1}, vec3{x0, y1, z1}, vec3{x0, y1, z0},
		vec3{-1, 0, 0})
	// right
	addFace(
		vec3{x1, y1, z0}, vec3{x1, y1, z1}, vec3{x1, y0, z1}, vec3{x1, y0, z0},
		vec3{1, 0, 0})
	// back
	addFace(
		vec3{x1, y0, z0}, vec3{x1, y0, z1}, vec3{x0, y0, z1}, vec3{x0, y0, z0},
		vec3{0, -1, 0})
	// bottom
	addFace(
		vec3{x0, y0, z1}, vec3{x1, y0, z1}, vec3{x1, y1, z1}, vec3{x0, y1, z1},
		vec3{0, 0, 1})

	return tris
}
