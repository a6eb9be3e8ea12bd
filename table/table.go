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

// Package table implements the dense row-major uint32 array that
// backs every per-plane superpixel table, the segment table, the
// body-index table, and both list-of-lists arenas. It is the single
// growable storage primitive the rest of the engine is built on.
package table

import (
	"fmt"

	"github.com/janelia-flyem/raveler-utils/stackerr"
)

// Empty is the reserved sentinel shared by "cell is absent" and
// "end of list". Numerically it is the maximum uint32 value.
const Empty uint32 = 0xFFFFFFFF

// ReservedIDs is the number of identifier values reserved at the top
// of the uint32 range, of which Empty is the first.
const ReservedIDs = 256

// MaxRows is the largest legal row count: any smaller count leaves
// every row index representable as a uint32 that cannot collide with
// a reserved identifier.
const MaxRows = Empty - ReservedIDs

// DefaultPadding is the growth-padding fraction used when a Table's
// padding is not explicitly specified: 10% extra rows are allocated
// on growth so repeated single-row appends amortize to O(1).
const DefaultPadding = 0.1

// Bounds is a single 2D bounding box: top-left corner plus width and
// height, matching the original HdfStack "Bounds" struct.
type Bounds struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// IsEmpty reports whether the bounds carries no area.
func (b Bounds) IsEmpty() bool {
	return b.Width == 0 || b.Height == 0
}

// Table is a contiguous row-major array of uint32 cells with a fixed
// column count, a logical row count, and a padded allocated row
// capacity. Appended cells always read back as Empty until written.
type Table struct {
	columns   uint32
	rows      uint32
	allocated uint32
	padding   float64
	data      []uint32
}

// New allocates an empty table of the given row and column count
// with the default growth padding.
func New(rows, columns uint32) (*Table, error) {
	return NewPadded(rows, columns, DefaultPadding)
}

// NewPadded allocates an empty table with an explicit padding
// fraction (0.1 means 10% extra rows are reserved on each grow).
func NewPadded(rows, columns uint32, padding float64) (*Table, error) {
	t := &Table{columns: columns, padding: padding}
	data, allocated, err := allocate(rows, columns, padding)
	if err != nil {
		return nil, err
	}
	t.rows = rows
	t.allocated = allocated
	t.data = data
	return t, nil
}

func allocate(rows, columns uint32, padding float64) ([]uint32, uint32, error) {
	if rows > MaxRows {
		return nil, 0, fmt.Errorf("table: allocate(%d, %d) too many rows: %w", rows, columns, stackerr.ErrRange)
	}
	extra := uint64(float64(rows)*padding + 0.5)
	allocRows := uint64(rows) + extra
	if allocRows > uint64(MaxRows) {
		allocRows = uint64(MaxRows)
	}
	size := allocRows * uint64(columns)
	data := make([]uint32, size)
	for i := range data {
		data[i] = Empty
	}
	return data, uint32(allocRows), nil
}

// Rows returns the logical row count (padding not included).
func (t *Table) Rows() uint32 { return t.rows }

// Columns returns the column count.
func (t *Table) Columns() uint32 { return t.columns }

func (t *Table) checkBounds(row, col uint32) error {
	if row >= t.rows || col >= t.columns {
		return fmt.Errorf("table: (%d, %d) not in range [0,%d)x[0,%d): %w",
			row, col, t.rows, t.columns, stackerr.ErrRange)
	}
	return nil
}

// Get returns the value stored at (row, col).
func (t *Table) Get(row, col uint32) (uint32, error) {
	if err := t.checkBounds(row, col); err != nil {
		return 0, err
	}
	return t.data[row*t.columns+col], nil
}

// Set stores value at (row, col).
func (t *Table) Set(row, col, value uint32) error {
	if err := t.checkBounds(row, col); err != nil {
		return err
	}
	t.data[row*t.columns+col] = value
	return nil
}

// AppendRows grows the table's logical row count by k, using spare
// padding capacity when available or reallocating (with fresh
// padding) otherwise. It returns the previous row count, i.e. the
// index of the first newly appended row. Newly appended cells always
// read back as Empty.
func (t *Table) AppendRows(k uint32) (uint32, error) {
	prev := t.rows
	if k == 0 {
		return prev, nil
	}
	if uint64(t.rows)+uint64(k) <= uint64(t.allocated) {
		t.rows += k
		return prev, nil
	}
	newRows := uint64(t.rows) + uint64(k)
	if newRows > uint64(MaxRows) {
		return 0, fmt.Errorf("table: AppendRows(%d) exceeds max rows: %w", k, stackerr.ErrRange)
	}
	data, allocated, err := allocate(uint32(newRows), t.columns, t.padding)
	if err != nil {
		return 0, err
	}
	copy(data, t.data[:uint64(prev)*uint64(t.columns)])
	t.data = data
	t.allocated = allocated
	t.rows = uint32(newRows)
	return prev, nil
}

// TruncateRows shrinks the logical row count to newRows, blanking the
// vacated region back to Empty so a subsequent re-grow observes it as
// unused. It fails if newRows exceeds the allocated capacity.
func (t *Table) TruncateRows(newRows uint32) error {
	if newRows > t.allocated {
		return fmt.Errorf("table: TruncateRows(%d) exceeds allocated capacity %d: %w",
			newRows, t.allocated, stackerr.ErrRange)
	}
	for r := newRows; r < t.rows; r++ {
		for c := uint32(0); c < t.columns; c++ {
			t.data[r*t.columns+c] = Empty
		}
	}
	t.rows = newRows
	return nil
}

// Raw returns the logical R x C cells in row-major order, suitable
// for bulk serialization. The returned slice aliases the table's
// storage and must not be retained past the next mutation.
func (t *Table) Raw() []uint32 {
	return t.data[:uint64(t.rows)*uint64(t.columns)]
}

// FromRaw builds a Table directly from an existing row-major uint32
// slice, as used when a container dataset is read back into memory.
func FromRaw(rows, columns uint32, data []uint32) (*Table, error) {
	t, err := New(rows, columns)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}
