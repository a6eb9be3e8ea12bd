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

// Package arena implements the packed list-of-lists primitive used by
// the mapping engine to store one-to-many relationships (segment to
// its superpixels, body to its segments) without per-owner heap
// allocation. Lists are concatenated into a single-column table and
// terminated by table.Empty; mutation is append-only, and Compress
// performs the copying garbage collection pass that reclaims dead
// space left behind by repeated appends.
package arena

import (
	"fmt"

	"github.com/janelia-flyem/raveler-utils/stackerr"
	"github.com/janelia-flyem/raveler-utils/table"
)

// EndOfList terminates every list stored in an arena. It is the same
// numeric value as table.Empty; the two meanings ("cell absent" and
// "end of list") are distinguished only by context, per spec.md's
// overloaded-sentinel design note.
const EndOfList = table.Empty

// Arena is a single-column growable table holding concatenated,
// terminator-delimited lists. Lists are identified by their starting
// row index; an empty list is a single index pointing directly at a
// terminator cell.
type Arena struct {
	list *table.Table
}

// New wraps an existing single-column table as an arena. Use this to
// rehydrate an arena read back from a container file.
func New(list *table.Table) (*Arena, error) {
	if list.Columns() != 1 {
		return nil, fmt.Errorf("arena: backing table must have 1 column, got %d: %w", list.Columns(), stackerr.ErrFormat)
	}
	return &Arena{list: list}, nil
}

// NewEmpty allocates a fresh, empty arena.
func NewEmpty() (*Arena, error) {
	t, err := table.New(0, 1)
	if err != nil {
		return nil, err
	}
	return &Arena{list: t}, nil
}

// Table returns the arena's backing single-column table, for
// serialization.
func (a *Arena) Table() *table.Table { return a.list }

// AppendList appends items followed by a terminator and returns the
// row index where the new list begins. Complexity is O(len(items)).
func (a *Arena) AppendList(items []uint32) (uint32, error) {
	start, err := a.list.AppendRows(uint32(len(items)) + 1)
	if err != nil {
		return 0, err
	}
	for i, v := range items {
		if err := a.list.Set(start+uint32(i), 0, v); err != nil {
			return 0, err
		}
	}
	if err := a.list.Set(start+uint32(len(items)), 0, EndOfList); err != nil {
		return 0, err
	}
	return start, nil
}

// ReadList reads values starting at index until the terminator,
// returning them in storage order. It fails with a corruption error
// if the walk runs past the end of the table without finding one.
func (a *Arena) ReadList(index uint32) ([]uint32, error) {
	var result []uint32
	for i := index; ; i++ {
		v, err := a.list.Get(i, 0)
		if err != nil {
			return nil, fmt.Errorf("arena: list at index %d missing terminator: %w", index, stackerr.ErrCorruption)
		}
		if v == EndOfList {
			return result, nil
		}
		result = append(result, v)
	}
}

// IndexTable is the subset of table.Table behavior Compress needs
// from the table whose column holds each owner's arena start index.
type IndexTable interface {
	Rows() uint32
	Get(row, col uint32) (uint32, error)
	Set(row, col, value uint32) error
}

type compressState int

const (
	stateNewList compressState = iota
	stateSkipping
	stateCopying
)

// Compress rewrites the arena in place, discarding lists that are no
// longer referenced by any owner row in indexes[*, column] and
// rewriting each live owner's index to the new, compacted location.
//
// Two owners pointing at the same arena start is treated as
// corruption: the first owner encountered during the reverse-map
// build wins and a warning describing the collision is returned
// alongside a successful compaction (spec.md Open Question (a) — keep
// first, surface a warning rather than failing the whole pass).
func (a *Arena) Compress(indexes IndexTable, column uint32) ([]string, error) {
	var warnings []string

	owners := make(map[uint32]uint32, indexes.Rows())
	for row := uint32(0); row < indexes.Rows(); row++ {
		idx, err := indexes.Get(row, column)
		if err != nil {
			return nil, err
		}
		if idx == table.Empty {
			continue
		}
		if _, exists := owners[idx]; exists {
			warnings = append(warnings, fmt.Sprintf(
				"arena: corruption: multiple owners reference start index %d; keeping first", idx))
			continue
		}
		owners[idx] = row
	}

	out := uint32(0)
	outRows := uint32(0)
	state := stateNewList

	total := a.list.Rows()
	for i := uint32(0); i < total; i++ {
		if state == stateNewList {
			if owner, ok := owners[i]; ok {
				state = stateCopying
				if err := indexes.Set(owner, column, out); err != nil {
					return nil, err
				}
			} else {
				state = stateSkipping
			}
		}

		switch state {
		case stateSkipping:
			v, err := a.list.Get(i, 0)
			if err != nil {
				return nil, err
			}
			if v == EndOfList {
				state = stateNewList
			}
		case stateCopying:
			v, err := a.list.Get(i, 0)
			if err != nil {
				return nil, err
			}
			if err := a.list.Set(out, 0, v); err != nil {
				return nil, err
			}
			out++
			if v == EndOfList {
				state = stateNewList
				outRows = out
			}
		}
	}

	if err := a.list.TruncateRows(outRows); err != nil {
		return nil, err
	}
	return warnings, nil
}
