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

// Package container wraps github.com/scigolib/hdf5 to read and write
// the versioned container file described by spec.md §4.2/§6: a root
// attribute "hdf-stack-version" fixed at 1, and named 2D little-endian
// uint32 datasets organized under groups. This plays the role the
// original HdfFile.cpp played over the real HDF5 C library, but
// through a pure-Go, CGo-free HDF5 implementation.
package container

import (
	"fmt"

	"github.com/scigolib/hdf5"

	"github.com/janelia-flyem/raveler-utils/stackerr"
	"github.com/janelia-flyem/raveler-utils/table"
)

// VersionAttribute is the name of the root-group attribute this
// package writes on create and checks on open.
const VersionAttribute = "hdf-stack-version"

// Version is the only value VersionAttribute may legally hold.
const Version uint32 = 1

// File is a handle to an open container file. It is held for the
// duration of a single load or save; Close releases the underlying
// file on every exit path.
type File struct {
	h        *hdf5.File
	readOnly bool
}

// Create truncates (or creates) the file at path, opens it for
// writing, and stamps the version attribute.
func Create(path string) (*File, error) {
	h, err := hdf5.Create(path)
	if err != nil {
		return nil, fmt.Errorf("container: create %s: %w", path, joinIO(err))
	}
	if err := h.Root().SetAttribute(VersionAttribute, Version); err != nil {
		h.Close()
		return nil, fmt.Errorf("container: write version attribute: %w", joinIO(err))
	}
	return &File{h: h}, nil
}

// OpenReadOnly opens path for reading and verifies the version
// attribute equals Version, rejecting any other value.
func OpenReadOnly(path string) (*File, error) {
	h, err := hdf5.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, joinIO(err))
	}
	version, ok, err := h.Root().Uint32Attribute(VersionAttribute)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("container: read version attribute: %w", joinIO(err))
	}
	if !ok || version != Version {
		h.Close()
		return nil, fmt.Errorf("container: unsupported %s=%v (want %d): %w",
			VersionAttribute, version, Version, stackerr.ErrCorruption)
	}
	return &File{h: h, readOnly: true}, nil
}

// Close releases the underlying file.
func (f *File) Close() error {
	if f.h == nil {
		return nil
	}
	err := f.h.Close()
	f.h = nil
	if err != nil {
		return fmt.Errorf("container: close: %w", joinIO(err))
	}
	return nil
}

// CreateGroup creates a group directly under the root.
func (f *File) CreateGroup(name string) error {
	if _, err := f.h.Root().CreateGroup(name); err != nil {
		return fmt.Errorf("container: create group %s: %w", name, joinIO(err))
	}
	return nil
}

// WriteDataset writes t as a named 2D little-endian uint32 dataset.
// name may contain '/' to address a dataset nested under a group
// (e.g. "superpixel/3").
func (f *File) WriteDataset(name string, t *table.Table) error {
	dims := []int{int(t.Rows()), int(t.Columns())}
	if err := f.h.Root().WriteDataset(name, t.Raw(), dims); err != nil {
		return fmt.Errorf("container: write dataset %s: %w", name, joinIO(err))
	}
	return nil
}

// ListDatasets returns the names of all datasets directly under the
// group at path (e.g. "/superpixel").
func (f *File) ListDatasets(path string) ([]string, error) {
	names, err := f.h.Root().ListDatasets(path)
	if err != nil {
		return nil, fmt.Errorf("container: list datasets under %s: %w", path, joinIO(err))
	}
	return names, nil
}

// ReadDataset reads a named dataset into a Table. Per spec.md §4.2,
// the dataset must be integer class, little-endian, 4 bytes wide, and
// rank 1 or 2 (rank 1 is treated as an N x 1 table).
func (f *File) ReadDataset(name string) (*table.Table, error) {
	ds, err := f.h.Root().OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("container: open dataset %s: %w", name, joinIO(err))
	}
	if err := checkDatasetLayout(ds); err != nil {
		return nil, fmt.Errorf("container: dataset %s: %w", name, err)
	}
	data, err := ds.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("container: read dataset %s: %w", name, joinIO(err))
	}
	rows, cols := datasetShape(ds)
	return table.FromRaw(rows, cols, data)
}

func checkDatasetLayout(ds *hdf5.Dataset) error {
	shape := ds.Shape()
	if len(shape) != 1 && len(shape) != 2 {
		return fmt.Errorf("rank %d not 1 or 2: %w", len(shape), stackerr.ErrFormat)
	}
	if ds.ElementSize() != 4 {
		return fmt.Errorf("element size %d not 4 bytes: %w", ds.ElementSize(), stackerr.ErrFormat)
	}
	if !ds.IsIntegerClass() {
		return fmt.Errorf("dataset is not integer class: %w", stackerr.ErrFormat)
	}
	if !ds.IsLittleEndian() {
		return fmt.Errorf("dataset is not little-endian: %w", stackerr.ErrFormat)
	}
	return nil
}

func datasetShape(ds *hdf5.Dataset) (rows, cols uint32) {
	shape := ds.Shape()
	if len(shape) == 1 {
		return uint32(shape[0]), 1
	}
	return uint32(shape[0]), uint32(shape[1])
}

func joinIO(err error) error {
	return fmt.Errorf("%v: %w", err, stackerr.ErrIO)
}
