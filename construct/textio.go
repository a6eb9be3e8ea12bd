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

package construct

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/janelia-flyem/raveler-utils/stackerr"
)

// readIntTable reads a whitespace-separated text file of unsigned
// integers, one row per line, ignoring blank lines and lines whose
// first non-space character is '#'. Every row must have exactly
// columns fields.
func readIntTable(path string, columns int) ([][]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("construct: open %s: %w", path, stackerr.ErrIO)
	}
	defer f.Close()

	var rows [][]uint32
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != columns {
			return nil, fmt.Errorf("construct: %s:%d: expected %d fields, got %d: %w",
				path, lineno, columns, len(fields), stackerr.ErrFormat)
		}
		row := make([]uint32, columns)
		for i, field := range fields {
			v, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("construct: %s:%d: %q is not an unsigned integer: %w",
					path, lineno, field, stackerr.ErrFormat)
			}
			row[i] = uint32(v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("construct: read %s: %w", path, stackerr.ErrIO)
	}
	return rows, nil
}

// logFile is the Go analogue of the original LogFile: it opens its
// backing file lazily, on the first write, so categories with nothing
// to report never leave an empty file behind.
type logFile struct {
	path   string
	header string
	file   *os.File
}

func newLogFile(dir, filename, header string) *logFile {
	return &logFile{path: filepath.Join(dir, filename), header: header}
}

func (l *logFile) log(format string, args ...interface{}) error {
	if l.file == nil {
		f, err := os.Create(l.path)
		if err != nil {
			return fmt.Errorf("construct: create logfile %s: %w", l.path, stackerr.ErrIO)
		}
		l.file = f
		if l.header != "" {
			fmt.Fprintln(l.file, l.header)
		}
	}
	fmt.Fprintf(l.file, format, args...)
	fmt.Fprintln(l.file)
	return nil
}

func (l *logFile) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *logFile) Filename() string { return l.path }
