// alleledb: a tool for building tandem-repeat allele databases.
// Copyright (c) 2024 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/alleledb/blob/master/LICENSE.txt>.

package internal

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/pgzip"
)

// BufferSize is the default size for buffered readers and writers.
const BufferSize = 64 * 1024

const gzipBlockSize = 1 << 20

// NewGzipWriter returns a gzip writer that compresses up to threads
// blocks in parallel. The output is a standard single-member gzip
// stream without a modification time, so equal input gives equal
// output.
func NewGzipWriter(w io.Writer, threads int) (*pgzip.Writer, error) {
	if threads < 1 {
		threads = 1
	}
	gz, err := pgzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if err := gz.SetConcurrency(gzipBlockSize, threads); err != nil {
		return nil, err
	}
	return gz, nil
}
