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

package alleledb

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"

	"github.com/exascience/alleledb/internal"
)

// Reader reads the records of a database one by one.
type Reader struct {
	path   string
	file   *os.File
	gz     *pgzip.Reader
	reader *bufio.Reader
	line   int
	record Record
	err    error
}

// Open opens a gzip-compressed database.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	gz, err := pgzip.NewReader(bufio.NewReaderSize(file, internal.BufferSize))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w, while opening allele database %v", err, path)
	}
	return &Reader{
		path:   path,
		file:   file,
		gz:     gz,
		reader: bufio.NewReaderSize(gz, internal.BufferSize),
	}, nil
}

// Next advances to the next record. It returns false at the end of the
// database or on the first error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	line, err := r.reader.ReadString('\n')
	if err == io.EOF && line == "" {
		return false
	} else if err != nil && err != io.EOF {
		r.err = fmt.Errorf("%w, while reading allele database %v", err, r.path)
		return false
	}
	r.line++
	record, err := ParseRecord(line)
	if err != nil {
		r.err = fmt.Errorf("%w, in line %v of allele database %v", err, r.line, r.path)
		return false
	}
	r.record = record
	return true
}

// Record returns the most recent record produced by Next.
func (r *Reader) Record() Record {
	return r.record
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close closes the database.
func (r *Reader) Close() (err error) {
	defer internal.Close(r.file, &err)
	return r.gz.Close()
}

// ReadAll returns all records of a database in file order.
func ReadAll(path string) (records []Record, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer internal.Close(r, &err)
	for r.Next() {
		records = append(records, r.Record())
	}
	return records, r.Err()
}

// Lookup returns the records for a locus from a sorted database, in
// database order. It stops reading at the first record past the locus.
func Lookup(path, locus string) (records []Record, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer internal.Close(r, &err)
	for r.Next() {
		record := r.Record()
		if record.Locus == locus {
			records = append(records, record)
		} else if record.Locus > locus {
			break
		}
	}
	return records, r.Err()
}
