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

package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"
)

const bufferSize = 64 * 1024

// IsGzip determines if the given reader produces a gzip stream by
// peeking at the magic bytes. An empty stream is not gzip.
func IsGzip(reader *bufio.Reader) (bool, error) {
	magic, err := reader.Peek(2)
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return magic[0] == 0x1f && magic[1] == 0x8b, nil
}

// InputFile represents a VCF file for input.
type InputFile struct {
	file *os.File
	gz   *pgzip.Reader
	*bufio.Reader
}

// Open a VCF file for input.
//
// gzip compressed input (including BGZF) is recognized by its magic
// bytes and decompressed; any other input is read as plain text.
func Open(name string) (*InputFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewReaderSize(file, bufferSize)
	gzipped, err := IsGzip(buf)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !gzipped {
		return &InputFile{file: file, Reader: buf}, nil
	}
	gz, err := pgzip.NewReader(buf)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w, while opening gzip stream of %v", err, name)
	}
	return &InputFile{file: file, gz: gz, Reader: bufio.NewReaderSize(gz, bufferSize)}, nil
}

// Close the VCF input file and its decompressor.
func (input *InputFile) Close() (err error) {
	if input.gz != nil {
		err = input.gz.Close()
	}
	if nerr := input.file.Close(); err == nil {
		err = nerr
	}
	return err
}

// An AlleleReader produces the calls of a VCF file one data line at a
// time, in file order. Header lines and no-calls are skipped.
//
// Use it like a bufio.Scanner:
//
//	for alleles.Next() {
//		call := alleles.Call()
//		...
//	}
//	if err := alleles.Err(); err != nil {
//		...
//	}
//
// The underlying file is closed when Next returns false. Close must
// still be called when the reader is abandoned early; calling it more
// than once is harmless.
type AlleleReader struct {
	path    string
	reader  *bufio.Reader
	closer  io.Closer
	line    int
	noCalls int
	call    Call
	err     error
	closed  bool
}

// OpenAlleles opens a VCF file and returns an AlleleReader for it.
func OpenAlleles(path string) (*AlleleReader, error) {
	input, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &AlleleReader{path: path, reader: input.Reader, closer: input}, nil
}

// NewAlleleReader returns an AlleleReader for an uncompressed VCF
// stream. The name is only used in error messages.
func NewAlleleReader(r io.Reader, name string) *AlleleReader {
	reader, ok := r.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReaderSize(r, bufferSize)
	}
	closer, _ := r.(io.Closer)
	return &AlleleReader{path: name, reader: reader, closer: closer}
}

func (r *AlleleReader) getLine() (line string, err error) {
	line, err = r.reader.ReadString('\n')
	switch {
	case err == nil:
		line = line[:len(line)-1]
	case err == io.EOF && len(line) > 0:
		err = nil
	}
	return
}

// Next advances to the next call. It returns false at the end of the
// file or on the first error.
func (r *AlleleReader) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	for {
		line, err := r.getLine()
		if err == io.EOF {
			r.finish(nil)
			return false
		} else if err != nil {
			r.finish(fmt.Errorf("%w, while reading VCF file %v", err, r.path))
			return false
		}
		r.line++
		if len(line) > 0 && line[0] == headerPrefix {
			continue
		}
		call, err := DecodeCall(line)
		if errors.Is(err, ErrNoCall) {
			r.noCalls++
			continue
		} else if err != nil {
			r.finish(&ParseError{Path: r.path, Line: r.line, Text: line, Err: err})
			return false
		}
		r.call = call
		return true
	}
}

func (r *AlleleReader) finish(err error) {
	r.err = err
	if cerr := r.Close(); r.err == nil {
		r.err = cerr
	}
}

// Call returns the most recent call produced by Next.
func (r *AlleleReader) Call() Call {
	return r.call
}

// Err returns the first error encountered, if any.
func (r *AlleleReader) Err() error {
	return r.err
}

// Line returns the number of lines read so far, headers included.
func (r *AlleleReader) Line() int {
	return r.line
}

// NoCalls returns the number of no-call lines skipped so far.
func (r *AlleleReader) NoCalls() int {
	return r.noCalls
}

// Path returns the name of the VCF file.
func (r *AlleleReader) Path() string {
	return r.path
}

// Close releases the underlying file.
func (r *AlleleReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
