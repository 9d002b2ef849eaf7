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

package dbsort

import (
	"bufio"
	"container/heap"
	"context"
	"io"
	"os"
	"sort"

	psort "github.com/exascience/pargo/sort"
	"github.com/golang/snappy"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/internal"
)

// maxFanIn bounds the number of runs that are merged at once.
const maxFanIn = 256

// MergeSorter is an in-process external merge sort. Lines are read in
// chunks of at most MemoryLimit bytes, each chunk is sorted with a
// parallel stable sort, and chunks that do not fit in memory are
// spilled as snappy-compressed runs and merged afterwards.
type MergeSorter struct {
	Threads     int
	MemoryLimit uint64
	TmpDir      string
}

type sortLine struct {
	key, line string
}

func sortLinesSequentially(lines []sortLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].key < lines[j].key
	})
}

type stableLineSorter []sortLine

func (s stableLineSorter) SequentialSort(i, j int) {
	sortLinesSequentially(s[i:j])
}

func (s stableLineSorter) NewTemp() psort.StableSorter {
	return stableLineSorter(make([]sortLine, len(s)))
}

func (s stableLineSorter) Len() int {
	return len(s)
}

func (s stableLineSorter) Less(i, j int) bool {
	return s[i].key < s[j].key
}

func (s stableLineSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableLineSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

func (s *MergeSorter) sortChunk(lines []sortLine) {
	if s.Threads > 1 {
		psort.StableSort(stableLineSorter(lines))
	} else {
		sortLinesSequentially(lines)
	}
}

// readChunk reads lines until their total size reaches limit. Every
// returned line ends in a newline, including a final line that lacks
// one in the input.
func readChunk(r *bufio.Reader, limit uint64) (lines []sortLine, eof bool, err error) {
	var size uint64
	for size < limit {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			if line != "" {
				line += "\n"
				lines = append(lines, sortLine{key: LocusKey(line), line: line})
			}
			return lines, true, nil
		} else if err != nil {
			return lines, false, err
		}
		lines = append(lines, sortLine{key: LocusKey(line), line: line})
		size += uint64(len(line))
	}
	return lines, false, nil
}

func writeLines(w io.Writer, lines []sortLine) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, l.line); err != nil {
			return err
		}
	}
	return nil
}

func (s *MergeSorter) newRun() (name string, f *os.File, err error) {
	name = internal.TempName(s.TmpDir, ".alleledb-run-", ".snappy")
	f, err = os.Create(name)
	return name, f, err
}

func (s *MergeSorter) spill(lines []sortLine) (name string, err error) {
	name, f, err := s.newRun()
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(name)
		}
	}()
	defer internal.Close(f, &err)
	sw := snappy.NewBufferedWriter(f)
	defer internal.Close(sw, &err)
	return name, writeLines(sw, lines)
}

type runHead struct {
	key, line string
	run       int
	reader    *bufio.Reader
}

type runHeap []*runHead

func (h runHeap) Len() int {
	return len(h)
}

func (h runHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].run < h[j].run
}

func (h runHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *runHeap) Push(x interface{}) {
	*h = append(*h, x.(*runHead))
}

func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// mergeRuns merges sorted runs into w. Ties between runs are broken by
// run order, which keeps the merge stable.
func mergeRuns(runs []string, w io.Writer) (err error) {
	h := make(runHeap, 0, len(runs))
	for i, run := range runs {
		f, oerr := os.Open(run)
		if oerr != nil {
			return oerr
		}
		defer internal.Close(f, &err)
		reader := bufio.NewReaderSize(snappy.NewReader(f), internal.BufferSize)
		line, rerr := reader.ReadString('\n')
		if rerr == io.EOF && line == "" {
			continue
		} else if rerr != nil && rerr != io.EOF {
			return rerr
		}
		h = append(h, &runHead{key: LocusKey(line), line: line, run: i, reader: reader})
	}
	heap.Init(&h)
	for h.Len() > 0 {
		head := h[0]
		if _, err := io.WriteString(w, head.line); err != nil {
			return err
		}
		line, err := head.reader.ReadString('\n')
		switch {
		case err == io.EOF && line == "":
			heap.Pop(&h)
		case err != nil && err != io.EOF:
			return err
		default:
			head.key, head.line = LocusKey(line), line
			heap.Fix(&h, 0)
		}
	}
	return nil
}

// mergeGroup merges runs into a new run.
func (s *MergeSorter) mergeGroup(runs []string) (name string, err error) {
	name, f, err := s.newRun()
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(name)
		}
	}()
	defer internal.Close(f, &err)
	sw := snappy.NewBufferedWriter(f)
	defer internal.Close(sw, &err)
	return name, mergeRuns(runs, sw)
}

// SortStream sorts the database lines read from r into w.
func (s *MergeSorter) SortStream(ctx context.Context, r io.Reader, w io.Writer) (err error) {
	limit := s.MemoryLimit
	if limit == 0 {
		limit = DefaultMemoryLimit
	}
	reader := bufio.NewReaderSize(r, internal.BufferSize)

	var created, runs []string
	defer func() {
		for _, run := range created {
			_ = os.Remove(run)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, eof, err := readChunk(reader, limit)
		if err != nil {
			return err
		}
		s.sortChunk(chunk)
		if eof && len(runs) == 0 {
			return writeLines(w, chunk)
		}
		if len(chunk) > 0 {
			run, err := s.spill(chunk)
			if err != nil {
				return &StageError{Stage: "sort", Err: err}
			}
			created = append(created, run)
			runs = append(runs, run)
		}
		if eof {
			break
		}
	}

	log.WithField("runs", len(runs)).Debug("merging sorted runs")
	for len(runs) > maxFanIn {
		if err := ctx.Err(); err != nil {
			return err
		}
		var next []string
		for i := 0; i < len(runs); i += maxFanIn {
			end := i + maxFanIn
			if end > len(runs) {
				end = len(runs)
			}
			run, err := s.mergeGroup(runs[i:end])
			if err != nil {
				return &StageError{Stage: "sort", Err: err}
			}
			created = append(created, run)
			next = append(next, run)
		}
		runs = next
	}
	return mergeRuns(runs, w)
}

type stageReader struct {
	r io.Reader
}

func (sr stageReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	if err != nil && err != io.EOF {
		err = &StageError{Stage: "decompress", Err: err}
	}
	return n, err
}

type stageWriter struct {
	w io.Writer
}

func (sw stageWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if err != nil {
		err = &StageError{Stage: "compress", Err: err}
	}
	return n, err
}

// SortFile implements Sorter.
func (s *MergeSorter) SortFile(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return &StageError{Stage: "decompress", Err: err}
	}
	defer internal.Close(in, &err)
	gz, err := pgzip.NewReader(bufio.NewReaderSize(in, internal.BufferSize))
	if err != nil {
		return &StageError{Stage: "decompress", Err: err}
	}
	defer internal.Close(gz, &err)

	out, err := os.Create(dst)
	if err != nil {
		return &StageError{Stage: "compress", Err: err}
	}
	defer internal.Close(out, &err)
	zw, err := internal.NewGzipWriter(out, s.Threads)
	if err != nil {
		return &StageError{Stage: "compress", Err: err}
	}
	defer func() {
		if cerr := zw.Close(); err == nil && cerr != nil {
			err = &StageError{Stage: "compress", Err: cerr}
		}
	}()
	bw := bufio.NewWriterSize(stageWriter{zw}, internal.BufferSize)
	defer func() {
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
	}()
	return s.SortStream(ctx, stageReader{gz}, bw)
}
