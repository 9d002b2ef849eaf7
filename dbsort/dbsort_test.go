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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDB(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	for _, line := range lines {
		_, err = io.WriteString(gz, line+"\n")
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func readDB(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// stableSorted is the reference ordering: a stable sort on the first
// field only.
func stableSorted(lines []string) []string {
	result := append([]string(nil), lines...)
	sort.SliceStable(result, func(i, j int) bool {
		return LocusKey(result[i]) < LocusKey(result[j])
	})
	return result
}

// testLines interleaves loci so that every locus has several records
// out of order, and the samples record the original order.
func testLines(n int) []string {
	loci := []string{"chr2_500", "chr1_100", "chr10_7", "chr1_100_b", "chr1_20", "chrX_1"}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		locus := loci[(i*7)%len(loci)]
		lines = append(lines, fmt.Sprintf("%v\tsample%04d\t%d,%d", locus, i, i%13, i%17))
	}
	return lines
}

func filesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestParseMode(t *testing.T) {
	for s, expected := range map[string]Mode{"": Merge, "merge": Merge, "Command": Command, "none": None} {
		mode, err := ParseMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, expected, mode, s)
	}
	_, err := ParseMode("quick")
	assert.Error(t, err)
}

func TestParseMemoryLimit(t *testing.T) {
	limit, err := ParseMemoryLimit("")
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultMemoryLimit), limit)

	limit, err = ParseMemoryLimit("2M")
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1024*1024), limit)

	_, err = ParseMemoryLimit("lots")
	assert.Error(t, err)
}

func TestLocusKey(t *testing.T) {
	assert.Equal(t, "chr1_100", LocusKey("chr1_100\tS1\tA,B\n"))
	assert.Equal(t, "chr1_100", LocusKey("chr1_100\n"))
	assert.Equal(t, "", LocusKey("\tS1\tA"))
}

func TestSortStreamStable(t *testing.T) {
	lines := testLines(200)
	input := strings.Join(lines, "\n") + "\n"
	for _, threads := range []int{1, 4} {
		var out bytes.Buffer
		s := &MergeSorter{Threads: threads, MemoryLimit: DefaultMemoryLimit, TmpDir: t.TempDir()}
		require.NoError(t, s.SortStream(context.Background(), strings.NewReader(input), &out))
		assert.Equal(t, strings.Join(stableSorted(lines), "\n")+"\n", out.String())
	}
}

func TestSortStreamByteOrder(t *testing.T) {
	input := "b\t1\na\t2\nB\t3\na_\t4\na\t5\n"
	var out bytes.Buffer
	s := &MergeSorter{Threads: 1, MemoryLimit: DefaultMemoryLimit}
	require.NoError(t, s.SortStream(context.Background(), strings.NewReader(input), &out))
	assert.Equal(t, "B\t3\na\t2\na\t5\na_\t4\nb\t1\n", out.String())
}

func TestSortStreamMissingFinalNewline(t *testing.T) {
	var out bytes.Buffer
	s := &MergeSorter{Threads: 1, MemoryLimit: DefaultMemoryLimit}
	require.NoError(t, s.SortStream(context.Background(), strings.NewReader("z\t1\na\t2"), &out))
	assert.Equal(t, "a\t2\nz\t1\n", out.String())
}

func TestSortStreamEmpty(t *testing.T) {
	var out bytes.Buffer
	s := &MergeSorter{Threads: 2}
	require.NoError(t, s.SortStream(context.Background(), strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}

func TestSortStreamSpillsRuns(t *testing.T) {
	lines := testLines(500)
	input := strings.Join(lines, "\n") + "\n"
	tmp := t.TempDir()
	for _, limit := range []uint64{1, 100, 4096} {
		var out bytes.Buffer
		s := &MergeSorter{Threads: 3, MemoryLimit: limit, TmpDir: tmp}
		require.NoError(t, s.SortStream(context.Background(), strings.NewReader(input), &out))
		assert.Equal(t, strings.Join(stableSorted(lines), "\n")+"\n", out.String(), "limit %v", limit)
		assert.Empty(t, filesIn(t, tmp), "runs must be removed")
	}
}

func TestSortStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &MergeSorter{Threads: 1}
	err := s.SortStream(ctx, strings.NewReader("a\t1\n"), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortReplacesDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	lines := testLines(300)
	writeDB(t, db, lines)

	require.NoError(t, Sort(context.Background(), db, Options{Mode: Merge, Threads: 2, MemoryLimit: 512}))
	assert.Equal(t, stableSorted(lines), readDB(t, db))
	assert.Equal(t, []string{"alleles.db.gz"}, filesIn(t, dir))
}

func TestSortIdempotent(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	writeDB(t, db, testLines(100))
	opts := Options{Mode: Merge, Threads: 2}

	require.NoError(t, Sort(context.Background(), db, opts))
	once, err := os.ReadFile(db)
	require.NoError(t, err)
	require.NoError(t, Sort(context.Background(), db, opts))
	twice, err := os.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSortNone(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	lines := testLines(20)
	writeDB(t, db, lines)
	require.NoError(t, Sort(context.Background(), db, Options{Mode: None}))
	assert.Equal(t, lines, readDB(t, db))
}

func TestSortFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	require.NoError(t, os.WriteFile(db, []byte("not compressed\n"), 0666))

	err := Sort(context.Background(), db, Options{Mode: Merge})
	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "decompress", stageErr.Stage)

	data, err := os.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, "not compressed\n", string(data))
	assert.Equal(t, []string{"alleles.db.gz"}, filesIn(t, dir))
}

func TestSortMissingDatabase(t *testing.T) {
	err := Sort(context.Background(), filepath.Join(t.TempDir(), "missing.gz"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSortInvalidMode(t *testing.T) {
	assert.Error(t, Sort(context.Background(), "unused", Options{Mode: "bogus"}))
}

func TestCommandSorterArgs(t *testing.T) {
	s := &CommandSorter{Threads: 4, MemoryLimit: 1024, TmpDir: "/scratch"}
	assert.Equal(t,
		[]string{"-t", "\t", "-k1,1", "-s", "--parallel=4", "-S", "1024b", "-T", "/scratch"},
		s.sortArgs())
	assert.Equal(t, []string{"-t", "\t", "-k1,1", "-s", "--parallel=1"}, (&CommandSorter{}).sortArgs())
}

func requireCommands(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%v not available", name)
		}
	}
}

func TestCommandSorter(t *testing.T) {
	requireCommands(t, "gzip", "sort")
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	lines := testLines(250)
	writeDB(t, db, lines)

	require.NoError(t, Sort(context.Background(), db, Options{Mode: Command, Threads: 2, TmpDir: dir}))
	assert.Equal(t, stableSorted(lines), readDB(t, db))
}

func TestCommandSorterStageFailure(t *testing.T) {
	requireCommands(t, "gzip", "false")
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	lines := testLines(10)
	writeDB(t, db, lines)
	original, err := os.ReadFile(db)
	require.NoError(t, err)

	s := &CommandSorter{SortCommand: "false"}
	err = s.SortFile(context.Background(), db, filepath.Join(dir, "sorted.gz"))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr), "%v", err)

	current, err := os.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, original, current)
}

func TestCommandSorterMissingProgram(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "alleles.db.gz")
	writeDB(t, db, testLines(3))
	s := &CommandSorter{Gzip: "alleledb-no-such-gzip"}
	err := s.SortFile(context.Background(), db, filepath.Join(dir, "sorted.gz"))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "decompress", stageErr.Stage)
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Stage: "sort", Err: errors.New("exit status 2"), Stderr: "sort: cannot read\n"}
	assert.Equal(t, "sort stage failed: exit status 2: sort: cannot read", err.Error())
}
