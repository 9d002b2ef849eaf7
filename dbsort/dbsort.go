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

// Package dbsort sorts gzip-compressed allele databases by locus.
//
// Sorting is stable and keyed on the first tab-delimited field only,
// compared byte by byte, so records for the same locus keep the order
// in which they were written. The sorted database is written to a
// temporary file next to the original, which is then renamed over the
// original. If any stage fails, the original is left untouched.
package dbsort

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/internal"
)

// Mode selects a sort implementation.
type Mode string

// The sort modes.
const (
	// Merge is an in-process external merge sort.
	Merge Mode = "merge"

	// Command pipes the database through gzip, sort, and gzip
	// processes.
	Command Mode = "command"

	// None disables sorting.
	None Mode = "none"
)

// DefaultMemoryLimit bounds the size of in-memory sort chunks.
const DefaultMemoryLimit = 256 * bytefmt.MEGABYTE

// ParseMode checks a mode name. The empty string means Merge.
func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(s)); mode {
	case "":
		return Merge, nil
	case Merge, Command, None:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid sort mode %q", s)
	}
}

// ParseMemoryLimit parses sizes such as 512M or 2G.
func ParseMemoryLimit(s string) (uint64, error) {
	if s == "" {
		return DefaultMemoryLimit, nil
	}
	limit, err := bytefmt.ToBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w, while parsing sort memory limit %q", err, s)
	}
	return limit, nil
}

// Options configure Sort.
type Options struct {
	Mode        Mode
	Threads     int    // < 1 means 1
	MemoryLimit uint64 // 0 means DefaultMemoryLimit
	TmpDir      string // "" means the directory of the database
}

func (opts Options) threads() int {
	if opts.Threads < 1 {
		return 1
	}
	return opts.Threads
}

func (opts Options) memoryLimit() uint64 {
	if opts.MemoryLimit == 0 {
		return DefaultMemoryLimit
	}
	return opts.MemoryLimit
}

// A Sorter sorts the gzip-compressed database src into the new file
// dst.
type Sorter interface {
	SortFile(ctx context.Context, src, dst string) error
}

// NewSorter returns the Sorter for opts.Mode, or nil for None.
func NewSorter(opts Options) (Sorter, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	switch mode {
	case Command:
		return &CommandSorter{
			Threads:     opts.threads(),
			MemoryLimit: opts.MemoryLimit,
			TmpDir:      opts.TmpDir,
		}, nil
	case Merge:
		return &MergeSorter{
			Threads:     opts.threads(),
			MemoryLimit: opts.memoryLimit(),
			TmpDir:      opts.TmpDir,
		}, nil
	default:
		return nil, nil
	}
}

// StageError reports the failure of one stage of a sort pipeline.
type StageError struct {
	Stage  string
	Err    error
	Stderr string
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%v stage failed: %v", e.Stage, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// LocusKey returns the sort key of a database line: its first
// tab-delimited field, or the whole line without its newline if it has
// no tab.
func LocusKey(line string) string {
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		return line[:i]
	}
	return strings.TrimSuffix(line, "\n")
}

// Sort sorts the database at dbPath by locus, and atomically replaces
// it with the sorted version.
func Sort(ctx context.Context, dbPath string, opts Options) (err error) {
	if opts.TmpDir == "" {
		opts.TmpDir = filepath.Dir(dbPath)
	}
	sorter, err := NewSorter(opts)
	if err != nil || sorter == nil {
		return err
	}
	tmp := internal.TempSibling(dbPath)
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	start := time.Now()
	if err = sorter.SortFile(ctx, dbPath, tmp); err != nil {
		return fmt.Errorf("%w, while sorting %v", err, dbPath)
	}
	if err = Replace(tmp, dbPath); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path":    dbPath,
		"mode":    opts.Mode,
		"threads": opts.threads(),
	}).Infof("sorted allele database in %v", time.Since(start))
	return nil
}

// Replace renames tmp over path after flushing tmp to stable storage.
func Replace(tmp, path string) error {
	if err := internal.SyncFile(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return internal.SyncDir(filepath.Dir(path))
}
