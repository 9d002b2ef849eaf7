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
	"os"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/exascience/alleledb/internal"
)

// CommandSorter sorts with external gzip and sort processes:
//
//	gzip -dc src | LC_ALL=C sort -t '\t' -k1,1 -s --parallel=N | gzip -c -n > dst
//
// The exit status of every process is checked.
type CommandSorter struct {
	Threads     int
	MemoryLimit uint64 // 0 leaves the buffer size to sort
	TmpDir      string

	// Gzip and SortCommand default to "gzip" and "sort".
	Gzip        string
	SortCommand string
}

type stage struct {
	name   string
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func newStage(ctx context.Context, name, command string, args ...string) *stage {
	st := &stage{name: name, cmd: exec.CommandContext(ctx, command, args...)}
	st.cmd.Stderr = &st.stderr
	return st
}

func (st *stage) wait() error {
	if err := st.cmd.Wait(); err != nil {
		return &StageError{Stage: st.name, Err: err, Stderr: st.stderr.String()}
	}
	return nil
}

func (s *CommandSorter) gzip() string {
	if s.Gzip == "" {
		return "gzip"
	}
	return s.Gzip
}

func (s *CommandSorter) sortCommand() string {
	if s.SortCommand == "" {
		return "sort"
	}
	return s.SortCommand
}

func (s *CommandSorter) sortArgs() []string {
	threads := s.Threads
	if threads < 1 {
		threads = 1
	}
	args := []string{"-t", "\t", "-k1,1", "-s", "--parallel=" + strconv.Itoa(threads)}
	if s.MemoryLimit > 0 {
		args = append(args, "-S", strconv.FormatUint(s.MemoryLimit, 10)+"b")
	}
	if s.TmpDir != "" {
		args = append(args, "-T", s.TmpDir)
	}
	return args
}

// SortFile implements Sorter.
func (s *CommandSorter) SortFile(ctx context.Context, src, dst string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer internal.Close(out, &err)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	stages := []*stage{
		newStage(ctx, "decompress", s.gzip(), "-dc", src),
		newStage(ctx, "sort", s.sortCommand(), s.sortArgs()...),
		newStage(ctx, "compress", s.gzip(), "-c", "-n"),
	}
	stages[1].cmd.Env = append(os.Environ(), "LC_ALL=C")
	for i := 1; i < len(stages); i++ {
		pipe, err := stages[i-1].cmd.StdoutPipe()
		if err != nil {
			return err
		}
		stages[i].cmd.Stdin = pipe
	}
	stages[len(stages)-1].cmd.Stdout = out

	for _, st := range stages {
		if err := st.cmd.Start(); err != nil {
			cancel()
			_ = g.Wait()
			return &StageError{Stage: st.name, Err: err}
		}
		g.Go(st.wait)
	}
	log.WithField("command", stages[1].cmd.String()).Debug("started sort pipeline")
	return g.Wait()
}
