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

package cmd

import (
	"bytes"
	"flag"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/dbsort"
)

// Config holds the defaults for command line flags, taken from the
// environment.
type Config struct {
	Threads           int    `envconfig:"ALLELEDB_THREADS" default:"1"`
	SampleParallelism int    `envconfig:"ALLELEDB_SAMPLE_PARALLELISM" default:"1"`
	SortMode          string `envconfig:"ALLELEDB_SORT_MODE" default:"merge"`
	SortMemory        string `envconfig:"ALLELEDB_SORT_MEMORY" default:"256M"`
	TmpDir            string `envconfig:"ALLELEDB_TMP_DIR"`
	LogLevel          string `envconfig:"ALLELEDB_LOG_LEVEL" default:"info"`
	LogPath           string `envconfig:"ALLELEDB_LOG_PATH"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("%w, while reading ALLELEDB_ environment variables", err)
	}
	return cfg, nil
}

// sortSettings are the flags shared by the build and sort commands.
type sortSettings struct {
	threads int
	mode    string
	memory  string
	tmpDir  string
}

func (s *sortSettings) register(flags *flag.FlagSet, cfg Config) {
	flags.IntVar(&s.threads, "threads", cfg.Threads, "number of threads for sorting and compression")
	flags.StringVar(&s.mode, "sort-mode", cfg.SortMode, "merge, command, or none")
	flags.StringVar(&s.memory, "sort-memory", cfg.SortMemory, "memory budget for sort chunks, such as 256M or 2G")
	flags.StringVar(&s.tmpDir, "tmp-dir", cfg.TmpDir, "directory for temporary sort files")
}

func (s *sortSettings) options() (opts dbsort.Options, err error) {
	if opts.Mode, err = dbsort.ParseMode(s.mode); err != nil {
		return opts, err
	}
	if opts.MemoryLimit, err = dbsort.ParseMemoryLimit(s.memory); err != nil {
		return opts, err
	}
	opts.Threads = s.threads
	opts.TmpDir = s.tmpDir
	return opts, nil
}

// check logs every invalid setting, and reports whether all are valid.
func (s *sortSettings) check() bool {
	ok := true
	if s.threads < 1 {
		log.Errorf("Error: Invalid threads: %v", s.threads)
		ok = false
	}
	if _, err := s.options(); err != nil {
		log.Errorf("Error: %v", err)
		ok = false
	}
	if s.tmpDir != "" && !checkExist("--tmp-dir", s.tmpDir) {
		ok = false
	}
	return ok
}

func (s *sortSettings) describe(command *bytes.Buffer) {
	fmt.Fprint(command, " --threads ", s.threads)
	fmt.Fprint(command, " --sort-mode ", s.mode)
	fmt.Fprint(command, " --sort-memory ", s.memory)
	if s.tmpDir != "" {
		fmt.Fprint(command, " --tmp-dir ", s.tmpDir)
	}
}
