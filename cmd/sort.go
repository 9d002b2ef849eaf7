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
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/dbsort"
	"github.com/exascience/alleledb/internal"
)

// SortHelp is the help string for this command.
const SortHelp = "\nsort parameters:\n" +
	"alleledb sort db-file\n" +
	"[--threads n]\n" +
	"[--sort-mode merge|command|none]\n" +
	"[--sort-memory size]\n" +
	"[--tmp-dir path]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Sort implements the alleledb sort command.
func Sort() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	var (
		sorting sortSettings
		logPath string
		timed   bool
	)

	var flags flag.FlagSet

	sorting.register(&flags, cfg)
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", cfg.LogPath, "write log files to the specified directory")

	parseFlags(&flags, 3, SortHelp)

	db := getFilename(os.Args[2], SortHelp)

	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", db) {
		sanityChecksFailed = true
	}
	if !sorting.check() {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, SortHelp)
		os.Exit(1)
	}

	opts, err := sorting.options()
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " sort ", db)
	sorting.describe(&command)
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Info("Executing command:\n", command.String())

	db, err = internal.FullPathname(db)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return timedRun(timed, "Sorting allele database.", func() error {
		if err := dbsort.Sort(ctx, db, opts); err != nil {
			return err
		}
		logFileSize(db)
		return nil
	})
}
