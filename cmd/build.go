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
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/exascience/alleledb/alleledb"
	"github.com/exascience/alleledb/internal"
)

// BuildHelp is the help string for this command.
const BuildHelp = "\nbuild parameters:\n" +
	"alleledb build manifest-file db-output-file\n" +
	"[--threads n]\n" +
	"[--sample-parallelism n]\n" +
	"[--sort-mode merge|command|none]\n" +
	"[--sort-memory size]\n" +
	"[--tmp-dir path]\n" +
	"[--allele-lengths]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// signalContext is cancelled on SIGINT and SIGTERM, which stops
// external sort processes.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
}

// Build implements the alleledb build command.
func Build() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	var (
		sorting           sortSettings
		sampleParallelism int
		logPath           string
		alleleLengths     bool
		timed             bool
	)

	var flags flag.FlagSet

	sorting.register(&flags, cfg)
	flags.IntVar(&sampleParallelism, "sample-parallelism", cfg.SampleParallelism, "number of samples decoded at the same time")
	flags.BoolVar(&alleleLengths, "allele-lengths", false, "add the AL tag of each call as a column")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", cfg.LogPath, "write log files to the specified directory")

	parseFlags(&flags, 4, BuildHelp)

	manifestFile := getFilename(os.Args[2], BuildHelp)
	output := getFilename(os.Args[3], BuildHelp)

	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", manifestFile) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if !sorting.check() {
		sanityChecksFailed = true
	}
	if sampleParallelism < 1 {
		sanityChecksFailed = true
		log.Errorf("Error: Invalid sample-parallelism: %v", sampleParallelism)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, BuildHelp)
		os.Exit(1)
	}

	manifest, err := alleledb.LoadManifest(manifestFile)
	if err != nil {
		return err
	}
	sortOptions, err := sorting.options()
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " build ", manifestFile, " ", output)
	sorting.describe(&command)
	fmt.Fprint(&command, " --sample-parallelism ", sampleParallelism)
	if alleleLengths {
		fmt.Fprint(&command, " --allele-lengths")
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Info("Executing command:\n", command.String())

	output, err = internal.FullPathname(output)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return timedRun(timed, "Building allele database.", func() error {
		report, err := alleledb.Build(ctx, manifest, output, alleledb.BuildOptions{
			Options: alleledb.Options{
				AlleleLengths:      alleleLengths,
				Parallelism:        sampleParallelism,
				CompressionThreads: sorting.threads,
			},
			Sort: sortOptions,
		})
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"samples": len(report.Samples),
			"records": report.Records(),
		}).Info("Allele database complete.")
		logFileSize(output)
		return nil
	})
}
