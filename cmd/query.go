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
	"bufio"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/alleledb"
	"github.com/exascience/alleledb/internal"
)

// QueryHelp is the help string for this command.
const QueryHelp = "\nquery parameters:\n" +
	"alleledb query sorted-db-file locus\n" +
	"[--log-path path]\n"

// Query implements the alleledb query command. It prints the records
// for a locus of a sorted database to stdout.
func Query() (err error) {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	var logPath string

	var flags flag.FlagSet

	flags.StringVar(&logPath, "log-path", cfg.LogPath, "write log files to the specified directory")

	parseFlags(&flags, 4, QueryHelp)

	db := getFilename(os.Args[2], QueryHelp)
	locus := os.Args[3]

	if err := setLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := setLogOutput(logPath); err != nil {
		return err
	}

	if !checkExist("", db) {
		fmt.Fprint(os.Stderr, QueryHelp)
		os.Exit(1)
	}

	records, err := alleledb.Lookup(db, locus)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"locus": locus, "records": len(records)}).Info("Query complete.")

	out := bufio.NewWriterSize(os.Stdout, internal.BufferSize)
	defer func() {
		if ferr := out.Flush(); err == nil {
			err = ferr
		}
	}()
	var buf []byte
	for _, record := range records {
		buf = record.Append(buf[:0], record.AlleleLengths != "")
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
