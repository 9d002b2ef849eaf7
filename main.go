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

// alleledb builds flat, locus-sorted databases of the tandem-repeat
// alleles called in per-sample VCF files.
//
// Please see https://github.com/exascience/alleledb for a
// documentation of the tool, and the alleledb, dbsort, and vcf
// packages for the API documentation.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/exascience/alleledb/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: build, sort, query")
	fmt.Fprint(os.Stderr, "\n", cmd.BuildHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.SortHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.QueryHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Error("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = cmd.Build()
	case "sort":
		err = cmd.Sort()
	case "query":
		err = cmd.Query()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Errorf("Unknown command %v.", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
