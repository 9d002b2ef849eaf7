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

// Package alleledb builds flat databases of the tandem-repeat alleles
// called for a set of samples.
//
// A database is a gzip-compressed text file with one line per locus and
// sample:
//
//	locus \t sample \t allele[,allele]
//
// or, when allele lengths are requested:
//
//	locus \t sample \t AL \t allele[,allele]
//
// Once sorted, the lines are in ascending byte order of the locus, and
// lines for the same locus are in manifest order.
package alleledb

import (
	"context"

	"github.com/exascience/alleledb/dbsort"
)

// BuildOptions configure Build.
type BuildOptions struct {
	Options
	Sort dbsort.Options
}

// Build writes the database for a manifest and sorts it by locus.
func Build(ctx context.Context, manifest Manifest, dbPath string, opts BuildOptions) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report, err := Write(manifest, dbPath, opts.Options)
	if err != nil {
		return nil, err
	}
	if err := dbsort.Sort(ctx, dbPath, opts.Sort); err != nil {
		return report, err
	}
	return report, nil
}

// Create writes the sorted database for a manifest, using the
// in-process merge sort with the given number of threads. Values of
// threads below 1 mean 1.
func Create(manifest Manifest, dbPath string, threads int) error {
	if threads < 1 {
		threads = 1
	}
	_, err := Build(context.Background(), manifest, dbPath, BuildOptions{
		Options: Options{CompressionThreads: threads},
		Sort:    dbsort.Options{Mode: dbsort.Merge, Threads: threads},
	})
	return err
}
