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

package alleledb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"
)

var vcfHeader = []string{
	"##fileformat=VCFv4.2",
	"##INFO=<ID=TRID,Number=1,Type=String,Description=\"Tandem repeat ID\">",
	"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">",
	"##FORMAT=<ID=AL,Number=.,Type=Integer,Description=\"Length of each allele\">",
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE",
}

// call formats a VCF data line for locus with the given genotype and
// allele lengths.
func call(locus, ref, alt, gt, al string) string {
	return fmt.Sprintf("chr1\t1000\t.\t%v\t%v\t.\tPASS\tTRID=%v;END=1010;MOTIFS=CAG\tGT:AL\t%v:%v",
		ref, alt, locus, gt, al)
}

// writeVCF writes a gzip-compressed VCF file with the standard header
// followed by the given data lines.
func writeVCF(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	for _, line := range append(append([]string(nil), vcfHeader...), lines...) {
		_, err = io.WriteString(gz, line+"\n")
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

// readText returns the decompressed content of a database.
func readText(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

// sampleManifest writes n samples, each with calls for several loci in
// a sample-specific order.
func sampleManifest(t *testing.T, dir string, n int) Manifest {
	t.Helper()
	var manifest Manifest
	for i := 0; i < n; i++ {
		var lines []string
		for j := 0; j < 20; j++ {
			locus := fmt.Sprintf("TR%03d", (j*7+i*3)%20)
			switch j % 4 {
			case 0:
				lines = append(lines, call(locus, "CAGCAG", ".", "0/0", "6,6"))
			case 1:
				lines = append(lines, call(locus, "CAG", "CAGCAGCAG", "0/1", "3,9"))
			case 2:
				lines = append(lines, call(locus, "CAG", "CA,CAGCAG", "1/2", "2,6"))
			default:
				lines = append(lines, call(locus, "CAG", ".", ".", "."))
			}
		}
		sample := fmt.Sprintf("S%02d", i)
		manifest = append(manifest, Entry{Sample: sample, Path: writeVCF(t, dir, sample+".vcf.gz", lines...)})
	}
	return manifest
}

// writeDBText writes a gzip-compressed database with the given content.
func writeDBText(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = io.WriteString(gz, text)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}
