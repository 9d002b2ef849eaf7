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

package vcf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{
	"##fileformat=VCFv4.2",
	`##INFO=<ID=TRID,Number=1,Type=String,Description="Tandem repeat ID">`,
	`##FORMAT=<ID=AL,Number=.,Type=Integer,Description="Length of each allele">`,
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG002",
}

func writeGzipVCF(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(file)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())
	return path
}

func collect(t *testing.T, alleles *AlleleReader) (calls []Call) {
	t.Helper()
	for alleles.Next() {
		calls = append(calls, alleles.Call())
	}
	return calls
}

func TestAlleleReader(t *testing.T) {
	lines := append(append([]string{}, testHeader...),
		dataLine("A", "T", "TRID=T1;END=5", "GT:AL", "0/1:1,1"),
		dataLine("CAG", ".", "TRID=T2", "GT:AL", ".:."),
		dataLine("CAG", ".", "TRID=T3", "GT:AL", "0/0:3,3"),
		"# a late comment\twith\tTRID=T9\tfields",
		dataLine("C", "CA", "TRID=T4", "GT:AL", "1:2"),
	)
	path := writeGzipVCF(t, "sample.vcf.gz", lines...)

	alleles, err := OpenAlleles(path)
	require.NoError(t, err)
	defer alleles.Close()

	calls := collect(t, alleles)
	require.NoError(t, alleles.Err())
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Locus: "T1", Alleles: []string{"A", "T"}, Tags: Tags{"GT": "0/1", "AL": "1,1"}}, calls[0])
	assert.Equal(t, "T3", calls[1].Locus)
	assert.Equal(t, []string{"CAG", "CAG"}, calls[1].Alleles)
	assert.Equal(t, []string{"CA"}, calls[2].Alleles)
	assert.Equal(t, 1, alleles.NoCalls())
	assert.Equal(t, len(lines), alleles.Line())
	assert.False(t, alleles.Next())
}

func TestAlleleReaderHeadersOnly(t *testing.T) {
	path := writeGzipVCF(t, "empty.vcf.gz", "##fileformat=VCFv4.2", "#CHROM\tPOS", "#TRID=T1 0/1 not a record")
	alleles, err := OpenAlleles(path)
	require.NoError(t, err)
	assert.Empty(t, collect(t, alleles))
	assert.NoError(t, alleles.Err())
	assert.NoError(t, alleles.Close())
}

func TestAlleleReaderPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.vcf")
	content := strings.Join(append(append([]string{}, testHeader...), dataLine("A", "G", "TRID=T1", "GT", "1/1")), "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))

	alleles, err := OpenAlleles(path)
	require.NoError(t, err)
	calls := collect(t, alleles)
	require.NoError(t, alleles.Err())
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"G", "G"}, calls[0].Alleles)
}

func TestAlleleReaderMalformed(t *testing.T) {
	tests := []struct {
		line     string
		expected error
	}{
		{dataLine("A", "T", "TRID=T2", "GT", "9/9"), ErrMalformedGenotype},
		{dataLine("A", "T", "TRID=T2", "GT", "0/0"), ErrMalformedGenotype},
		{dataLine("A", "T", "END=3", "GT", "0/1"), ErrMalformedLocus},
		{"chr1\t1\t.\tA\tT\t.\tPASS\tTRID=T2\tGT", ErrMalformedRecordShape},
	}
	for _, test := range tests {
		path := writeGzipVCF(t, "bad.vcf.gz", testHeader[0], dataLine("A", "T", "TRID=T1", "GT", "0/1"), test.line)
		alleles, err := OpenAlleles(path)
		require.NoError(t, err)
		calls := collect(t, alleles)
		assert.Len(t, calls, 1)

		err = alleles.Err()
		require.ErrorIs(t, err, test.expected)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, path, parseErr.Path)
		assert.Equal(t, 3, parseErr.Line)
		assert.Equal(t, test.line, parseErr.Text)
		assert.Contains(t, err.Error(), path)
		assert.NoError(t, alleles.Close())
	}
}

type closeRecorder struct {
	*strings.Reader
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestAlleleReaderEarlyClose(t *testing.T) {
	input := &closeRecorder{Reader: strings.NewReader(strings.Join([]string{
		dataLine("A", "T", "TRID=T1", "GT", "0/1"),
		dataLine("A", "T", "TRID=T2", "GT", "0/1"),
	}, "\n"))}
	alleles := NewAlleleReader(input, "memory")
	require.True(t, alleles.Next())
	assert.Equal(t, "T1", alleles.Call().Locus)
	require.NoError(t, alleles.Close())
	require.NoError(t, alleles.Close())
	assert.Equal(t, 1, input.closed)
	assert.False(t, alleles.Next())
}

func TestAlleleReaderClosesOnExhaustion(t *testing.T) {
	input := &closeRecorder{Reader: strings.NewReader(dataLine("A", "T", "TRID=T1", "GT", "0/1") + "\n")}
	alleles := NewAlleleReader(input, "memory")
	assert.Len(t, collect(t, alleles), 1)
	assert.Equal(t, 1, input.closed)
	require.NoError(t, alleles.Close())
	assert.Equal(t, 1, input.closed)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := OpenAlleles(filepath.Join(t.TempDir(), "missing.vcf.gz"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
