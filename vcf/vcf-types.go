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
	"fmt"
)

// Column indices of the VCF data line fields that are consumed.
const (
	refIdx    = 3
	altIdx    = 4
	infoIdx   = 7
	formatIdx = 8
	sampleIdx = 9

	// NumColumns is the minimum number of fields of a data line
	// that carries a sample column.
	NumColumns = sampleIdx + 1
)

// Commonly used VCF entries.
const (
	// LocusPrefix prefixes the locus identifier in the first INFO entry.
	LocusPrefix = "TRID="

	// AlleleLengthTag is the FORMAT tag for allele lengths.
	AlleleLengthTag = "AL"

	// MissingAlt is the ALT value of a record without alternate alleles.
	MissingAlt = "."

	headerPrefix = '#'
)

// GenotypeCode is the GT entry of a sample column.
type GenotypeCode string

// The supported genotype codes.
const (
	HomozygousReference GenotypeCode = "0/0"
	Heterozygous        GenotypeCode = "0/1"
	HomozygousAlternate GenotypeCode = "1/1"
	HeterozygousAlts    GenotypeCode = "1/2"
	HaploidReference    GenotypeCode = "0"
	HaploidAlternate    GenotypeCode = "1"
	NoCall              GenotypeCode = "."
)

// Errors reported while decoding VCF data lines.
var (
	// ErrMalformedGenotype is reported for unknown genotype codes, and
	// for known codes whose REF/ALT shape violates their precondition.
	ErrMalformedGenotype = errors.New("malformed genotype")

	// ErrMalformedRecordShape is reported for data lines without a
	// sample column.
	ErrMalformedRecordShape = errors.New("malformed record shape")

	// ErrMalformedLocus is reported when the first INFO entry does not
	// carry the TRID= prefix.
	ErrMalformedLocus = errors.New("malformed locus")

	// ErrNoCall is returned by ResolveAlleles for the no-call genotype.
	// It is not a failure: readers skip such records.
	ErrNoCall = errors.New("no call")
)

type (
	// Tags maps FORMAT tag names to the sample's values.
	Tags map[string]string

	// Record holds the columns of a VCF data line that are consumed.
	Record struct {
		Ref    string
		Alt    string
		Info   string
		Format string
		Sample string
	}

	// Call is the decoded content of one VCF data line: the locus, the
	// alleles called for the sample in genotype order, and the
	// sample's FORMAT tags.
	Call struct {
		Locus   string
		Alleles []string // one entry for haploid calls, never padded
		Tags    Tags
	}

	// ParseError locates a decoding failure in a VCF file.
	ParseError struct {
		Path string
		Line int
		Text string
		Err  error
	}
)

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v, while parsing line %v of VCF file %v: %q", e.Err, e.Line, e.Path, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Genotype returns the genotype code of the record, the first
// colon-separated entry of the sample column.
func (r Record) Genotype() GenotypeCode {
	var sc StringScanner
	sc.Reset(r.Sample)
	gt, _ := sc.readUntilByte(':')
	return GenotypeCode(gt)
}

// Diploid reports whether the call carries two alleles.
func (c Call) Diploid() bool {
	return len(c.Alleles) == 2
}
