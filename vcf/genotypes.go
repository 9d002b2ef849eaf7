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
	"fmt"
	"strings"
)

func hasComma(alt string) bool {
	return strings.IndexByte(alt, ',') >= 0
}

func violated(gt GenotypeCode, alt string) error {
	return fmt.Errorf("%w: genotype %v does not match ALT %q", ErrMalformedGenotype, gt, alt)
}

// ResolveAlleles maps a genotype code onto the REF and ALT alleles of
// a record. The result is in genotype order.
//
// The no-call genotype yields ErrNoCall. Unknown genotype codes, and
// REF/ALT shapes that contradict the genotype (for example 0/0 with an
// ALT other than "."), yield ErrMalformedGenotype.
func ResolveAlleles(gt GenotypeCode, ref, alt string) ([]string, error) {
	switch gt {
	case HomozygousReference:
		if alt != MissingAlt {
			return nil, violated(gt, alt)
		}
		return []string{ref, ref}, nil
	case HomozygousAlternate:
		if hasComma(alt) {
			return nil, violated(gt, alt)
		}
		return []string{alt, alt}, nil
	case Heterozygous:
		if hasComma(alt) {
			return nil, violated(gt, alt)
		}
		return []string{ref, alt}, nil
	case HeterozygousAlts:
		if !hasComma(alt) {
			return nil, violated(gt, alt)
		}
		return strings.Split(alt, ","), nil
	case HaploidAlternate:
		if hasComma(alt) {
			return nil, violated(gt, alt)
		}
		return []string{alt}, nil
	case HaploidReference:
		if alt != MissingAlt {
			return nil, violated(gt, alt)
		}
		return []string{ref}, nil
	case NoCall:
		return nil, ErrNoCall
	default:
		return nil, fmt.Errorf("%w: unknown genotype %q", ErrMalformedGenotype, gt)
	}
}

// ParseTags zips the colon-separated FORMAT names with the
// colon-separated sample values. Names or values beyond the shorter of
// the two lists are ignored.
func ParseTags(format, values string) Tags {
	names := strings.Split(format, ":")
	vals := strings.Split(values, ":")
	n := len(names)
	if len(vals) < n {
		n = len(vals)
	}
	tags := make(Tags, n)
	for i := 0; i < n; i++ {
		tags[names[i]] = vals[i]
	}
	return tags
}

// ParseLocus extracts the locus identifier from the first entry of an
// INFO column.
func ParseLocus(info string) (string, error) {
	var sc StringScanner
	sc.Reset(info)
	entry, _ := sc.readUntilByte(';')
	if !strings.HasPrefix(entry, LocusPrefix) {
		return "", fmt.Errorf("%w: first INFO entry %q lacks %v", ErrMalformedLocus, entry, LocusPrefix)
	}
	return entry[len(LocusPrefix):], nil
}

// ParseRecord splits a VCF data line into whitespace-delimited fields
// and returns the consumed columns.
func ParseRecord(line string) (record Record, err error) {
	var (
		sc     StringScanner
		fields [NumColumns]string
	)
	sc.Reset(line)
	for i := range fields {
		field, ok := sc.Field()
		if !ok {
			return record, fmt.Errorf("%w: %v fields, need at least %v", ErrMalformedRecordShape, i, NumColumns)
		}
		fields[i] = field
	}
	return Record{
		Ref:    fields[refIdx],
		Alt:    fields[altIdx],
		Info:   fields[infoIdx],
		Format: fields[formatIdx],
		Sample: fields[sampleIdx],
	}, nil
}

// DecodeCall decodes a VCF data line into a Call. A no-call line
// yields ErrNoCall.
func DecodeCall(line string) (call Call, err error) {
	record, err := ParseRecord(line)
	if err != nil {
		return call, err
	}
	locus, err := ParseLocus(record.Info)
	if err != nil {
		return call, err
	}
	alleles, err := ResolveAlleles(record.Genotype(), record.Ref, record.Alt)
	if err != nil {
		return call, err
	}
	return Call{
		Locus:   locus,
		Alleles: alleles,
		Tags:    ParseTags(record.Format, record.Sample),
	}, nil
}
