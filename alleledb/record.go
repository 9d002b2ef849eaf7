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
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is reported for database lines that do not have
// three or four tab-separated fields.
var ErrMalformedRecord = errors.New("malformed database record")

// Record is one database line: the alleles called for a sample at a
// locus.
type Record struct {
	Locus  string
	Sample string

	// AlleleLengths holds the AL tag of four-column databases.
	AlleleLengths string

	Alleles []string
}

// Append formats the record as a database line, including the final
// newline, and appends it to buf. The AL column is only written when
// alleleLengths is true.
func (r Record) Append(buf []byte, alleleLengths bool) []byte {
	buf = append(buf, r.Locus...)
	buf = append(buf, '\t')
	buf = append(buf, r.Sample...)
	buf = append(buf, '\t')
	if alleleLengths {
		buf = append(buf, r.AlleleLengths...)
		buf = append(buf, '\t')
	}
	for i, allele := range r.Alleles {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, allele...)
	}
	return append(buf, '\n')
}

// ParseRecord parses a three- or four-column database line. A trailing
// newline is ignored.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	fields := strings.Split(line, "\t")
	var record Record
	switch len(fields) {
	case 3:
		record = Record{Locus: fields[0], Sample: fields[1], Alleles: strings.Split(fields[2], ",")}
	case 4:
		record = Record{Locus: fields[0], Sample: fields[1], AlleleLengths: fields[2], Alleles: strings.Split(fields[3], ",")}
	default:
		return Record{}, fmt.Errorf("%w: %v fields in %q", ErrMalformedRecord, len(fields), line)
	}
	return record, nil
}
