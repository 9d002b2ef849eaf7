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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// ErrManifest is reported for invalid manifests.
var ErrManifest = errors.New("invalid manifest")

type (
	// Entry names the VCF file of one sample.
	Entry struct {
		Sample string
		Path   string
	}

	// Manifest lists the samples of a database. Samples are written in
	// manifest order, which is also the order of records for the same
	// locus after sorting.
	Manifest []Entry
)

// Validate checks that sample names are unique and usable as a
// database column, and that every sample has a path.
func (m Manifest) Validate() error {
	seen := make(map[string]bool, len(m))
	for i, entry := range m {
		switch {
		case entry.Sample == "":
			return fmt.Errorf("%w: entry %v has no sample name", ErrManifest, i+1)
		case strings.ContainsAny(entry.Sample, "\t\n\r"):
			return fmt.Errorf("%w: sample name %q contains a tab or newline", ErrManifest, entry.Sample)
		case entry.Path == "":
			return fmt.Errorf("%w: sample %v has no VCF path", ErrManifest, entry.Sample)
		case seen[entry.Sample]:
			return fmt.Errorf("%w: duplicate sample %v", ErrManifest, entry.Sample)
		}
		seen[entry.Sample] = true
	}
	return nil
}

// ParseManifestYAML parses a mapping from sample names to VCF paths.
// JSON objects are accepted as well. Mapping order is preserved.
func ParseManifestYAML(data []byte) (Manifest, error) {
	var slice yaml.MapSlice
	if err := yaml.Unmarshal(data, &slice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	manifest := make(Manifest, 0, len(slice))
	for _, item := range slice {
		path, ok := item.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: path of sample %v is not a string", ErrManifest, item.Key)
		}
		manifest = append(manifest, Entry{Sample: fmt.Sprint(item.Key), Path: path})
	}
	return manifest, nil
}

// ParseManifestTSV parses lines of the form "sample\tpath". Empty lines
// and lines starting with # are ignored.
func ParseManifestTSV(r io.Reader) (Manifest, error) {
	var manifest Manifest
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %v has %v fields, need 2", ErrManifest, lineNo, len(fields))
		}
		manifest = append(manifest, Entry{Sample: fields[0], Path: fields[1]})
	}
	return manifest, scanner.Err()
}

// LoadManifest reads a manifest file. Files ending in .tsv or .txt are
// parsed with ParseManifestTSV, all others with ParseManifestYAML.
// Relative VCF paths are resolved against the directory of the
// manifest.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		manifest, err = ParseManifestTSV(bytes.NewReader(data))
	default:
		manifest, err = ParseManifestYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w, while loading manifest %v", err, path)
	}
	dir := filepath.Dir(path)
	for i := range manifest {
		if p := manifest[i].Path; p != "" && !filepath.IsAbs(p) {
			manifest[i].Path = filepath.Join(dir, p)
		}
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("%w, while loading manifest %v", err, path)
	}
	return manifest, nil
}
