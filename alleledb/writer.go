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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/exascience/pargo/pipeline"
	log "github.com/sirupsen/logrus"
	"github.com/willf/bitset"

	"github.com/exascience/alleledb/internal"
	"github.com/exascience/alleledb/vcf"
)

// ErrMissingTag is reported when the AL column is requested and a call
// has no AL tag.
var ErrMissingTag = errors.New("missing FORMAT tag")

// Options configure Write.
type Options struct {
	// AlleleLengths adds the AL tag of each call as a column between
	// the sample and the alleles.
	AlleleLengths bool

	// Parallelism is the number of samples decoded at the same time.
	// Values below 2 stream samples one by one. The output is the same
	// either way.
	Parallelism int

	// CompressionThreads is the number of blocks compressed in
	// parallel.
	CompressionThreads int
}

// SampleReport counts what was read for one sample.
type SampleReport struct {
	Sample  string
	Path    string
	Records int
	NoCalls int
}

// Report summarizes a Write.
type Report struct {
	Samples []SampleReport
	called  *bitset.BitSet
}

func newReport(manifest Manifest) *Report {
	report := &Report{
		Samples: make([]SampleReport, len(manifest)),
		called:  bitset.New(uint(len(manifest))),
	}
	for i, entry := range manifest {
		report.Samples[i] = SampleReport{Sample: entry.Sample, Path: entry.Path}
	}
	return report
}

func (report *Report) add(index int, sample SampleReport) {
	report.Samples[index] = sample
	if sample.Records > 0 {
		report.called.Set(uint(index))
	}
}

// Records returns the number of records written.
func (report *Report) Records() (n int) {
	for _, sample := range report.Samples {
		n += sample.Records
	}
	return n
}

// NoCalls returns the number of no-call lines skipped.
func (report *Report) NoCalls() (n int) {
	for _, sample := range report.Samples {
		n += sample.NoCalls
	}
	return n
}

// SilentSamples returns the samples that produced no records, in
// manifest order.
func (report *Report) SilentSamples() []string {
	var silent []string
	if report.called.Count() == uint(len(report.Samples)) {
		return silent
	}
	for i, sample := range report.Samples {
		if !report.called.Test(uint(i)) {
			silent = append(silent, sample.Sample)
		}
	}
	return silent
}

func (report *Report) log(dbPath string) {
	for _, sample := range report.SilentSamples() {
		log.WithField("sample", sample).Warn("sample has no called loci")
	}
	log.WithFields(log.Fields{
		"path":     dbPath,
		"samples":  len(report.Samples),
		"records":  report.Records(),
		"no-calls": report.NoCalls(),
	}).Info("wrote allele database")
}

// writeSample streams the calls of one sample to w.
func writeSample(entry Entry, w io.Writer, opts Options) (sample SampleReport, err error) {
	sample = SampleReport{Sample: entry.Sample, Path: entry.Path}
	reader, err := vcf.OpenAlleles(entry.Path)
	if err != nil {
		return sample, fmt.Errorf("%w, while opening VCF file for sample %v", err, entry.Sample)
	}
	defer internal.Close(reader, &err)
	var buf []byte
	for reader.Next() {
		call := reader.Call()
		record := Record{Locus: call.Locus, Sample: entry.Sample, Alleles: call.Alleles}
		if opts.AlleleLengths {
			al, ok := call.Tags[vcf.AlleleLengthTag]
			if !ok {
				return sample, fmt.Errorf("%w %v, while reading line %v of VCF file %v for sample %v",
					ErrMissingTag, vcf.AlleleLengthTag, reader.Line(), entry.Path, entry.Sample)
			}
			record.AlleleLengths = al
		}
		buf = record.Append(buf[:0], opts.AlleleLengths)
		if _, err := w.Write(buf); err != nil {
			return sample, err
		}
		sample.Records++
	}
	sample.NoCalls = reader.NoCalls()
	if err := reader.Err(); err != nil {
		return sample, fmt.Errorf("%w, for sample %v", err, entry.Sample)
	}
	log.WithFields(log.Fields{
		"sample":  entry.Sample,
		"path":    entry.Path,
		"records": sample.Records,
	}).Info("processed sample")
	return sample, nil
}

func writeSequential(manifest Manifest, w io.Writer, opts Options, report *Report) error {
	for i, entry := range manifest {
		sample, err := writeSample(entry, w, opts)
		if err != nil {
			return err
		}
		report.add(i, sample)
	}
	return nil
}

type (
	sampleJob struct {
		index int
		entry Entry
	}

	sampleResult struct {
		index  int
		sample SampleReport
		data   []byte
	}

	// manifestSource feeds manifest entries one by one to a pipeline.
	manifestSource struct {
		manifest Manifest
		next     int
		job      *sampleJob
	}
)

// Err implements the corresponding method of pipeline.Source
func (src *manifestSource) Err() error {
	return nil
}

// Prepare implements the corresponding method of pipeline.Source
func (src *manifestSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the corresponding method of pipeline.Source
func (src *manifestSource) Fetch(size int) (fetched int) {
	if src.next >= len(src.manifest) {
		src.job = nil
		return 0
	}
	src.job = &sampleJob{index: src.next, entry: src.manifest[src.next]}
	src.next++
	return 1
}

// Data implements the corresponding method of pipeline.Source
func (src *manifestSource) Data() interface{} {
	return src.job
}

// writeParallel decodes samples concurrently into memory, and writes
// them in manifest order.
func writeParallel(manifest Manifest, w io.Writer, opts Options, report *Report) error {
	var p pipeline.Pipeline
	p.Source(&manifestSource{manifest: manifest})
	p.Add(
		pipeline.LimitedPar(opts.Parallelism, pipeline.Receive(func(_ int, data interface{}) interface{} {
			job := data.(*sampleJob)
			var buf bytes.Buffer
			sample, err := writeSample(job.entry, &buf, opts)
			if err != nil {
				p.SetErr(err)
				return nil
			}
			return &sampleResult{index: job.index, sample: sample, data: buf.Bytes()}
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			result, ok := data.(*sampleResult)
			if !ok || result == nil {
				return nil
			}
			if _, err := w.Write(result.data); err != nil {
				p.SetErr(err)
				return nil
			}
			report.add(result.index, result.sample)
			return nil
		})),
	)
	return internal.RunPipeline(&p)
}

// Write creates or overwrites the gzip-compressed database at dbPath
// with one record per call of every sample in the manifest, in
// manifest order and file order. The database is not sorted.
//
// If an error occurs, dbPath is removed, so that no truncated database
// is left behind.
func Write(manifest Manifest, dbPath string, opts Options) (report *Report, err error) {
	if err = manifest.Validate(); err != nil {
		return nil, err
	}
	out, err := os.Create(dbPath)
	if err != nil {
		return nil, err
	}
	report = newReport(manifest)
	defer func() {
		if err != nil {
			_ = os.Remove(dbPath)
			report = nil
		} else {
			report.log(dbPath)
		}
	}()
	defer internal.Close(out, &err)
	zw, err := internal.NewGzipWriter(out, opts.CompressionThreads)
	if err != nil {
		return nil, err
	}
	defer internal.Close(zw, &err)
	bw := bufio.NewWriterSize(zw, internal.BufferSize)
	defer func() {
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
	}()

	if opts.Parallelism > 1 && len(manifest) > 1 {
		err = writeParallel(manifest, bw, opts, report)
	} else {
		err = writeSequential(manifest, bw, opts, report)
	}
	if err != nil {
		return nil, fmt.Errorf("%w, while writing allele database %v", err, dbPath)
	}
	return report, nil
}
