// impute: a reference-panel HMM genotype imputation engine.
// Copyright (c) 2026 the impute authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.

package vcfio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/refpanel/impute/dosage"
	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/refpanel"
)

// OutputFormat selects which per-sample FORMAT fields WriteDosages
// emits.
type OutputFormat struct {
	GT  bool
	DS  bool
	HDS bool
	GP  bool
	SD  bool // per-sample dosage standard deviation
}

// DefaultOutputFormat is GT and DS only.
func DefaultOutputFormat() OutputFormat {
	return OutputFormat{GT: true, DS: true}
}

func writeVCFHeader(bw *bufio.Writer, sampleIDs []string, format OutputFormat) {
	fmt.Fprintln(bw, "##fileformat=VCFv4.3")
	fmt.Fprintln(bw, `##INFO=<ID=AF,Number=1,Type=Float,Description="Reference allele frequency">`)
	fmt.Fprintln(bw, `##INFO=<ID=R2,Number=1,Type=Float,Description="Estimated imputation r-squared">`)
	if format.GT {
		fmt.Fprintln(bw, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	}
	if format.DS {
		fmt.Fprintln(bw, `##FORMAT=<ID=DS,Number=1,Type=Float,Description="Estimated alt allele dosage">`)
	}
	if format.HDS {
		fmt.Fprintln(bw, `##FORMAT=<ID=HDS,Number=2,Type=Float,Description="Estimated per-haplotype alt allele dosage">`)
	}
	if format.GP {
		fmt.Fprintln(bw, `##FORMAT=<ID=GP,Number=3,Type=Float,Description="Genotype posterior probabilities">`)
	}
	if format.SD {
		fmt.Fprintln(bw, `##FORMAT=<ID=SD,Number=1,Type=Float,Description="Dosage standard deviation">`)
	}

	header := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}
	header = append(header, sampleIDs...)
	fmt.Fprintln(bw, strings.Join(header, "\t"))
}

// WriteDosageBatchRows spools one sample batch's per-variant FORMAT
// fields to w, one line per full-panel variant in panel order, with
// no header or fixed VCF columns. This is the per-sample-batch temp
// file --temp-buffer spools to disk: the caller creates it with a
// name that is unlinked immediately after opening, keeping the handle
// live only long enough for MergeDosageBatches to read it back.
func WriteDosageBatchRows(w io.Writer, panel *refpanel.Panel, results *dosage.Results, format OutputFormat) error {
	bw := bufio.NewWriter(w)
	numSamples := results.Dosages.Cols() / 2

	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)

	for bi, block := range panel.Blocks {
		for wi := range block.Variants() {
			row := panel.GlobalIndex(bi, wi)
			buf = buf[:0]
			for s := 0; s < numSamples; s++ {
				if s > 0 {
					buf = append(buf, '\t')
				}
				d1 := hapDosage(results.Dosages, row, 2*s)
				d2 := hapDosage(results.Dosages, row, 2*s+1)
				buf = appendSampleField(buf, d1, d2, format)
			}
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// MergeDosageBatches concatenates the per-sample-batch spools written
// by WriteDosageBatchRows back into one VCF, in batch order, at chunk
// end. The fixed columns (CHROM..FORMAT, with AF/R2 in INFO) are
// written once per row here: AF is the reference panel's allele
// frequency (AC / H') and R2 comes from rsq, which the caller computed
// over the whole cohort rather than per batch.
func MergeDosageBatches(w io.Writer, panel *refpanel.Panel, sampleIDBatches [][]string, batchSpools []io.Reader, rsq []float64, format OutputFormat) error {
	var allSampleIDs []string
	for _, b := range sampleIDBatches {
		allSampleIDs = append(allSampleIDs, b...)
	}

	bw := bufio.NewWriter(w)
	writeVCFHeader(bw, allSampleIDs, format)
	formatKey := formatColumnString(format)

	scanners := make([]*bufio.Scanner, len(batchSpools))
	for i, r := range batchSpools {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1<<24)
		scanners[i] = sc
	}

	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)

	for bi, block := range panel.Blocks {
		for wi, v := range block.Variants() {
			row := panel.GlobalIndex(bi, wi)
			af := float64(v.AC) / float64(block.NonSentinelCount())

			buf = buf[:0]
			buf = append(buf, string(*v.Site.Chrom)...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, v.Site.Pos, 10)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.ID...)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.Ref...)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.Alt...)
			buf = append(buf, "\t.\t.\tAF="...)
			buf = strconv.AppendFloat(buf, af, 'f', 3, 64)
			if rsq != nil && row < len(rsq) && rsq[row] >= 0 {
				buf = append(buf, ";R2="...)
				buf = strconv.AppendFloat(buf, rsq[row], 'f', 3, 64)
			}
			buf = append(buf, '\t')
			buf = append(buf, formatKey...)

			for _, sc := range scanners {
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return fmt.Errorf("vcfio: merge: batch spool read error at row %d: %w", row, err)
					}
					return fmt.Errorf("vcfio: merge: batch spool ended early at row %d", row)
				}
				buf = append(buf, '\t')
				buf = append(buf, sc.Bytes()...)
			}
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteDosages streams one VCF line per full-panel variant, columns
// in sampleIDs order, using results.Dosages for the diploid pair of
// haplotype columns (2*sample, 2*sample+1). rsq is an optional
// per-variant imputation quality score aligned to panel row index; a
// nil rsq or a negative entry omits the R2 INFO key for that row.
func WriteDosages(w io.Writer, panel *refpanel.Panel, sampleIDs []string, results *dosage.Results, rsq []float64, format OutputFormat) error {
	bw := bufio.NewWriter(w)
	writeVCFHeader(bw, sampleIDs, format)
	formatKey := formatColumnString(format)

	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)

	for bi, block := range panel.Blocks {
		for wi, v := range block.Variants() {
			row := panel.GlobalIndex(bi, wi)
			af := float64(v.AC) / float64(block.NonSentinelCount())

			buf = buf[:0]
			buf = append(buf, string(*v.Site.Chrom)...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, v.Site.Pos, 10)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.ID...)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.Ref...)
			buf = append(buf, '\t')
			buf = append(buf, v.Site.Alt...)
			buf = append(buf, "\t.\t.\tAF="...)
			buf = strconv.AppendFloat(buf, af, 'f', 3, 64)
			if rsq != nil && row < len(rsq) && rsq[row] >= 0 {
				buf = append(buf, ";R2="...)
				buf = strconv.AppendFloat(buf, rsq[row], 'f', 3, 64)
			}
			buf = append(buf, '\t')
			buf = append(buf, formatKey...)

			for s := 0; s < len(sampleIDs); s++ {
				d1 := hapDosage(results.Dosages, row, 2*s)
				d2 := hapDosage(results.Dosages, row, 2*s+1)
				buf = append(buf, '\t')
				buf = appendSampleField(buf, d1, d2, format)
			}
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func hapDosage(m dosage.Matrix, row, col int) float64 {
	if col >= m.Cols() {
		return 0
	}
	v := m.Get(row, col)
	if v == dosage.EOV {
		return 0
	}
	return float64(v)
}

func formatColumnString(f OutputFormat) string {
	var keys []string
	if f.GT {
		keys = append(keys, "GT")
	}
	if f.DS {
		keys = append(keys, "DS")
	}
	if f.HDS {
		keys = append(keys, "HDS")
	}
	if f.GP {
		keys = append(keys, "GP")
	}
	if f.SD {
		keys = append(keys, "SD")
	}
	return strings.Join(keys, ":")
}

// appendSampleField appends one sample's colon-separated FORMAT fields
// to buf, in the order formatColumnString lists them, avoiding the
// per-field string allocations a fmt.Sprintf/strings.Join pipeline
// would cost on this per-variant, per-sample hot path.
func appendSampleField(buf []byte, d1, d2 float64, f OutputFormat) []byte {
	first := true
	sep := func() {
		if !first {
			buf = append(buf, ':')
		}
		first = false
	}
	if f.GT {
		sep()
		buf = strconv.AppendInt(buf, int64(hardCall(d1)), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(hardCall(d2)), 10)
	}
	if f.DS {
		sep()
		buf = strconv.AppendFloat(buf, d1+d2, 'f', 3, 64)
	}
	if f.HDS {
		sep()
		buf = strconv.AppendFloat(buf, d1, 'f', 3, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, d2, 'f', 3, 64)
	}
	if f.GP {
		sep()
		p0 := (1 - d1) * (1 - d2)
		p1 := d1*(1-d2) + (1-d1)*d2
		p2 := d1 * d2
		buf = strconv.AppendFloat(buf, p0, 'f', 3, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p1, 'f', 3, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p2, 'f', 3, 64)
	}
	if f.SD {
		sep()
		buf = strconv.AppendFloat(buf, dosageSD(d1, d2), 'f', 3, 64)
	}
	return buf
}

// dosageSD approximates the standard deviation of the diploid dosage
// d1+d2 by treating each haplotype's dosage as an independent
// Bernoulli variable.
func dosageSD(d1, d2 float64) float64 {
	return math.Sqrt(d1*(1-d1) + d2*(1-d2))
}

func hardCall(d float64) int {
	if d >= 0.5 {
		return 1
	}
	return 0
}
