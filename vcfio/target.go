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
	"strings"

	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/target"
	"github.com/refpanel/impute/utils"
)

// TargetPanel is the parsed contents of a target VCF: one Variant per
// biallelic site (multi-allelic ALT lists are split into one Variant
// per alternate allele) and the sample IDs in column order, two
// haplotype columns per diploid sample.
type TargetPanel struct {
	SampleIDs []string
	Variants  []*target.Variant
}

// ReadTargetVCF parses a target VCF into a TargetPanel. It reads only
// the GT subfield of each sample's FORMAT column; other FORMAT fields
// (DP, GQ, ...) are ignored. Each sample's ploidy (the number of
// alleles its GT subfield carries) must stay the same for every
// variant in the file; a change is a fatal error rather than a
// silently dropped call.
func ReadTargetVCF(r io.Reader) (*TargetPanel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	tp := &TargetPanel{}
	var ploidy []int8
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				tp.SampleIDs = append([]string(nil), fields[9:]...)
			}
			ploidy = make([]int8, len(tp.SampleIDs))
			for i := range ploidy {
				ploidy[i] = -1
			}
			continue
		}
		variants, err := parseTargetLine(line, len(tp.SampleIDs), ploidy)
		if err != nil {
			return nil, err
		}
		tp.Variants = append(tp.Variants, variants...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vcfio: reading target VCF: %w", err)
	}
	return tp, nil
}

func parseTargetLine(line string, numSamples int, ploidy []int8) ([]*target.Variant, error) {
	var sc tabScanner
	sc.reset(line)
	chrom, _ := sc.next()
	posField, _ := sc.next()
	id, _ := sc.next()
	ref, _ := sc.next()
	altField, _ := sc.next()
	sc.next() // QUAL
	sc.next() // FILTER
	sc.next() // INFO
	formatField, _ := sc.next()

	pos := internal.ParseInt(posField, 10, 64)
	gtColumn := gtSubfieldIndex(formatField)

	alts := strings.Split(altField, ",")
	out := make([]*target.Variant, len(alts))
	for i, alt := range alts {
		out[i] = &target.Variant{
			Chrom: utils.Intern(chrom),
			Pos:   pos,
			ID:    id,
			Ref:   ref,
			Alt:   alt,
			InTar: true,
			GT:    make([]int8, 2*numSamples),
		}
	}

	sampleIdx := 0
	for {
		field, ok := sc.next()
		if !ok {
			break
		}
		if err := assignSampleAlleles(out, sampleIdx, field, gtColumn, ploidy, chrom, pos); err != nil {
			return nil, err
		}
		sampleIdx++
	}
	if sampleIdx != numSamples {
		return nil, fmt.Errorf("vcfio: variant at %s:%d has %d sample columns, header declared %d", chrom, pos, sampleIdx, numSamples)
	}
	return out, nil
}

func gtSubfieldIndex(format string) int {
	for i, f := range strings.Split(format, ":") {
		if f == "GT" {
			return i
		}
	}
	return 0
}

// assignSampleAlleles decodes one sample's GT subfield and writes its
// two haplotype columns into every split biallelic Variant: for
// alternate allele k (1-indexed in the original multi-allelic call),
// only out[k-1]'s haplotype is set to 1; every other split variant
// sees that haplotype as 0 (an alternate-allele call for allele j does
// not indicate anything about allele k's presence).
//
// ploidy[sampleIdx] tracks the allele count this sample has shown so
// far in the file; a field whose allele count disagrees with it is a
// ploidy change and a fatal error, not a missing call.
func assignSampleAlleles(out []*target.Variant, sampleIdx int, field string, gtColumn int, ploidy []int8, chrom string, pos int64) error {
	sub := strings.Split(field, ":")
	if gtColumn >= len(sub) {
		markMissing(out, sampleIdx)
		return nil
	}
	gt := sub[gtColumn]
	sep := "/"
	if strings.Contains(gt, "|") {
		sep = "|"
	}
	alleles := strings.Split(gt, sep)
	n := int8(len(alleles))
	if ploidy[sampleIdx] == -1 {
		ploidy[sampleIdx] = n
	} else if ploidy[sampleIdx] != n {
		return fmt.Errorf("vcfio: sample index %d ploidy changed from %d to %d at %s:%d", sampleIdx, ploidy[sampleIdx], n, chrom, pos)
	}
	if len(alleles) != 2 {
		markMissing(out, sampleIdx)
		return nil
	}
	for hapOffset, a := range alleles {
		h := sampleIdx*2 + hapOffset
		if a == "." {
			for _, v := range out {
				v.GT[h] = target.Missing
			}
			continue
		}
		n := int(internal.ParseInt(a, 10, 32))
		for k, v := range out {
			if n == k+1 {
				v.GT[h] = 1
			} else {
				v.GT[h] = 0
			}
		}
	}
	return nil
}

func markMissing(out []*target.Variant, sampleIdx int) {
	for _, v := range out {
		v.GT[sampleIdx*2] = target.Missing
		v.GT[sampleIdx*2+1] = target.Missing
	}
}
