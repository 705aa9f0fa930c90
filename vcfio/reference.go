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
	"strconv"
	"strings"

	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/refpanel"
	"github.com/refpanel/impute/refsite"
	"github.com/refpanel/impute/utils"
)

// The reference-panel block-sentinel format is a plain tab-separated
// text stream (typically bgzf-compressed on disk, see AutoDecompress):
//
//	##<free-form meta, ignored>
//	>	<numUnique>	<expandedMap CSV, "." for an absent haplotype slot>
//	<chrom>	<pos>	<id>	<ref>	<alt>	<err>	<recom>	<gt CSV, one 0/1 per unique template>
//	...
//
// A line starting with ">" is the block sentinel: it starts a new
// Block and gives its expanded->unique haplotype map. Every following
// variant line belongs to that block until the next sentinel.

// ReadReferencePanel parses a reference panel in the block-sentinel
// format into a Panel ready for hmm.TraverseForward/TraverseBackward.
func ReadReferencePanel(r io.Reader) (*refpanel.Panel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var blocks []*refpanel.Block
	var current *refpanel.Block

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			var sc tabScanner
			sc.reset(line[1:])
			sc.next() // drop the leading empty field before the first tab
			numUniqueField, _ := sc.next()
			mapField, _ := sc.next()
			numUnique, err := strconv.Atoi(strings.TrimSpace(numUniqueField))
			if err != nil {
				return nil, fmt.Errorf("vcfio: malformed block sentinel %q: %w", line, err)
			}
			expandedMap, err := parseExpandedMap(mapField)
			if err != nil {
				return nil, fmt.Errorf("vcfio: malformed block sentinel %q: %w", line, err)
			}
			b, err := refpanel.NewBlock(expandedMap, numUnique)
			if err != nil {
				return nil, err
			}
			current = b
			blocks = append(blocks, b)
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("vcfio: variant line before any block sentinel: %q", line)
		}
		site, gt, err := parseReferenceVariant(line, current.UniqueHaplotypeSize())
		if err != nil {
			return nil, err
		}
		if err := current.AddVariant(site, gt); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vcfio: reading reference panel: %w", err)
	}
	return refpanel.NewPanel(blocks)
}

func parseExpandedMap(field string) ([]int32, error) {
	parts := strings.Split(field, ",")
	m := make([]int32, len(parts))
	for i, p := range parts {
		if p == "." {
			m[i] = refpanel.EOV
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("expanded map entry %q: %w", p, err)
		}
		m[i] = int32(v)
	}
	return m, nil
}

func parseReferenceVariant(line string, numUnique int) (*refsite.Site, []uint8, error) {
	var sc tabScanner
	sc.reset(line)
	chrom, _ := sc.next()
	posField, _ := sc.next()
	id, _ := sc.next()
	ref, _ := sc.next()
	alt, _ := sc.next()
	errField, _ := sc.next()
	recomField, _ := sc.next()
	gtField := sc.rest()

	site := &refsite.Site{
		Chrom: utils.Intern(chrom),
		Pos:   internal.ParseInt(posField, 10, 64),
		ID:    id,
		Ref:   ref,
		Alt:   alt,
		Err:   internal.ParseFloat(errField, 64),
		Recom: internal.ParseFloat(recomField, 64),
	}
	if err := site.Validate(); err != nil {
		return nil, nil, err
	}

	parts := strings.Split(gtField, ",")
	if len(parts) != numUnique {
		return nil, nil, fmt.Errorf("vcfio: variant at %s:%d has %d genotypes, block expects %d", chrom, site.Pos, len(parts), numUnique)
	}
	gt := make([]uint8, numUnique)
	for i, p := range parts {
		switch p {
		case "0":
			gt[i] = 0
		case "1":
			gt[i] = 1
		default:
			return nil, nil, fmt.Errorf("vcfio: non-binary reference allele %q at %s:%d", p, chrom, site.Pos)
		}
	}
	return site, gt, nil
}

// WriteReferencePanel serializes a Panel back into the block-sentinel
// format, for tooling that needs to round-trip a chunk (e.g. tests, or
// a debugging dump alongside --compress-reference).
func WriteReferencePanel(w io.Writer, panel *refpanel.Panel) error {
	bw := bufio.NewWriter(w)
	for _, block := range panel.Blocks {
		m := block.UniqueMap()
		fields := make([]string, len(m))
		for i, u := range m {
			if u == refpanel.EOV {
				fields[i] = "."
			} else {
				fields[i] = strconv.Itoa(int(u))
			}
		}
		if _, err := fmt.Fprintf(bw, ">\t%d\t%s\n", block.UniqueHaplotypeSize(), strings.Join(fields, ",")); err != nil {
			return err
		}
		for _, v := range block.Variants() {
			gtFields := make([]string, len(v.GT))
			for i, g := range v.GT {
				gtFields[i] = strconv.Itoa(int(g))
			}
			if _, err := fmt.Fprintf(bw, "%s\t%d\t%s\t%s\t%s\t%g\t%g\t%s\n",
				string(*v.Site.Chrom), v.Site.Pos, v.Site.ID, v.Site.Ref, v.Site.Alt,
				v.Site.Err, v.Site.Recom, strings.Join(gtFields, ",")); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
