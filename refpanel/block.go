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

// Package refpanel implements the unique-haplotype block compression
// data structure and the reduced haplotype panel that sequences
// blocks across a chunk. It does not concern itself with how blocks
// were chosen - that is the block-compression encoder's job, external
// to this module - it only consumes the resulting expanded/unique
// maps and per-variant unique-template genotypes.
package refpanel

import (
	"fmt"

	"github.com/refpanel/impute/refsite"
)

// EOV is the sentinel marking an absent haplotype slot in an
// expanded_map: a negative index encodes "no value", the role
// dosage.EOV plays for dosage matrix cells.
const EOV int32 = -1

// VariantRecord is one variant's per-unique-template genotypes within
// a Block, plus the reference-site metadata shared with the target
// panel side.
type VariantRecord struct {
	Site *refsite.Site
	GT   []uint8 // length U; allele {0,1} carried by each unique template
	AC   int64   // block-wide allele count: sum_u cardinalities[u]*GT[u]
}

// Block is a contiguous run of reference variants that share one
// expanded-haplotype -> unique-template map.
type Block struct {
	expandedMap   []int32 // length H; value in [0,U) or EOV
	cardinalities []int32 // length U
	variants      []VariantRecord
	numExpanded   int
	numUnique     int
	numNonSentinel int
}

// NewBlock creates a block from its expanded->unique map. numUnique
// must be at least one greater than the largest non-EOV entry in
// expandedMap.
func NewBlock(expandedMap []int32, numUnique int) (*Block, error) {
	cardinalities := make([]int32, numUnique)
	nonSentinel := 0
	for _, u := range expandedMap {
		if u == EOV {
			continue
		}
		if int(u) < 0 || int(u) >= numUnique {
			return nil, fmt.Errorf("refpanel: expanded map entry %d out of range [0,%d)", u, numUnique)
		}
		cardinalities[u]++
		nonSentinel++
	}
	return &Block{
		expandedMap:    expandedMap,
		cardinalities:  cardinalities,
		numExpanded:    len(expandedMap),
		numUnique:      numUnique,
		numNonSentinel: nonSentinel,
	}, nil
}

// AddVariant appends a variant to the block, computing its allele
// count from the block's cardinalities.
func (b *Block) AddVariant(site *refsite.Site, gt []uint8) error {
	if len(gt) != b.numUnique {
		return fmt.Errorf("refpanel: variant genotype length %d does not match block unique count %d", len(gt), b.numUnique)
	}
	var ac int64
	for u, allele := range gt {
		if allele != 0 && allele != 1 {
			return fmt.Errorf("refpanel: non-binary allele %d for unique template %d", allele, u)
		}
		ac += int64(b.cardinalities[u]) * int64(allele)
	}
	b.variants = append(b.variants, VariantRecord{Site: site, GT: gt, AC: ac})
	return nil
}

// Variants is the block's indexable sequence of per-variant records.
func (b *Block) Variants() []VariantRecord { return b.variants }

// UniqueMap returns the expanded->unique map, length ExpandedHaplotypeSize.
func (b *Block) UniqueMap() []int32 { return b.expandedMap }

// Cardinalities returns |{h : expandedMap[h]==u}| for each u.
func (b *Block) Cardinalities() []int32 { return b.cardinalities }

// ExpandedHaplotypeSize is H, the number of reference haplotypes.
func (b *Block) ExpandedHaplotypeSize() int { return b.numExpanded }

// UniqueHaplotypeSize is U, the number of unique templates.
func (b *Block) UniqueHaplotypeSize() int { return b.numUnique }

// VariantSize is the number of variants covered by this block.
func (b *Block) VariantSize() int { return len(b.variants) }

// NonSentinelCount is H', the number of non-EOV expanded haplotypes.
// Constant across all blocks of one panel.
func (b *Block) NonSentinelCount() int { return b.numNonSentinel }

// ReverseMap builds reverseMap[u] = the physical haplotype indices h
// with expandedMap[h] == u. It is built once per chunk from a block's
// expanded_map.
func (b *Block) ReverseMap() [][]int32 {
	rm := make([][]int32, b.numUnique)
	for u, c := range b.cardinalities {
		if c > 0 {
			rm[u] = make([]int32, 0, c)
		}
	}
	for h, u := range b.expandedMap {
		if u == EOV {
			continue
		}
		rm[u] = append(rm[u], int32(h))
	}
	return rm
}
