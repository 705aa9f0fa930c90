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

package refpanel

import (
	"fmt"

	"github.com/refpanel/impute/refsite"
)

// Panel is an ordered sequence of blocks with cumulative variant
// offsets. Its lifetime is scoped to one chunk; it is built once and
// never mutated during imputation, so it can be shared read-only
// across worker goroutines without synchronization - all references
// into it are indices, never pointers, so worker state never outlives
// it by construction.
type Panel struct {
	Blocks       []*Block
	BlockOffsets []int // cumulative variant offset per block
}

// siteKey identifies a variant for the block-boundary dedup rule: if
// the first variant of block b+1 equals the last variant of block b,
// the panel builder drops the duplicate.
func siteKey(s *refsite.Site) (interface{}, int64, string, string) {
	return s.Chrom, s.Pos, s.Ref, s.Alt
}

// NewPanel assembles a Panel from a sequence of blocks in genomic
// order, dropping any block's leading variant that duplicates the
// previous block's trailing variant.
func NewPanel(blocks []*Block) (*Panel, error) {
	p := &Panel{
		Blocks:       make([]*Block, 0, len(blocks)),
		BlockOffsets: make([]int, 0, len(blocks)),
	}
	offset := 0
	var prevLastSite *refsite.Site
	for bi, b := range blocks {
		if prevLastSite != nil && len(b.variants) > 0 {
			first := b.variants[0].Site
			fChrom, fPos, fRef, fAlt := siteKey(first)
			pChrom, pPos, pRef, pAlt := siteKey(prevLastSite)
			if fChrom == pChrom && fPos == pPos && fRef == pRef && fAlt == pAlt {
				b.variants = b.variants[1:]
			}
		}
		if bi > 0 && b.numNonSentinel != p.Blocks[0].numNonSentinel {
			return nil, fmt.Errorf("refpanel: block %d has H'=%d, expected %d (constant across a panel)", bi, b.numNonSentinel, p.Blocks[0].numNonSentinel)
		}
		p.Blocks = append(p.Blocks, b)
		p.BlockOffsets = append(p.BlockOffsets, offset)
		offset += len(b.variants)
		if len(b.variants) > 0 {
			prevLastSite = b.variants[len(b.variants)-1].Site
		}
	}
	return p, nil
}

// VariantSize is the total number of variants across all blocks.
func (p *Panel) VariantSize() int {
	if len(p.Blocks) == 0 {
		return 0
	}
	last := len(p.Blocks) - 1
	return p.BlockOffsets[last] + p.Blocks[last].VariantSize()
}

// NonSentinelCount is H', constant across every block in the panel.
func (p *Panel) NonSentinelCount() int {
	if len(p.Blocks) == 0 {
		return 0
	}
	return p.Blocks[0].NonSentinelCount()
}

// GlobalIndex converts a (block, within-block) address to a flat
// variant index.
func (p *Panel) GlobalIndex(blockIdx, withinBlockIdx int) int {
	return p.BlockOffsets[blockIdx] + withinBlockIdx
}

// Site returns the reference-site metadata of the variant at the
// given (block, within-block) address.
func (p *Panel) Site(blockIdx, withinBlockIdx int) *refsite.Site {
	return p.Blocks[blockIdx].variants[withinBlockIdx].Site
}

// Iterator addresses a variant within a Panel by (block index,
// within-block index) and supports moving forward or backward across
// block boundaries. Panel.Begin positions it at the first variant and
// Panel.End at the last; moving Next() past the last variant makes it
// AfterEnd, and moving Prev() past the first variant makes it
// BeforeStart exactly once, so a backward pass can use it as its loop
// terminator.
type Iterator struct {
	panel     *Panel
	blockIdx  int
	withinIdx int
	state     iterState
}

type iterState int

const (
	iterValid iterState = iota
	iterBeforeStart
	iterAfterEnd
)

// Begin returns an iterator positioned at the panel's first variant.
// If the panel has no variants, it returns an AfterEnd iterator.
func (p *Panel) Begin() *Iterator {
	it := &Iterator{panel: p}
	for bi, b := range p.Blocks {
		if b.VariantSize() > 0 {
			it.blockIdx = bi
			it.withinIdx = 0
			it.state = iterValid
			return it
		}
	}
	it.state = iterAfterEnd
	return it
}

// End returns an iterator positioned at the panel's last variant.
func (p *Panel) End() *Iterator {
	it := &Iterator{panel: p}
	for bi := len(p.Blocks) - 1; bi >= 0; bi-- {
		b := p.Blocks[bi]
		if b.VariantSize() > 0 {
			it.blockIdx = bi
			it.withinIdx = b.VariantSize() - 1
			it.state = iterValid
			return it
		}
	}
	it.state = iterBeforeStart
	return it
}

// Valid reports whether the iterator addresses a real variant.
func (it *Iterator) Valid() bool { return it.state == iterValid }

// BeforeStart reports whether the iterator has been walked back past
// the first variant of the panel.
func (it *Iterator) BeforeStart() bool { return it.state == iterBeforeStart }

// AfterEnd reports whether the iterator has been walked forward past
// the last variant of the panel.
func (it *Iterator) AfterEnd() bool { return it.state == iterAfterEnd }

// BlockIndex is the current block index.
func (it *Iterator) BlockIndex() int { return it.blockIdx }

// WithinBlockIndex is the current within-block variant index.
func (it *Iterator) WithinBlockIndex() int { return it.withinIdx }

// GlobalIndex is the flat variant index of the iterator's position.
// It is only meaningful when Valid().
func (it *Iterator) GlobalIndex() int {
	return it.panel.GlobalIndex(it.blockIdx, it.withinIdx)
}

// Block returns the block the iterator currently addresses.
func (it *Iterator) Block() *Block { return it.panel.Blocks[it.blockIdx] }

// Variant returns the variant record the iterator currently addresses.
func (it *Iterator) Variant() *VariantRecord {
	return &it.panel.Blocks[it.blockIdx].variants[it.withinIdx]
}

// AtBlockStart reports whether the iterator addresses the first
// variant of its current block (i.e. the next Prev() call crosses a
// block boundary).
func (it *Iterator) AtBlockStart() bool { return it.withinIdx == 0 }

// AtBlockEnd reports whether the iterator addresses the last variant
// of its current block (i.e. the next Next() call crosses a block
// boundary).
func (it *Iterator) AtBlockEnd() bool {
	return it.withinIdx == it.panel.Blocks[it.blockIdx].VariantSize()-1
}

// Next advances the iterator by one variant, crossing block
// boundaries as needed. It returns false once the iterator has moved
// past the last variant.
func (it *Iterator) Next() bool {
	if it.state == iterBeforeStart {
		*it = *it.panel.Begin()
		return it.state == iterValid
	}
	if it.state != iterValid {
		return false
	}
	blocks := it.panel.Blocks
	if it.withinIdx+1 < blocks[it.blockIdx].VariantSize() {
		it.withinIdx++
		return true
	}
	for bi := it.blockIdx + 1; bi < len(blocks); bi++ {
		if blocks[bi].VariantSize() > 0 {
			it.blockIdx = bi
			it.withinIdx = 0
			return true
		}
	}
	it.state = iterAfterEnd
	return false
}

// Prev retreats the iterator by one variant, crossing block
// boundaries as needed. It returns false once the iterator has moved
// before the first variant.
func (it *Iterator) Prev() bool {
	if it.state == iterAfterEnd {
		*it = *it.panel.End()
		return it.state == iterValid
	}
	if it.state != iterValid {
		return false
	}
	if it.withinIdx > 0 {
		it.withinIdx--
		return true
	}
	blocks := it.panel.Blocks
	for bi := it.blockIdx - 1; bi >= 0; bi-- {
		if blocks[bi].VariantSize() > 0 {
			it.blockIdx = bi
			it.withinIdx = blocks[bi].VariantSize() - 1
			return true
		}
	}
	it.state = iterBeforeStart
	return false
}
