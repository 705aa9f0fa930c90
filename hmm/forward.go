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

package hmm

import "github.com/refpanel/impute/refpanel"

// TraverseForward runs the forward pass of haplotype h over the typed
// panel, saving one probability vector per typed variant into the
// Engine's trellis for the subsequent backward pass to consume. gt
// supplies the observed allele per typed variant, indexed identically
// to typed.
func (e *Engine) TraverseForward(typed *refpanel.Panel, gt []int8) {
	e.ensureTrellis(typed)

	var probs, probsNorecom, junction []float64
	idx := 0
	for bi, block := range typed.Blocks {
		u := block.UniqueHaplotypeSize()
		card := block.Cardinalities()
		hPrime := float64(block.NonSentinelCount())

		if bi == 0 {
			probs = make([]float64, u)
			probsNorecom = make([]float64, u)
			junction = make([]float64, u)
			for i, c := range card {
				p := float64(c) / hPrime
				probs[i], probsNorecom[i], junction[i] = p, p, p
			}
		} else {
			prev := typed.Blocks[bi-1]
			re := reexpressBoundary(prev.UniqueMap(), block.UniqueMap(), prev.Cardinalities(), u, probs, probsNorecom, junction)
			probs, probsNorecom, junction = re[0], re[1], re[2]
			normalizeSum1(junction)
			r := lastVariant(prev).Site.Recom
			if e.transpose(probs, probsNorecom, card, hPrime, r, junction) {
				e.precisionJumps.Set(uint(idx - 1))
			}
		}
		copy(e.junctionProps[bi], junction)

		for wi := 0; wi < block.VariantSize(); wi++ {
			variant := &block.Variants()[wi]
			af := float64(variant.AC) / hPrime
			condition(probs, probsNorecom, variant.GT, gt[idx], variant.Site.Err, af)

			copy(e.trellis[bi].probs[wi], probs)
			copy(e.trellis[bi].probsNorecom[wi], probsNorecom)

			if wi < block.VariantSize()-1 {
				if e.transpose(probs, probsNorecom, card, hPrime, variant.Site.Recom, junction) {
					e.precisionJumps.Set(uint(idx))
				}
			}
			idx++
		}
	}
}

func lastVariant(b *refpanel.Block) *refpanel.VariantRecord {
	vs := b.Variants()
	return &vs[len(vs)-1]
}
