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

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/refpanel/impute/dosage"
	"github.com/refpanel/impute/gmap"
	"github.com/refpanel/impute/refpanel"
	"github.com/refpanel/impute/refsite"
)

// TraverseBackward runs the backward pass of haplotype h over the
// typed panel, reducing S3 (typed-block posterior) to S1 (selected
// physical haplotypes) to S2 (full-panel posterior) at every untyped
// site in between. gt supplies the
// observed allele per typed variant, aligned to typed. full is the
// chunk's complete reference panel (typed and untyped variants); the
// caller sizes results for full.VariantSize() rows of Dosages and
// typed.VariantSize() rows of LooDosages before the batch begins.
func (e *Engine) TraverseBackward(typed, full *refpanel.Panel, gt []int8, h int, results *dosage.Results) error {
	fullIt := full.End()
	blockReverse := make([][][]int32, len(typed.Blocks))

	var probs, probsNorecom, junctionB []float64
	idx := typed.VariantSize() - 1
	round := 0

	var lastS1 []s1Entry
	var lastAF float64

	for bi := len(typed.Blocks) - 1; bi >= 0; bi-- {
		block := typed.Blocks[bi]
		u := block.UniqueHaplotypeSize()
		card := block.Cardinalities()
		hPrime := float64(block.NonSentinelCount())

		if bi == len(typed.Blocks)-1 {
			probs = make([]float64, u)
			probsNorecom = make([]float64, u)
			junctionB = make([]float64, u)
			for i := range probs {
				probs[i], probsNorecom[i], junctionB[i] = 1, 1, 1
			}
			normalizeSum1(junctionB)
		} else {
			next := typed.Blocks[bi+1]
			re := reexpressBoundary(next.UniqueMap(), block.UniqueMap(), next.Cardinalities(), u, probs, probsNorecom, junctionB)
			probs, probsNorecom, junctionB = re[0], re[1], re[2]
			normalizeSum1(junctionB)
			r := lastVariant(block).Site.Recom
			e.transpose(probs, probsNorecom, card, hPrime, r, nil)
		}

		if blockReverse[bi] == nil {
			blockReverse[bi] = block.ReverseMap()
		}
		loo := make([]float64, u)

		for wi := block.VariantSize() - 1; wi >= 0; wi-- {
			variant := &block.Variants()[wi]
			af := float64(variant.AC) / hPrime
			allele := gt[idx]

			fwdProbs := e.trellis[bi].probs[wi]
			fwdNorecom := e.trellis[bi].probsNorecom[wi]

			constants := make([]float64, u)
			p3 := make([]float64, u)
			for i := range constants {
				constants[i] = fwdNorecom[i] * probsNorecom[i]
				p3[i] = fwdProbs[i] * probs[i]
			}
			p3Sum := floats.Sum(p3)
			if p3Sum > 0 {
				floats.Scale(1/p3Sum, p3)
			}

			round++
			s1 := e.selectS1(bi, u, p3, constants, card, e.junctionProps[bi], junctionB, blockReverse[bi])
			decay := e.decayFactor(variant.Site)

			// impute untyped full-panel variants strictly above this
			// typed variant's position, using this typed variant's S1.
			for fullIt.Valid() && !sameSite(fullIt.Variant().Site, variant.Site) {
				fpBlock := fullIt.Block()
				fpIdx := fullIt.BlockIndex()
				v := fullIt.Variant()
				e.imputeUntyped(round, fpIdx, fpBlock, v, s1, af, e.decayFactor(v.Site), results, fullIt.GlobalIndex(), h)
				fullIt.Prev()
			}
			if !fullIt.Valid() {
				return fmt.Errorf("hmm: typed variant at %s:%d missing from full panel", string(*variant.Site.Chrom), variant.Site.Pos)
			}
			// fullIt now addresses the typed variant itself.
			row := fullIt.GlobalIndex()
			dose := af + (closedFormDose(p3, variant.GT)-af)*decay
			results.Dosages.Set(row, h, float32(bin(dose)))
			results.LooDosages.Set(idx, h, float32(bin(looDose(fwdProbs, probs, variant.GT, allele, variant.Site.Err, af, loo))))
			fullIt.Prev()

			lastS1, lastAF = s1, af

			condition(probs, probsNorecom, variant.GT, allele, variant.Site.Err, af)
			if wi > 0 {
				e.transpose(probs, probsNorecom, card, hPrime, block.Variants()[wi-1].Site.Recom, nil)
			}
			idx--
		}
	}

	// leading flank: untyped variants before the panel's first typed
	// variant share the first typed variant's S1.
	for fullIt.Valid() {
		fpBlock := fullIt.Block()
		fpIdx := fullIt.BlockIndex()
		v := fullIt.Variant()
		round++
		e.imputeUntyped(round, fpIdx, fpBlock, v, lastS1, lastAF, e.decayFactor(v.Site), results, fullIt.GlobalIndex(), h)
		fullIt.Prev()
	}
	assertInvariant(fullIt.BeforeStart(), "backward pass must terminate before panel start exactly once")
	return nil
}

// selectS1 applies the S3 threshold, the confident-template fast
// path, and the S1 threshold, returning the physical haplotypes and
// their shared probability mass.
func (e *Engine) selectS1(bi, u int, p3, constants []float64, card []int32, junctionF, junctionB []float64, reverseMap [][]int32) []s1Entry {
	best := make([]int32, 0, 4)
	for i, p := range p3 {
		if p >= e.cfg.S3ProbThreshold {
			best = append(best, int32(i))
		}
	}
	if len(best) == 0 {
		bestU := 0
		for i := 1; i < len(p3); i++ {
			if p3[i] > p3[bestU] {
				bestU = i
			}
		}
		best = append(best, int32(bestU))
	}

	if len(best) == 1 && e.haveFastPathState && e.prevBestBlock == bi && e.prevBestU == best[0] {
		if diff := p3[best[0]] - e.prevBestProb; diff < e.cfg.DiffThreshold && diff > -e.cfg.DiffThreshold {
			return e.cachedS1
		}
	}

	s1 := e.cachedS1[:0]
	for _, uu := range best {
		c := float64(card[uu])
		massNorecom := constants[uu] / c
		massRecom := junctionF[uu] * junctionB[uu]
		p := massNorecom + massRecom
		if e.cfg.S1ProbThreshold >= 0 && p < e.cfg.S1ProbThreshold {
			continue
		}
		for _, hap := range reverseMap[uu] {
			s1 = append(s1, s1Entry{hap: hap, prob: p})
		}
	}
	e.cachedS1 = s1

	if len(best) == 1 {
		e.haveFastPathState = true
		e.prevBestBlock = bi
		e.prevBestU = best[0]
		e.prevBestProb = p3[best[0]]
	} else {
		e.haveFastPathState = false
	}
	return s1
}

// imputeUntyped folds S1 into full-panel block fpBlock's unique
// templates (S2) and combines it with v's per-template genotypes to
// produce one dosage. The S2 fold is
// memoized per (round, full-panel block) since every untyped variant
// sharing a full-panel block reuses the same fold.
func (e *Engine) imputeUntyped(round, fpBlockIdx int, fpBlock *refpanel.Block, v *refpanel.VariantRecord, s1 []s1Entry, af, decay float64, results *dosage.Results, row, col int) {
	cache, ok := e.scratchS2[fpBlockIdx]
	if !ok || e.s2Round != round || e.s2Block != fpBlockIdx {
		cache = e.foldS2(fpBlock, s1)
		e.scratchS2[fpBlockIdx] = cache
		e.s2Round = round
		e.s2Block = fpBlockIdx
	}
	dose := af
	if cache.total > 0 {
		var num float64
		for u, p := range cache.probs {
			num += p * float64(v.GT[u])
		}
		dose = num / cache.total
	}
	dose = af + (dose-af)*decay
	results.Dosages.Set(row, col, float32(bin(dose)))
}

func (e *Engine) foldS2(block *refpanel.Block, s1 []s1Entry) s2Fold {
	probs := make([]float64, block.UniqueHaplotypeSize())
	m := block.UniqueMap()
	var total float64
	for _, ent := range s1 {
		if int(ent.hap) >= len(m) {
			continue
		}
		u := m[ent.hap]
		if u == refpanel.EOV {
			continue
		}
		probs[u] += ent.prob
		total += ent.prob
	}
	return s2Fold{probs: probs, total: total}
}

// closedFormDose computes the with-self dosage of a typed variant
// directly from its normalized S3 posterior.
func closedFormDose(p3 []float64, gt []uint8) float64 {
	var dose float64
	for u, g := range gt {
		dose += p3[u] * float64(g)
	}
	return dose
}

// looDose recomputes the typed variant's posterior with its own
// emission divided back out, then combines it with the genotype
// vector. scratch is reused caller-owned storage sized to len(gt).
func looDose(fwdProbs, backProbs []float64, gt []uint8, allele int8, eps, af float64, scratch []float64) float64 {
	if allele != 0 && allele != 1 {
		var sum float64
		for u := range scratch {
			scratch[u] = fwdProbs[u] * backProbs[u]
			sum += scratch[u]
		}
		if sum == 0 {
			return af
		}
		var dose float64
		for u, g := range gt {
			dose += scratch[u] * float64(g) / sum
		}
		return dose
	}
	var sum float64
	for u, g := range gt {
		factor := conditionFactor(g, allele, eps, af)
		scratch[u] = (fwdProbs[u] / factor) * backProbs[u]
		sum += scratch[u]
	}
	if sum == 0 {
		return float64(allele)
	}
	var dose float64
	for u, g := range gt {
		dose += scratch[u] * float64(g) / sum
	}
	return dose
}

// decayFactor returns the flanking-decay attenuation for a full-panel
// site outside the chunk's true (non-overlap) boundaries. It returns
// 1 (no attenuation) when decay is disabled or the site lacks a
// genetic position.
func (e *Engine) decayFactor(site *refsite.Site) float64 {
	if e.cfg.Decay == 0 || !site.HasGeneticPosition() {
		return 1
	}
	if site.CM < e.cfg.ChunkStartCM {
		return gmap.FlankingDecay(e.cfg.ChunkStartCM-site.CM, e.cfg.Decay)
	}
	if site.CM > e.cfg.ChunkEndCM {
		return gmap.FlankingDecay(site.CM-e.cfg.ChunkEndCM, e.cfg.Decay)
	}
	return 1
}

func sameSite(a, b *refsite.Site) bool {
	return a == b || (a.Pos == b.Pos && a.Ref == b.Ref && a.Alt == b.Alt)
}
