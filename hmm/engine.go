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

// Package hmm implements the Li-Stephens style forward/backward HMM
// that runs over a block-compressed reference panel. One Engine is
// allocated per worker goroutine and reused across the haplotypes
// that worker is assigned: TraverseForward writes into a trellis that
// is sized once for the chunk's typed panel and reused across
// haplotypes, while TraverseBackward allocates small per-variant
// scratch vectors.
package hmm

import (
	"math"

	"github.com/willf/bitset"
	"gonum.org/v1/gonum/floats"

	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/refpanel"
)

// Config carries the tunable numerics of the HMM, mirroring the CLI
// flags that configure a run.
type Config struct {
	MatchError      float64 // default per-site error epsilon when not supplied by data
	MinRecom        float64
	JumpThreshold   float64 // underflow rescale trigger; default 1e-10
	JumpFix         float64 // underflow rescale factor; default 1e15
	S3ProbThreshold float64
	S1ProbThreshold float64 // < 0 is the "accept all S3 survivors" sentinel
	DiffThreshold   float64
	Decay           float64
	ChunkStartCM    float64 // cM of the true (non-overlap) chunk start; used by flanking decay
	ChunkEndCM      float64 // cM of the true (non-overlap) chunk end
}

// DefaultConfig returns the engine's numeric defaults.
func DefaultConfig() Config {
	return Config{
		MatchError:      1e-5,
		MinRecom:        0,
		JumpThreshold:   1e-10,
		JumpFix:         1e15,
		S3ProbThreshold: 1e-3,
		S1ProbThreshold: -1,
		DiffThreshold:   1e-4,
		Decay:           0,
	}
}

// blockTrellis is the saved forward state for one typed block: one
// U-vector per variant in the block, variant-major.
type blockTrellis struct {
	probs        [][]float64
	probsNorecom [][]float64
}

func (t *blockTrellis) ensureSize(numVariants, u int) {
	if cap(t.probs) < numVariants {
		t.probs = make([][]float64, numVariants)
		t.probsNorecom = make([][]float64, numVariants)
	} else {
		t.probs = t.probs[:numVariants]
		t.probsNorecom = t.probsNorecom[:numVariants]
	}
	for i := 0; i < numVariants; i++ {
		if cap(t.probs[i]) < u {
			t.probs[i] = make([]float64, u)
			t.probsNorecom[i] = make([]float64, u)
		} else {
			t.probs[i] = t.probs[i][:u]
			t.probsNorecom[i] = t.probsNorecom[i][:u]
		}
	}
}

// s1Entry is one physical haplotype selected into S1, carrying the
// probability mass shared by every haplotype of its S3 template.
type s1Entry struct {
	hap  int32
	prob float64
}

// s2Fold is the S1 mass folded into one full-panel block's unique
// templates, memoized per (typed-variant round, full-panel block)
// pair since every untyped variant sharing that block reuses it.
type s2Fold struct {
	probs []float64
	total float64
}

// Engine is the thread-local HMM scratch state for one worker. It
// must not be shared across goroutines; allocate one per worker and
// call Reset between haplotypes.
type Engine struct {
	cfg Config

	trellis       []blockTrellis
	junctionProps [][]float64 // forward junction proportions, one per typed block, snapshotted at block entry

	precisionJumps *bitset.BitSet

	// backward-direction confident-template fast path
	haveFastPathState bool
	prevBestBlock     int
	prevBestU         int32
	prevBestProb      float64
	cachedS1          []s1Entry

	// S2 fold memoization, keyed by full-panel block index and
	// invalidated whenever the (round, block) pair changes.
	scratchS2 map[int]s2Fold
	s2Round   int
	s2Block   int
}

// NewEngine allocates a fresh per-worker Engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, scratchS2: make(map[int]s2Fold), s2Block: -1}
}

// Reset clears per-haplotype state so the Engine's buffers can be
// reused for the next haplotype without reallocating.
func (e *Engine) Reset() {
	e.haveFastPathState = false
	e.cachedS1 = e.cachedS1[:0]
	for k := range e.scratchS2 {
		delete(e.scratchS2, k)
	}
	e.s2Round = 0
	e.s2Block = -1
}

// PrecisionJumps reports the underflow-rescale bit vector recorded by
// the most recent TraverseForward call, indexed by typed-variant
// global index.
func (e *Engine) PrecisionJumps() *bitset.BitSet { return e.precisionJumps }

func (e *Engine) ensureTrellis(typed *refpanel.Panel) {
	if cap(e.trellis) < len(typed.Blocks) {
		e.trellis = make([]blockTrellis, len(typed.Blocks))
		e.junctionProps = make([][]float64, len(typed.Blocks))
	} else {
		e.trellis = e.trellis[:len(typed.Blocks)]
		e.junctionProps = e.junctionProps[:len(typed.Blocks)]
	}
	for bi, block := range typed.Blocks {
		e.trellis[bi].ensureSize(block.VariantSize(), block.UniqueHaplotypeSize())
		if cap(e.junctionProps[bi]) < block.UniqueHaplotypeSize() {
			e.junctionProps[bi] = make([]float64, block.UniqueHaplotypeSize())
		} else {
			e.junctionProps[bi] = e.junctionProps[bi][:block.UniqueHaplotypeSize()]
		}
	}
	e.precisionJumps = bitset.New(uint(typed.VariantSize()))
}

// condition applies the emission update in place to probs and
// probsNorecom. allele must be 0, 1, or any other value to mean
// "missing" (a no-op).
func condition(probs, probsNorecom []float64, gt []uint8, allele int8, eps, af float64) {
	if allele != 0 && allele != 1 {
		return
	}
	pRandom := eps * af
	if allele == 0 {
		pRandom = eps * (1 - af)
	}
	pMatch := (1 - eps) + pRandom
	for u, g := range gt {
		if int8(g) == allele {
			probs[u] *= pMatch
			probsNorecom[u] *= pMatch
		} else {
			probs[u] *= pRandom
			probsNorecom[u] *= pRandom
		}
	}
}

// conditionFactor returns the single emission multiplier condition
// would have applied to unique template u, used to apply the
// condition update in reverse for leave-one-out dosages.
func conditionFactor(g uint8, allele int8, eps, af float64) float64 {
	pRandom := eps * af
	if allele == 0 {
		pRandom = eps * (1 - af)
	}
	pMatch := (1 - eps) + pRandom
	if int8(g) == allele {
		return pMatch
	}
	return pRandom
}

// transpose applies the recombination transition in place, including
// the precision-jump rescale, and reports whether a jump occurred.
func (e *Engine) transpose(probs, probsNorecom []float64, cardinalities []int32, hPrime, r float64, junction []float64) bool {
	s := floats.Sum(probs)
	jumped := false
	if s < e.cfg.JumpThreshold {
		floats.Scale(e.cfg.JumpFix, probs)
		floats.Scale(e.cfg.JumpFix, probsNorecom)
		if junction != nil {
			floats.Scale(e.cfg.JumpFix, junction)
		}
		s *= e.cfg.JumpFix
		jumped = true
	}
	coef := s * r / hPrime
	for u := range probs {
		probs[u] = probs[u]*(1-r) + coef*float64(cardinalities[u])
		probsNorecom[u] = probsNorecom[u] * (1 - r)
	}
	return jumped
}

// reexpressBoundary re-expresses one or more parallel U-vectors from a
// source block's unique-template space into a destination block's: it
// expands to physical haplotypes by dividing by the source's
// cardinality, then re-collects into the destination's unique
// templates.
func reexpressBoundary(srcMap, dstMap []int32, srcCard []int32, dstU int, srcs ...[]float64) [][]float64 {
	dsts := make([][]float64, len(srcs))
	for i := range dsts {
		dsts[i] = make([]float64, dstU)
	}
	for h, su := range srcMap {
		if su == refpanel.EOV {
			continue
		}
		du := dstMap[h]
		if du == refpanel.EOV {
			continue
		}
		card := float64(srcCard[su])
		for i, src := range srcs {
			dsts[i][du] += src[su] / card
		}
	}
	return dsts
}

// normalizeSum1 rescales v in place so its entries sum to 1, guarding
// against cumulative drift across many boundary crossings. A zero-sum
// vector is left unchanged.
func normalizeSum1(v []float64) {
	s := floats.Sum(v)
	if s == 0 {
		return
	}
	floats.Scale(1/s, v)
}

// bin discretizes a dosage to 0.001 resolution.
func bin(dose float64) float64 {
	return math.Round(dose*1000) / 1000
}

func assertInvariant(cond bool, msg string) {
	if internal.AssertInvariants && !cond {
		panic("hmm: invariant violated: " + msg)
	}
}
