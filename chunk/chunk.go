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

// Package chunk is the per-chunk orchestrator: it loads a reference
// panel and a target VCF, builds the typed-only panel the HMM runs
// over, assigns recombination probabilities from a genetic map (or
// the reference's own annotations), gates on the typed:full ratio,
// and scatters one HMM run per target haplotype across a worker pool
// using pargo/parallel.
package chunk

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"

	"github.com/refpanel/impute/dosage"
	"github.com/refpanel/impute/gmap"
	"github.com/refpanel/impute/hmm"
	"github.com/refpanel/impute/refpanel"
	"github.com/refpanel/impute/refsite"
	"github.com/refpanel/impute/target"
	"github.com/refpanel/impute/vcfio"
)

// RatioBehavior selects what happens when a chunk's typed:full variant
// ratio falls below MinRatio.
type RatioBehavior int

const (
	// RatioFail aborts the run with ErrRatioTooLow. This is the default:
	// a chunk this thin on typed sites usually means a mismatched or
	// truncated reference panel, and imputing it anyway would silently
	// produce low-confidence dosages under a normal-looking exit code.
	RatioFail RatioBehavior = iota
	// RatioSkip drops the chunk without treating it as a failure: Run
	// returns a Result with Skipped set and no error.
	RatioSkip
)

// ErrRatioTooLow is returned by Run when the chunk's typed:full ratio
// is below Config.MinRatio and Config.MinRatioBehavior is RatioFail.
var ErrRatioTooLow = fmt.Errorf("chunk: typed:full variant ratio below --min-ratio")

// ErrNoSampleOverlap is returned by Run when Config.SampleIDs names at
// least one sample but none of them are present in the target VCF.
var ErrNoSampleOverlap = fmt.Errorf("chunk: no overlap between --sample-ids and target samples")

// Region restricts imputation to one chromosome and an inclusive
// 1-based position range, as requested by --region.
type Region struct {
	Chrom      string
	Start, End int64
}

func (r *Region) contains(chrom *string, pos int64) bool {
	return chrom != nil && *chrom == r.Chrom && pos >= r.Start && pos <= r.End
}

// Config carries the per-chunk orchestration knobs.
type Config struct {
	HMM              hmm.Config
	MinRatio         float64
	MinRatioBehavior RatioBehavior
	Overlap          float64  // cM half-margin flanking the chunk's true region
	SampleIDs        []string // empty means "every sample in the target VCF"
	Region           *Region  // optional genomic-position filter applied before imputation
}

// Result is one chunk's imputation output, ready for vcfio.WriteDosages.
// If Skipped is true (Config.MinRatioBehavior was RatioSkip and the
// typed:full ratio gate tripped), every other field is the zero value
// and there is nothing to write.
type Result struct {
	Skipped   bool
	Panel     *refpanel.Panel
	Results   dosage.Results
	RSquared  []float64
	SampleIDs []string
}

// Run executes one chunk end to end.
func Run(refReader, targetReader io.Reader, geneticMap *gmap.Map, cfg Config) (*Result, error) {
	rawRef, err := vcfio.AutoDecompress(refReader)
	if err != nil {
		return nil, fmt.Errorf("chunk: opening reference panel: %w", err)
	}
	full, err := vcfio.ReadReferencePanel(rawRef)
	if err != nil {
		return nil, fmt.Errorf("chunk: reading reference panel: %w", err)
	}

	rawTarget, err := vcfio.AutoDecompress(targetReader)
	if err != nil {
		return nil, fmt.Errorf("chunk: opening target VCF: %w", err)
	}
	tp, err := vcfio.ReadTargetVCF(rawTarget)
	if err != nil {
		return nil, fmt.Errorf("chunk: reading target VCF: %w", err)
	}

	if cfg.Region != nil {
		full, err = filterPanelByRegion(full, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("chunk: applying --region to reference panel: %w", err)
		}
		tp.Variants = filterTargetsByRegion(tp.Variants, cfg.Region)
	}

	selected, sampleIDs := selectSamples(tp.SampleIDs, cfg.SampleIDs)
	if len(cfg.SampleIDs) > 0 && len(sampleIDs) == 0 {
		return nil, ErrNoSampleOverlap
	}

	typed, typedGT, err := buildTypedPanel(full, tp.Variants)
	if err != nil {
		return nil, err
	}
	assignRecomb(typed, geneticMap, cfg.HMM.MinRecom)

	hmmCfg := cfg.HMM
	hmmCfg.ChunkStartCM, hmmCfg.ChunkEndCM = chunkBounds(typed, cfg.Overlap)

	ratio := 0.0
	if full.VariantSize() > 0 {
		ratio = float64(typed.VariantSize()) / float64(full.VariantSize())
	}
	if ratio < cfg.MinRatio {
		if cfg.MinRatioBehavior == RatioSkip {
			return &Result{Skipped: true}, nil
		}
		return nil, ErrRatioTooLow
	}

	var results dosage.Results
	results.Resize(full.VariantSize(), typed.VariantSize(), len(selected))

	numHaps := len(selected)
	var mu sync.Mutex
	var runErr error
	parallel.Range(0, numHaps, 0, func(low, high int) {
		engine := hmm.NewEngine(hmmCfg)
		col := make([]int8, typed.VariantSize())
		for i := low; i < high; i++ {
			mu.Lock()
			failed := runErr != nil
			mu.Unlock()
			if failed {
				return
			}
			h := selected[i]
			fillColumn(col, typedGT, h)
			engine.Reset()
			engine.TraverseForward(typed, col)
			if err := engine.TraverseBackward(typed, full, col, i, &results); err != nil {
				mu.Lock()
				if runErr == nil {
					runErr = err
				}
				mu.Unlock()
				return
			}
		}
	})
	if runErr != nil {
		return nil, runErr
	}

	return &Result{
		Panel:     full,
		Results:   results,
		RSquared:  typedRSquared(full, typed, typedGT, selected, &results),
		SampleIDs: sampleIDs,
	}, nil
}

func selectSamples(all []string, wanted []string) (haploIdx []int, ids []string) {
	if len(wanted) == 0 {
		haploIdx = make([]int, 2*len(all))
		for i := range haploIdx {
			haploIdx[i] = i
		}
		return haploIdx, all
	}
	index := make(map[string]int, len(all))
	for i, id := range all {
		index[id] = i
	}
	for _, id := range wanted {
		if s, ok := index[id]; ok {
			haploIdx = append(haploIdx, 2*s, 2*s+1)
			ids = append(ids, id)
		}
	}
	return haploIdx, ids
}

func fillColumn(col []int8, typedGT [][]int8, h int) {
	for i, row := range typedGT {
		if h < len(row) {
			col[i] = row[h]
		} else {
			col[i] = target.EOV
		}
	}
}

// filterPanelByRegion restricts full to variants within region,
// keeping every block's expanded/unique map unchanged: a position
// filter never touches how templates are compressed, only which
// variants of a block are kept.
func filterPanelByRegion(full *refpanel.Panel, region *Region) (*refpanel.Panel, error) {
	var blocks []*refpanel.Block
	for _, b := range full.Blocks {
		fb, err := refpanel.NewBlock(b.UniqueMap(), b.UniqueHaplotypeSize())
		if err != nil {
			return nil, err
		}
		for _, v := range b.Variants() {
			if !region.contains(v.Site.Chrom, v.Site.Pos) {
				continue
			}
			if err := fb.AddVariant(v.Site, v.GT); err != nil {
				return nil, err
			}
		}
		if fb.VariantSize() > 0 {
			blocks = append(blocks, fb)
		}
	}
	return refpanel.NewPanel(blocks)
}

// filterTargetsByRegion restricts the target cohort's variants to
// region, in place order.
func filterTargetsByRegion(variants []*target.Variant, region *Region) []*target.Variant {
	kept := variants[:0]
	for _, v := range variants {
		if region.contains(v.Chrom, v.Pos) {
			kept = append(kept, v)
		}
	}
	return kept
}

// buildTypedPanel restricts full to the variants also present in the
// target cohort, keeping every block's expanded/unique map unchanged
// (block compression is untouched by which variants happen to be
// typed) and returns, per typed variant in panel order, the full
// target genotype row it was matched against.
func buildTypedPanel(full *refpanel.Panel, targets []*target.Variant) (*refpanel.Panel, [][]int8, error) {
	index := make(map[siteKey]*target.Variant, len(targets))
	for _, v := range targets {
		index[siteKey{v.Chrom, v.Pos, v.Ref, v.Alt}] = v
	}

	var blocks []*refpanel.Block
	var gtRows [][]int8
	for _, b := range full.Blocks {
		tb, err := refpanel.NewBlock(b.UniqueMap(), b.UniqueHaplotypeSize())
		if err != nil {
			return nil, nil, err
		}
		for _, v := range b.Variants() {
			tv, ok := index[siteKey{v.Site.Chrom, v.Site.Pos, v.Site.Ref, v.Site.Alt}]
			if !ok {
				continue
			}
			if err := tb.AddVariant(v.Site, v.GT); err != nil {
				return nil, nil, err
			}
			tv.InRef = true
			gtRows = append(gtRows, tv.GT)
		}
		if tb.VariantSize() > 0 {
			blocks = append(blocks, tb)
		}
	}
	typed, err := refpanel.NewPanel(blocks)
	if err != nil {
		return nil, nil, err
	}
	return typed, gtRows, nil
}

type siteKey struct {
	chrom    interface{}
	pos      int64
	ref, alt string
}

// assignRecomb sets every typed site's Recom to the Haldane
// probability of switching template before the next typed site,
// sourcing genetic position from geneticMap when given and falling
// back to the reference panel's own CM annotations otherwise. It
// mutates the refsite.Site objects shared with full,
// which is safe because nothing downstream reads an untyped variant's
// Recom field (only its CM, for flanking decay).
func assignRecomb(typed *refpanel.Panel, geneticMap *gmap.Map, minRecom float64) {
	var sites []*refsite.Site
	it := typed.Begin()
	for it.Valid() {
		sites = append(sites, it.Variant().Site)
		it.Next()
	}
	if len(sites) == 0 {
		return
	}
	cm := make([]float64, len(sites))
	for i, s := range sites {
		switch {
		case geneticMap != nil && geneticMap.Chrom(s.Chrom) != nil:
			cm[i] = geneticMap.Chrom(s.Chrom).CM(s.Pos)
			s.CM, s.HasCM = cm[i], true
		case s.HasCM:
			cm[i] = s.CM
		default:
			cm[i] = float64(s.Pos) / 1e6 // 1 cM/Mb fallback when no map and no CM annotation exists
			s.CM, s.HasCM = cm[i], true
		}
	}
	recom := make([]float64, len(sites))
	gmap.AssignRecomb(cm, minRecom, recom)
	for i, s := range sites {
		s.Recom = recom[i]
	}
}

// chunkBounds returns the genetic-position span of the chunk's true
// (non-overlap) region, narrowed from the typed panel's own cM span by
// Config.Overlap on each side, feeding the HMM's flanking-decay edges:
// only the orchestrator knows where the --overlap margin begins. Every
// typed site has CM set by assignRecomb, so the typed panel's span is
// a safe proxy for the requested region even when the reference panel
// carries no CM annotations of its own.
func chunkBounds(typed *refpanel.Panel, overlap float64) (start, end float64) {
	it := typed.Begin()
	if !it.Valid() {
		return 0, 0
	}
	minCM, maxCM := it.Variant().Site.CM, it.Variant().Site.CM
	for ; it.Valid(); it.Next() {
		cm := it.Variant().Site.CM
		if cm < minCM {
			minCM = cm
		}
		if cm > maxCM {
			maxCM = cm
		}
	}
	return minCM + overlap, maxCM - overlap
}

// typedRSquared scores each typed variant's imputation quality as the
// squared correlation between its leave-one-out dosages and the
// haplotypes' observed genotypes, and places the result at that
// variant's row in the full-panel index space WriteDosages iterates
// over. Untyped variants
// have no ground truth to correlate against and are left at -1
// ("unknown"), for which vcfio.WriteDosages omits the R2 INFO key.
func typedRSquared(full, typed *refpanel.Panel, typedGT [][]int8, selected []int, results *dosage.Results) []float64 {
	rsq := make([]float64, full.VariantSize())
	for i := range rsq {
		rsq[i] = -1
	}

	fullRow := make(map[siteKey]int, full.VariantSize())
	for it := full.Begin(); it.Valid(); it.Next() {
		s := it.Variant().Site
		fullRow[siteKey{s.Chrom, s.Pos, s.Ref, s.Alt}] = it.GlobalIndex()
	}

	var x, y []float64
	row := 0
	for it := typed.Begin(); it.Valid(); it.Next() {
		x = x[:0]
		y = y[:0]
		for i, h := range selected {
			gt := typedGT[row][h]
			if gt != 0 && gt != 1 {
				continue
			}
			loo := results.LooDosages.Get(row, i)
			if loo == dosage.EOV {
				continue
			}
			x = append(x, float64(loo))
			y = append(y, float64(gt))
		}
		if len(x) >= 2 {
			s := it.Variant().Site
			if fr, ok := fullRow[siteKey{s.Chrom, s.Pos, s.Ref, s.Alt}]; ok {
				r := stat.Correlation(x, y, nil)
				if !math.IsNaN(r) {
					rsq[fr] = r * r
				}
			}
		}
		row++
	}
	return rsq
}
