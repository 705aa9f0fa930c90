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

package cmd

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/refpanel/impute/chunk"
	"github.com/refpanel/impute/gmap"
	"github.com/refpanel/impute/hmm"
	"github.com/refpanel/impute/vcfio"
)

// ImputeHelp documents the impute subcommand in "[--flag value]"
// listing style.
const ImputeHelp = "impute reference.vcf target.vcf output.vcf\n" +
	"[--region chrom:start-end]\n" +
	"[--chunk mb]\n" +
	"[--map genetic-map-file]\n" +
	"[--threads n]\n" +
	"[--match-error e]\n" +
	"[--min-recom r]\n" +
	"[--prob-threshold-s3 p]\n" +
	"[--prob-threshold-s1 p]\n" +
	"[--diff-threshold d]\n" +
	"[--decay lambda]\n" +
	"[--overlap cm]\n" +
	"[--min-ratio r]\n" +
	"[--min-ratio-behavior skip|fail]\n" +
	"[--format GT,DS,HDS,GP]\n" +
	"[--output-format vcf|vcf.gz]\n" +
	"[--sample-ids id1,id2,...]\n" +
	"[--sample-ids-file file]\n" +
	"[--temp-buffer n]\n"

// Impute implements the impute command: run the HMM over one chunk
// (reference panel + target VCF) and write dosages.
func Impute() error {
	var (
		region           string
		chunkMb          float64
		mapFile          string
		threads          int
		matchError       float64
		minRecom         float64
		probThresholdS3  float64
		probThresholdS1  float64
		diffThreshold    float64
		decay            float64
		overlap          float64
		minRatio         float64
		minRatioBehavior string
		format           string
		outputFormatArg  string
		sampleIDs        string
		sampleIDsFile    string
		tempBuffer       int
	)

	def := hmm.DefaultConfig()

	flags := flag.NewFlagSet("impute", flag.ContinueOnError)
	flags.StringVar(&region, "region", "", "restrict imputation to chrom:start-end (1-based, inclusive)")
	flags.Float64Var(&chunkMb, "chunk", 0, "expected chunk length in Mb; validated against --region when both are given")
	flags.StringVar(&mapFile, "map", "", "genetic map file (cM); falls back to reference panel CM annotations, then 1cM/Mb")
	flags.IntVar(&threads, "threads", runtime.NumCPU(), "number of worker threads")
	flags.Float64Var(&matchError, "match-error", def.MatchError, "default per-site error epsilon")
	flags.Float64Var(&minRecom, "min-recom", def.MinRecom, "minimum recombination probability floor")
	flags.Float64Var(&probThresholdS3, "prob-threshold-s3", def.S3ProbThreshold, "S3 template-selection probability threshold")
	flags.Float64Var(&probThresholdS1, "prob-threshold-s1", def.S1ProbThreshold, "S1 selection threshold; negative accepts all S3 survivors")
	flags.Float64Var(&diffThreshold, "diff-threshold", def.DiffThreshold, "fast-path confident-template probability delta")
	flags.Float64Var(&decay, "decay", def.Decay, "flanking decay lambda")
	flags.Float64Var(&overlap, "overlap", 0, "cM half-margin flanking the chunk's true region, for decay")
	flags.Float64Var(&minRatio, "min-ratio", 0, "minimum typed:full variant ratio")
	flags.StringVar(&minRatioBehavior, "min-ratio-behavior", "fail", "skip or fail a chunk below --min-ratio")
	flags.StringVar(&format, "format", "GT,DS", "comma-separated output FORMAT fields: GT,DS,HDS,GP")
	flags.StringVar(&outputFormatArg, "output-format", "vcf", "output container format: vcf or vcf.gz")
	flags.StringVar(&sampleIDs, "sample-ids", "", "comma-separated subset of target sample IDs to impute")
	flags.StringVar(&sampleIDsFile, "sample-ids-file", "", "file with one target sample ID per line")
	flags.IntVar(&tempBuffer, "temp-buffer", 200, "number of samples to impute before flushing a batch to a temp file")

	parseFlags(flags, 5, ImputeHelp)

	referencePath := getPositional(2, ImputeHelp)
	targetPath := getPositional(3, ImputeHelp)
	outputPath := getPositional(4, ImputeHelp)

	var sanityChecksFailed bool
	if !checkExist("reference", referencePath) {
		sanityChecksFailed = true
	}
	if !checkExist("target", targetPath) {
		sanityChecksFailed = true
	}
	if !checkCreate("output", outputPath) {
		sanityChecksFailed = true
	}
	if mapFile != "" && !checkExist("--map", mapFile) {
		sanityChecksFailed = true
	}
	var behavior chunk.RatioBehavior
	switch minRatioBehavior {
	case "skip":
		behavior = chunk.RatioSkip
	case "fail":
		behavior = chunk.RatioFail
	default:
		log.Printf("Error: --min-ratio-behavior must be skip or fail, got %q.\n", minRatioBehavior)
		sanityChecksFailed = true
	}

	var chunkRegion *chunk.Region
	if region != "" {
		var err error
		chunkRegion, err = parseRegion(region)
		if err != nil {
			log.Printf("Error: --region: %v.\n", err)
			sanityChecksFailed = true
		} else if chunkMb > 0 && float64(chunkRegion.End-chunkRegion.Start+1) > chunkMb*1e6 {
			log.Printf("Error: --region span exceeds the declared --chunk length of %g Mb.\n", chunkMb)
			sanityChecksFailed = true
		}
	}

	var compressOutput bool
	switch outputFormatArg {
	case "vcf":
		compressOutput = false
	case "vcf.gz":
		compressOutput = true
	default:
		log.Printf("Error: --output-format must be vcf or vcf.gz, got %q.\n", outputFormatArg)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		return fmt.Errorf("cmd: sanity checks failed for impute")
	}

	outputFormat, err := parseOutputFormat(format)
	if err != nil {
		return err
	}

	var ids []string
	if sampleIDsFile != "" {
		fileIDs, err := readSampleIDsFile(sampleIDsFile)
		if err != nil {
			return fmt.Errorf("cmd: reading --sample-ids-file: %w", err)
		}
		ids = append(ids, fileIDs...)
	}
	ids = append(ids, splitSampleIDs(sampleIDs)...)

	var geneticMap *gmap.Map
	if mapFile != "" {
		f, err := os.Open(mapFile)
		if err != nil {
			return fmt.Errorf("cmd: opening --map: %w", err)
		}
		defer f.Close()
		geneticMap, err = gmap.Load(f)
		if err != nil {
			return fmt.Errorf("cmd: parsing --map: %w", err)
		}
	}

	refFile, err := os.Open(referencePath)
	if err != nil {
		return fmt.Errorf("cmd: opening reference: %w", err)
	}
	defer refFile.Close()

	targetFile, err := os.Open(targetPath)
	if err != nil {
		return fmt.Errorf("cmd: opening target: %w", err)
	}
	defer targetFile.Close()

	cfg := chunk.Config{
		HMM: hmm.Config{
			MatchError:      matchError,
			MinRecom:        minRecom,
			JumpThreshold:   def.JumpThreshold,
			JumpFix:         def.JumpFix,
			S3ProbThreshold: probThresholdS3,
			S1ProbThreshold: probThresholdS1,
			DiffThreshold:   diffThreshold,
			Decay:           decay,
		},
		MinRatio:         minRatio,
		MinRatioBehavior: behavior,
		Overlap:          overlap,
		SampleIDs:        ids,
		Region:           chunkRegion,
	}

	runtime.GOMAXPROCS(threads)

	result, err := chunk.Run(refFile, targetFile, geneticMap, cfg)
	if err != nil {
		return fmt.Errorf("cmd: running chunk: %w", err)
	}
	if result.Skipped {
		log.Printf("chunk skipped: typed:full ratio below --min-ratio, --min-ratio-behavior=skip\n")
		return nil
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("cmd: creating output: %w", err)
	}
	defer outFile.Close()

	var w io.Writer = outFile
	if compressOutput {
		cw := vcfio.CompressWriter(outFile, 6)
		defer cw.Close()
		w = cw
	}

	if err := writeInBatches(w, result, outputFormat, tempBuffer); err != nil {
		return fmt.Errorf("cmd: writing dosages: %w", err)
	}
	return nil
}

// parseRegion parses a "chrom:start-end" 1-based inclusive position
// range as requested by --region.
func parseRegion(s string) (*chunk.Region, error) {
	chromPart, posPart, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("expected chrom:start-end, got %q", s)
	}
	startStr, endStr, ok := strings.Cut(posPart, "-")
	if !ok {
		return nil, fmt.Errorf("expected chrom:start-end, got %q", s)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start position in %q: %w", s, err)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end position in %q: %w", s, err)
	}
	if end < start {
		return nil, fmt.Errorf("end position before start position in %q", s)
	}
	return &chunk.Region{Chrom: chromPart, Start: start, End: end}, nil
}

// writeInBatches applies the --temp-buffer batching: when the cohort
// is no larger than one batch, it streams straight to out; otherwise
// it spools each sample batch to its own temp file (removed
// immediately after opening, so the handle is the file's only
// reference) and merges them back into one VCF in batch order.
func writeInBatches(out io.Writer, result *chunk.Result, format vcfio.OutputFormat, batchSize int) error {
	numSamples := len(result.SampleIDs)
	if batchSize <= 0 || batchSize >= numSamples {
		return vcfio.WriteDosages(out, result.Panel, result.SampleIDs, &result.Results, result.RSquared, format)
	}

	var sampleIDBatches [][]string
	var spools []io.Reader
	for start := 0; start < numSamples; start += batchSize {
		end := start + batchSize
		if end > numSamples {
			end = numSamples
		}

		spool, err := os.CreateTemp("", "impute-batch-*")
		if err != nil {
			return fmt.Errorf("creating temp batch file: %w", err)
		}
		os.Remove(spool.Name())
		defer spool.Close()

		window := result.Results.ColumnWindow(2*start, 2*(end-start))
		if err := vcfio.WriteDosageBatchRows(spool, result.Panel, &window, format); err != nil {
			return fmt.Errorf("writing batch %d: %w", start/batchSize, err)
		}
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding batch %d: %w", start/batchSize, err)
		}

		sampleIDBatches = append(sampleIDBatches, result.SampleIDs[start:end])
		spools = append(spools, spool)
	}

	return vcfio.MergeDosageBatches(out, result.Panel, sampleIDBatches, spools, result.RSquared, format)
}

func getPositional(index int, help string) string {
	if index >= len(os.Args) {
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return os.Args[index]
}

func parseOutputFormat(spec string) (vcfio.OutputFormat, error) {
	var f vcfio.OutputFormat
	if spec == "" {
		return vcfio.DefaultOutputFormat(), nil
	}
	for _, key := range splitSampleIDs(spec) {
		switch key {
		case "GT":
			f.GT = true
		case "DS":
			f.DS = true
		case "HDS":
			f.HDS = true
		case "GP":
			f.GP = true
		case "SD":
			f.SD = true
		default:
			return f, fmt.Errorf("cmd: unknown --format field %q", key)
		}
	}
	return f, nil
}
