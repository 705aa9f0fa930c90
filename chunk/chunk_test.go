package chunk

import (
	"math"
	"strings"
	"testing"

	"github.com/refpanel/impute/hmm"
)

const testReference = ">\t2\t0,0,1,1\n" +
	"chr1\t100\t.\tA\tG\t0.00001\t0\t0,1\n" +
	"chr1\t200\t.\tA\tG\t0.00001\t0\t0,1\n" +
	"chr1\t300\t.\tA\tG\t0.00001\t0\t1,0\n"

const testTarget = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
	"chr1\t100\t.\tA\tG\t.\t.\t.\tGT\t0|0\t1|1\n" +
	"chr1\t200\t.\tA\tG\t.\t.\t.\tGT\t0|0\t1|1\n"

// TestRunImputesUntypedFromExactTemplateMatch covers a chunk where
// both target samples' haplotypes exactly match one reference
// template at every typed site: sample S1 matches unique template 0,
// S2 matches unique template 1, so the untyped chr1:300 dosage should
// come out close to that matching template's own allele there.
func TestRunImputesUntypedFromExactTemplateMatch(t *testing.T) {
	cfg := Config{HMM: hmm.DefaultConfig()}

	result, err := Run(strings.NewReader(testReference), strings.NewReader(testTarget), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if got := result.Panel.VariantSize(); got != 3 {
		t.Fatalf("full panel VariantSize() = %d, want 3", got)
	}
	if got := result.Results.Dosages.Rows(); got != 3 {
		t.Fatalf("Dosages.Rows() = %d, want 3", got)
	}
	if got := result.Results.Dosages.Cols(); got != 4 {
		t.Fatalf("Dosages.Cols() = %d, want 4 (2 samples x 2 haplotypes)", got)
	}

	// chr1:300 is untyped, row index 2. S1 (cols 0,1) matches
	// template 0, whose allele there is 1; S2 (cols 2,3) matches
	// template 1, whose allele there is 0.
	for _, col := range []int{0, 1} {
		if got := result.Results.Dosages.Get(2, col); math.Abs(float64(got)-1) > 0.05 {
			t.Errorf("Dosages[2][%d] = %v, want close to 1", col, got)
		}
	}
	for _, col := range []int{2, 3} {
		if got := result.Results.Dosages.Get(2, col); math.Abs(float64(got)) > 0.05 {
			t.Errorf("Dosages[2][%d] = %v, want close to 0", col, got)
		}
	}

	// chr1:300 has no ground truth to correlate against.
	if got := result.RSquared[2]; got != -1 {
		t.Errorf("RSquared[2] = %v, want -1 (unknown, untyped)", got)
	}
}

// TestRunRatioGateSkipsBelowThreshold checks --min-ratio-behavior=skip:
// a chunk whose typed:full ratio falls below MinRatio is dropped
// rather than imputed.
func TestRunRatioGateSkipsBelowThreshold(t *testing.T) {
	cfg := Config{
		HMM:              hmm.DefaultConfig(),
		MinRatio:         0.9, // only 2 of 3 full-panel variants are typed here
		MinRatioBehavior: RatioSkip,
	}

	result, err := Run(strings.NewReader(testReference), strings.NewReader(testTarget), nil, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (RatioSkip is not a failure)", err)
	}
	if !result.Skipped {
		t.Errorf("Result.Skipped = false, want true")
	}
}

// TestRunSampleIDsSubsetsHaplotypes covers --sample-ids: only the
// requested sample's two haplotype columns are imputed.
func TestRunSampleIDsSubsetsHaplotypes(t *testing.T) {
	cfg := Config{HMM: hmm.DefaultConfig(), SampleIDs: []string{"S2"}}

	result, err := Run(strings.NewReader(testReference), strings.NewReader(testTarget), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SampleIDs) != 1 || result.SampleIDs[0] != "S2" {
		t.Fatalf("SampleIDs = %v, want [S2]", result.SampleIDs)
	}
	if got := result.Results.Dosages.Cols(); got != 2 {
		t.Fatalf("Dosages.Cols() = %d, want 2 (one sample x 2 haplotypes)", got)
	}
}
