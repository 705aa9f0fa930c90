package vcfio

import (
	"strings"
	"testing"

	"github.com/refpanel/impute/target"
)

func TestReadTargetVCFBiallelicGenotypes(t *testing.T) {
	src := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
		"chr1\t100\t.\tA\tG\t.\t.\t.\tGT\t0|1\t1/1\n"

	tp, err := ReadTargetVCF(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if got := tp.SampleIDs; len(got) != 2 || got[0] != "S1" || got[1] != "S2" {
		t.Fatalf("SampleIDs = %v, want [S1 S2]", got)
	}
	if len(tp.Variants) != 1 {
		t.Fatalf("len(Variants) = %d, want 1", len(tp.Variants))
	}
	v := tp.Variants[0]
	if want := []int8{0, 1, 1, 1}; !gtEqual(v.GT, want) {
		t.Errorf("GT = %v, want %v", v.GT, want)
	}
}

func TestReadTargetVCFSplitsMultiallelicSites(t *testing.T) {
	src := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"chr1\t100\t.\tA\tG,T\t.\t.\t.\tGT\t1|2\n"

	tp, err := ReadTargetVCF(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(tp.Variants) != 2 {
		t.Fatalf("len(Variants) = %d, want 2", len(tp.Variants))
	}
	// Allele 1 (G) is called on haplotype 0, allele 2 (T) on haplotype 1.
	if want := []int8{1, 0}; !gtEqual(tp.Variants[0].GT, want) {
		t.Errorf("G-split GT = %v, want %v", tp.Variants[0].GT, want)
	}
	if want := []int8{0, 1}; !gtEqual(tp.Variants[1].GT, want) {
		t.Errorf("T-split GT = %v, want %v", tp.Variants[1].GT, want)
	}
}

func TestReadTargetVCFMarksMissingGenotype(t *testing.T) {
	src := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"chr1\t100\t.\tA\tG\t.\t.\t.\tGT\t.|.\n"

	tp, err := ReadTargetVCF(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if want := []int8{target.Missing, target.Missing}; !gtEqual(tp.Variants[0].GT, want) {
		t.Errorf("GT = %v, want %v", tp.Variants[0].GT, want)
	}
}

func TestReadTargetVCFRejectsSampleColumnMismatch(t *testing.T) {
	src := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
		"chr1\t100\t.\tA\tG\t.\t.\t.\tGT\t0|1\n"

	if _, err := ReadTargetVCF(strings.NewReader(src)); err == nil {
		t.Error("expected an error for a data line with fewer sample columns than the header declares")
	}
}

func gtEqual(a, b []int8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
