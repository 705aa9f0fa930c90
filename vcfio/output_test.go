package vcfio

import (
	"strings"
	"testing"

	"github.com/refpanel/impute/dosage"
)

func TestWriteDosagesFormatsRequestedFields(t *testing.T) {
	src := ">\t2\t0,0,1,1\n" +
		"chr1\t100\t.\tA\tG\t0.00001\t0.1\t1,0\n"
	panel, err := ReadReferencePanel(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}

	var results dosage.Results
	results.Resize(panel.VariantSize(), 0, 2)
	results.Dosages.Set(0, 0, 0.2)
	results.Dosages.Set(0, 1, 0.8)

	var buf strings.Builder
	format := OutputFormat{GT: true, DS: true, HDS: true, GP: true, SD: true}
	if err := WriteDosages(&buf, panel, []string{"S1"}, &results, nil, format); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.Contains(out, "##FORMAT=<ID=SD") {
		t.Error("missing SD FORMAT header when format.SD is set")
	}
	if !strings.Contains(out, "GT:DS:HDS:GP:SD") {
		t.Errorf("FORMAT column %q missing expected key order", out)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	dataLine := lines[len(lines)-1]
	fields := strings.Split(dataLine, "\t")
	sample := fields[len(fields)-1]
	parts := strings.Split(sample, ":")
	if len(parts) != 5 {
		t.Fatalf("sample field %q has %d parts, want 5", sample, len(parts))
	}
	if parts[0] != "0|1" {
		t.Errorf("GT = %q, want 0|1 (hardCall(0.2)=0, hardCall(0.8)=1)", parts[0])
	}
	if parts[1] != "1.000" {
		t.Errorf("DS = %q, want 1.000 (0.2+0.8)", parts[1])
	}
	if parts[2] != "0.200,0.800" {
		t.Errorf("HDS = %q, want 0.200,0.800", parts[2])
	}
}

func TestWriteDosagesOmitsR2ForUnknownSentinel(t *testing.T) {
	src := ">\t2\t0,0,1,1\n" +
		"chr1\t100\t.\tA\tG\t0.00001\t0.1\t1,0\n"
	panel, err := ReadReferencePanel(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	var results dosage.Results
	results.Resize(panel.VariantSize(), 0, 2)

	var buf strings.Builder
	rsq := []float64{-1}
	if err := WriteDosages(&buf, panel, []string{"S1"}, &results, rsq, DefaultOutputFormat()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "R2=") {
		t.Error("R2 INFO field written for a -1 (unknown) sentinel row")
	}
}
