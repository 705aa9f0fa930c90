package vcfio

import (
	"strings"
	"testing"
)

func TestReadWriteReferencePanelRoundTrip(t *testing.T) {
	src := ">\t2\t0,0,1,1\n" +
		"chr1\t100\t.\tA\tG\t0.00001\t0.1\t1,0\n" +
		"chr1\t200\t.\tA\tG\t0.00001\t0\t0,1\n"

	panel, err := ReadReferencePanel(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if panel.VariantSize() != 2 {
		t.Fatalf("VariantSize() = %d, want 2", panel.VariantSize())
	}
	if panel.NonSentinelCount() != 4 {
		t.Fatalf("NonSentinelCount() = %d, want 4", panel.NonSentinelCount())
	}

	var buf strings.Builder
	if err := WriteReferencePanel(&buf, panel); err != nil {
		t.Fatal(err)
	}

	panel2, err := ReadReferencePanel(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-parsing written panel: %v", err)
	}
	if panel2.VariantSize() != panel.VariantSize() {
		t.Errorf("round trip changed VariantSize: %d != %d", panel2.VariantSize(), panel.VariantSize())
	}
}

func TestReadReferencePanelRejectsVariantBeforeBlock(t *testing.T) {
	src := "chr1\t100\t.\tA\tG\t0.00001\t0.1\t1,0\n"
	if _, err := ReadReferencePanel(strings.NewReader(src)); err == nil {
		t.Error("expected error for a variant line preceding any block sentinel")
	}
}
