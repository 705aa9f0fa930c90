package hmm

import (
	"math"
	"testing"

	"github.com/refpanel/impute/dosage"
	"github.com/refpanel/impute/refpanel"
	"github.com/refpanel/impute/refsite"
	"github.com/refpanel/impute/utils"
)

func mkSite(pos int64, err, recom float64) *refsite.Site {
	return &refsite.Site{Chrom: utils.Intern("chr1"), Pos: pos, Ref: "A", Alt: "G", Err: err, Recom: recom}
}

func mkBlock(t *testing.T, expandedMap []int32, numUnique int, sites []*refsite.Site, gts [][]uint8) *refpanel.Block {
	t.Helper()
	b, err := refpanel.NewBlock(expandedMap, numUnique)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range sites {
		if err := b.AddVariant(s, gts[i]); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

// TestDegenerateSingleTemplate checks that a panel with one unique
// haplotype gives no recombination information, so the with-self
// dosage must equal the panel's only template, and so must the
// leave-one-out dosage (1.0 here, since that template carries alt).
func TestDegenerateSingleTemplate(t *testing.T) {
	site := mkSite(100, 1e-5, 0)
	block := mkBlock(t, []int32{0}, 1, []*refsite.Site{site}, [][]uint8{{1}})
	panel, err := refpanel.NewPanel([]*refpanel.Block{block})
	if err != nil {
		t.Fatal(err)
	}

	e := NewEngine(DefaultConfig())
	e.TraverseForward(panel, []int8{1})

	var results dosage.Results
	results.Resize(panel.VariantSize(), panel.VariantSize(), 1)
	if err := e.TraverseBackward(panel, panel, []int8{1}, 0, &results); err != nil {
		t.Fatal(err)
	}

	if got := results.Dosages.Get(0, 0); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("Dosages[0][0] = %v, want 1", got)
	}
	if got := results.LooDosages.Get(0, 0); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("LooDosages[0][0] = %v, want 1 (single-template convention)", got)
	}
}

// TestTwoBlockBoundary exercises the junction reweighting across a
// block boundary and checks the resulting dosages stay within the
// valid [0,1] range with no NaNs.
func TestTwoBlockBoundary(t *testing.T) {
	em := []int32{0, 0, 1, 1}
	s1 := mkSite(100, 1e-5, 0.2)
	s2 := mkSite(200, 1e-5, 0)
	s3 := mkSite(300, 1e-5, 0.1)
	s4 := mkSite(400, 1e-5, 0)
	b1 := mkBlock(t, em, 2, []*refsite.Site{s1, s2}, [][]uint8{{1, 0}, {0, 1}})
	b2 := mkBlock(t, em, 2, []*refsite.Site{s3, s4}, [][]uint8{{1, 1}, {0, 0}})
	panel, err := refpanel.NewPanel([]*refpanel.Block{b1, b2})
	if err != nil {
		t.Fatal(err)
	}

	gt := []int8{1, 0, 1, 0}
	e := NewEngine(DefaultConfig())
	e.TraverseForward(panel, gt)

	var results dosage.Results
	results.Resize(panel.VariantSize(), panel.VariantSize(), 1)
	if err := e.TraverseBackward(panel, panel, gt, 0, &results); err != nil {
		t.Fatal(err)
	}

	for v := 0; v < panel.VariantSize(); v++ {
		got := float64(results.Dosages.Get(v, 0))
		if math.IsNaN(got) || got < -1e-9 || got > 1+1e-9 {
			t.Errorf("Dosages[%d][0] = %v, want a value in [0,1]", v, got)
		}
	}
	if e.PrecisionJumps().Len() != uint(panel.VariantSize()) {
		t.Errorf("PrecisionJumps length = %d, want %d", e.PrecisionJumps().Len(), panel.VariantSize())
	}
}

// TestMissingObservationIsANoOp checks that conditioning on a missing
// target allele leaves the with-self and leave-one-out posteriors
// identical.
func TestMissingObservationIsANoOp(t *testing.T) {
	em := []int32{0, 0, 1, 1}
	s1 := mkSite(100, 1e-5, 0)
	b1 := mkBlock(t, em, 2, []*refsite.Site{s1}, [][]uint8{{1, 0}})
	panel, err := refpanel.NewPanel([]*refpanel.Block{b1})
	if err != nil {
		t.Fatal(err)
	}

	gt := []int8{-2} // Missing sentinel
	e := NewEngine(DefaultConfig())
	e.TraverseForward(panel, gt)

	var results dosage.Results
	results.Resize(panel.VariantSize(), panel.VariantSize(), 1)
	if err := e.TraverseBackward(panel, panel, gt, 0, &results); err != nil {
		t.Fatal(err)
	}

	dose := float64(results.Dosages.Get(0, 0))
	loo := float64(results.LooDosages.Get(0, 0))
	if math.Abs(dose-loo) > 1e-9 {
		t.Errorf("with-self dose %v and loo dose %v should match when the observation is missing", dose, loo)
	}
}
