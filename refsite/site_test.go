package refsite

import (
	"math"
	"testing"

	"github.com/refpanel/impute/utils"
)

func TestValidateAcceptsInRangeParameters(t *testing.T) {
	chrom := utils.Intern("chr1")
	s := &Site{Chrom: chrom, Pos: 100, Err: 1e-5, Recom: 0.01}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsOutOfRangeErrAndRecom(t *testing.T) {
	chrom := utils.Intern("chr1")
	cases := []*Site{
		{Chrom: chrom, Pos: 1, Err: -0.1, Recom: 0},
		{Chrom: chrom, Pos: 1, Err: 0.6, Recom: 0},
		{Chrom: chrom, Pos: 1, Err: math.NaN(), Recom: 0},
		{Chrom: chrom, Pos: 1, Err: 0, Recom: -0.1},
		{Chrom: chrom, Pos: 1, Err: 0, Recom: 0.6},
		{Chrom: chrom, Pos: 1, Err: 0, Recom: math.Inf(1)},
	}
	for i, s := range cases {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}

func TestHasGeneticPositionTracksHasCM(t *testing.T) {
	s := &Site{}
	if s.HasGeneticPosition() {
		t.Error("HasGeneticPosition() = true for zero-value site")
	}
	s.CM, s.HasCM = 12.5, true
	if !s.HasGeneticPosition() {
		t.Error("HasGeneticPosition() = false after setting HasCM")
	}
}
