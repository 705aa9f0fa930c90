package gmap

import (
	"math"
	"strings"
	"testing"

	"github.com/refpanel/impute/utils"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestRecombProbRoundTrip(t *testing.T) {
	for _, cm := range []float64{0, 1, 10, 50, 100} {
		r := RecombProb(cm)
		back := CMFromRecombProb(r)
		if !almostEqual(cm, back, 1e-6) {
			t.Errorf("RecombProb/CMFromRecombProb round trip: cm=%v got back=%v", cm, back)
		}
	}
}

func TestSwitchProbRoundTrip(t *testing.T) {
	for _, cm := range []float64{0, 1, 10, 50} {
		p := SwitchProb(cm)
		back := CMFromSwitchProb(p)
		if !almostEqual(cm, back, 1e-6) {
			t.Errorf("SwitchProb/CMFromSwitchProb round trip: cm=%v got back=%v", cm, back)
		}
	}
}

func TestFlankingDecayDisabled(t *testing.T) {
	if got := FlankingDecay(42, 0); got != 1 {
		t.Errorf("FlankingDecay with lambda=0 = %v, want 1", got)
	}
}

func TestChromMapInterpolation(t *testing.T) {
	cm := &ChromMap{Anchors: []Anchor{
		{Pos: 1000, CM: 0},
		{Pos: 2000, CM: 1},
		{Pos: 4000, CM: 3},
	}}
	if got := cm.CM(1500); !almostEqual(got, 0.5, 1e-9) {
		t.Errorf("interpolated CM(1500) = %v, want 0.5", got)
	}
	if got := cm.CM(500); !almostEqual(got, -0.5, 1e-9) {
		t.Errorf("extrapolated CM(500) = %v, want -0.5 (slope from first anchor)", got)
	}
	if got := cm.CM(5000); !almostEqual(got, 4, 1e-9) {
		t.Errorf("extrapolated CM(5000) = %v, want 4 (slope from last anchor)", got)
	}
}

func TestLoadNewSchema(t *testing.T) {
	data := "#chrom\tpos\tcM\n" +
		"chr1\t1000\t0.0\n" +
		"chr1\t2000\t1.0\n"
	m, err := Load(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cm := m.Chrom(utils.Intern("chr1"))
	if cm == nil {
		t.Fatal("expected chr1 map")
	}
	if got := cm.CM(1500); !almostEqual(got, 0.5, 1e-9) {
		t.Errorf("CM(1500) = %v, want 0.5", got)
	}
}

func TestLoadLegacySchema(t *testing.T) {
	data := "chr1 dummy 0.0 1000\n" +
		"chr1 dummy 1.0 2000\n"
	m, err := Load(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cm := m.Chrom(utils.Intern("chr1"))
	if cm == nil {
		t.Fatal("expected chr1 map")
	}
	if got := cm.CM(1500); !almostEqual(got, 0.5, 1e-9) {
		t.Errorf("CM(1500) = %v, want 0.5", got)
	}
}

func TestAssignRecomb(t *testing.T) {
	cm := []float64{0, 1, 2}
	recom := make([]float64, 3)
	AssignRecomb(cm, 0, recom)
	if recom[2] != 0 {
		t.Errorf("last site recom = %v, want 0", recom[2])
	}
	want := RecombProb(1)
	if !almostEqual(recom[0], want, 1e-12) {
		t.Errorf("recom[0] = %v, want %v", recom[0], want)
	}
}
