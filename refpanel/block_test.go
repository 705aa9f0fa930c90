package refpanel

import (
	"testing"

	"github.com/refpanel/impute/refsite"
	"github.com/refpanel/impute/utils"
)

func site(pos int64) *refsite.Site {
	chrom := utils.Intern("chr1")
	return &refsite.Site{Chrom: chrom, Pos: pos, Ref: "A", Alt: "G"}
}

func TestBlockCardinalitiesSumToNonSentinel(t *testing.T) {
	expandedMap := []int32{0, 0, 1, 1, 1, EOV}
	b, err := NewBlock(expandedMap, 2)
	if err != nil {
		t.Fatal(err)
	}
	var sum int32
	for _, c := range b.Cardinalities() {
		sum += c
	}
	if int(sum) != b.NonSentinelCount() {
		t.Errorf("sum(cardinalities)=%d, NonSentinelCount()=%d", sum, b.NonSentinelCount())
	}
	if b.NonSentinelCount() != 5 {
		t.Errorf("NonSentinelCount() = %d, want 5", b.NonSentinelCount())
	}
}

func TestBlockAddVariantComputesAC(t *testing.T) {
	expandedMap := []int32{0, 0, 1, 1, 1}
	b, err := NewBlock(expandedMap, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddVariant(site(100), []uint8{1, 0}); err != nil {
		t.Fatal(err)
	}
	if b.Variants()[0].AC != 2 {
		t.Errorf("AC = %d, want 2", b.Variants()[0].AC)
	}
}

func TestBlockRejectsOutOfRangeExpandedMap(t *testing.T) {
	if _, err := NewBlock([]int32{5}, 2); err == nil {
		t.Error("expected error for out-of-range expanded map entry")
	}
}

func TestReverseMapInvariant(t *testing.T) {
	expandedMap := []int32{0, 1, 0, EOV, 1, 2}
	b, err := NewBlock(expandedMap, 3)
	if err != nil {
		t.Fatal(err)
	}
	rm := b.ReverseMap()
	total := 0
	for _, hs := range rm {
		total += len(hs)
	}
	if total != b.NonSentinelCount() {
		t.Errorf("sum(|reverseMap[u]|)=%d, NonSentinelCount()=%d", total, b.NonSentinelCount())
	}
	for u, hs := range rm {
		for _, h := range hs {
			if expandedMap[h] != int32(u) {
				t.Errorf("reverseMap[%d] contains h=%d but expandedMap[h]=%d", u, h, expandedMap[h])
			}
		}
	}
}
