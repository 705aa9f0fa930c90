package refpanel

import "testing"

func mkBlock(t *testing.T, expandedMap []int32, numUnique int, positions ...int64) *Block {
	t.Helper()
	b, err := NewBlock(expandedMap, numUnique)
	if err != nil {
		t.Fatal(err)
	}
	for _, pos := range positions {
		gt := make([]uint8, numUnique)
		if err := b.AddVariant(site(pos), gt); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestPanelDropsBoundaryDuplicate(t *testing.T) {
	em := []int32{0, 1}
	b1 := mkBlock(t, em, 2, 100, 200)
	b2 := mkBlock(t, em, 2, 200, 300) // 200 duplicates b1's last variant

	p, err := NewPanel([]*Block{b1, b2})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.VariantSize(); got != 3 {
		t.Fatalf("VariantSize() = %d, want 3 (100,200,300 with dedup)", got)
	}
	if p.Site(1, 0).Pos != 300 {
		t.Errorf("expected block 1 to now start at 300 after dedup, got %d", p.Site(1, 0).Pos)
	}
}

func TestPanelIteratorForwardBackward(t *testing.T) {
	em := []int32{0, 1}
	b1 := mkBlock(t, em, 2, 100, 200)
	b2 := mkBlock(t, em, 2, 300, 400)
	p, err := NewPanel([]*Block{b1, b2})
	if err != nil {
		t.Fatal(err)
	}

	var forward []int64
	it := p.Begin()
	for it.Valid() {
		forward = append(forward, it.Variant().Site.Pos)
		it.Next()
	}
	if !it.AfterEnd() {
		t.Error("expected iterator to end AfterEnd")
	}
	want := []int64{100, 200, 300, 400}
	if len(forward) != len(want) {
		t.Fatalf("forward walk = %v, want %v", forward, want)
	}
	for i := range want {
		if forward[i] != want[i] {
			t.Errorf("forward[%d] = %d, want %d", i, forward[i], want[i])
		}
	}

	var backward []int64
	it = p.End()
	for it.Valid() {
		backward = append(backward, it.Variant().Site.Pos)
		it.Prev()
	}
	if !it.BeforeStart() {
		t.Error("expected backward walk to terminate BeforeStart exactly once")
	}
	for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
		backward[i], backward[j] = backward[j], backward[i]
	}
	for i := range want {
		if backward[i] != want[i] {
			t.Errorf("backward[%d] (reversed) = %d, want %d", i, backward[i], want[i])
		}
	}
}

func TestPanelRejectsInconsistentHPrime(t *testing.T) {
	b1 := mkBlock(t, []int32{0, 1, 1}, 2, 100)
	b2 := mkBlock(t, []int32{0, 1}, 2, 200)
	if _, err := NewPanel([]*Block{b1, b2}); err == nil {
		t.Error("expected error for inconsistent H' across blocks")
	}
}
