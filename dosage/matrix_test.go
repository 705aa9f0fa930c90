package dosage

import "testing"

func TestMatrixResizeFillsEOV(t *testing.T) {
	var m Matrix
	m.Resize(3, 2)
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			if got := m.Get(r, c); got != EOV {
				t.Errorf("Get(%d,%d) = %v, want EOV", r, c, got)
			}
		}
	}
}

func TestMatrixSetGetRoundTrip(t *testing.T) {
	var m Matrix
	m.Resize(2, 2)
	m.Set(1, 0, 0.25)
	if got := m.Get(1, 0); got != 0.25 {
		t.Errorf("Get(1,0) = %v, want 0.25", got)
	}
	if got := m.Get(1, 1); got != EOV {
		t.Errorf("Get(1,1) = %v, want untouched EOV", got)
	}
}

func TestMatrixRowIsMutableView(t *testing.T) {
	var m Matrix
	m.Resize(2, 3)
	row := m.Row(0)
	row[1] = 0.5
	if got := m.Get(0, 1); got != 0.5 {
		t.Errorf("Get(0,1) = %v, want 0.5 after mutating Row(0) view", got)
	}
}

func TestMatrixTruncateNarrowsColsWithoutTouchingStorage(t *testing.T) {
	var m Matrix
	m.Resize(2, 4)
	m.Set(0, 3, 0.9)
	m.Truncate(2)
	if got := m.Cols(); got != 2 {
		t.Errorf("Cols() = %d, want 2", got)
	}
	// Growing back reuses the backing storage but refills every cell
	// with EOV, so the value written before truncation is gone.
	m.Resize(2, 4)
	if got := m.Get(0, 3); got != EOV {
		t.Errorf("Get(0,3) after Resize = %v, want EOV (Resize always refills)", got)
	}
}

func TestResultsResizeSizesBothMatrices(t *testing.T) {
	var r Results
	r.Resize(10, 4, 6)
	if got := r.Dosages.Rows(); got != 10 {
		t.Errorf("Dosages.Rows() = %d, want 10", got)
	}
	if got := r.LooDosages.Rows(); got != 4 {
		t.Errorf("LooDosages.Rows() = %d, want 4", got)
	}
	if got := r.Dosages.Cols(); got != 6 {
		t.Errorf("Dosages.Cols() = %d, want 6", got)
	}
	if got := r.LooDosages.Cols(); got != 6 {
		t.Errorf("LooDosages.Cols() = %d, want 6", got)
	}
}
