// impute: a reference-panel HMM genotype imputation engine.
// Copyright (c) 2026 the impute authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.

// Package dosage holds the dense variants x haplotypes posterior
// matrices the HMM engine writes into, as a row-major flat slice plus
// a row/column count rather than a slice of slices.
package dosage

import "math"

// EOV is the sentinel value written to a matrix cell whose haplotype
// column does not exist for the sample at that ploidy slot.
const EOV = math.MaxFloat32

// Matrix is a dense row-major (variant x haplotype) matrix of dosage
// values, defaulting to and able to retain the EOV sentinel.
type Matrix struct {
	rows, cols int
	data       []float32
}

// Resize sets the matrix's row and column counts independently,
// filling every cell with EOV. Existing backing storage is reused
// when it is large enough.
func (m *Matrix) Resize(rows, cols int) {
	m.rows, m.cols = rows, cols
	total := rows * cols
	if total <= cap(m.data) {
		m.data = m.data[:total]
	} else {
		m.data = make([]float32, total)
	}
	for i := range m.data {
		m.data[i] = EOV
	}
}

// Rows is the number of variant rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols is the number of haplotype columns.
func (m *Matrix) Cols() int { return m.cols }

// Get returns the dosage at (variant, haplotype).
func (m *Matrix) Get(variant, hap int) float32 {
	return m.data[variant*m.cols+hap]
}

// Set writes the dosage at (variant, haplotype).
func (m *Matrix) Set(variant, hap int, value float32) {
	m.data[variant*m.cols+hap] = value
}

// Row returns a mutable view of one variant's row across all
// haplotype columns.
func (m *Matrix) Row(variant int) []float32 {
	offset := variant * m.cols
	return m.data[offset : offset+m.cols]
}

// Truncate narrows the matrix's usable column count to n, for a final
// sample batch smaller than the configured batch width. The
// underlying storage is left untouched so a subsequent Resize can
// reuse it.
func (m *Matrix) Truncate(n int) {
	if n > m.cols {
		return
	}
	m.cols = n
}

// Results bundles the two dosage matrices the backward pass
// populates: the dense full-panel dosages and the leave-one-out
// dosages restricted to typed variants.
type Results struct {
	Dosages    Matrix // [fullPanelVariants][batchHaplotypes]
	LooDosages Matrix // [typedVariants][batchHaplotypes]
}

// Resize sizes both matrices for a new haplotype batch.
func (r *Results) Resize(fullVariants, typedVariants, batchWidth int) {
	r.Dosages.Resize(fullVariants, batchWidth)
	r.LooDosages.Resize(typedVariants, batchWidth)
}

// Truncate narrows both matrices to the given column count.
func (r *Results) Truncate(n int) {
	r.Dosages.Truncate(n)
	r.LooDosages.Truncate(n)
}

// ColumnWindow copies out the [colStart, colStart+width) haplotype
// columns of both matrices into a freshly sized Results, for spooling
// one --temp-buffer sample batch's worth of a run already computed
// over the whole cohort.
func (r *Results) ColumnWindow(colStart, width int) Results {
	var out Results
	out.Resize(r.Dosages.Rows(), r.LooDosages.Rows(), width)
	for row := 0; row < r.Dosages.Rows(); row++ {
		for c := 0; c < width; c++ {
			out.Dosages.Set(row, c, r.Dosages.Get(row, colStart+c))
		}
	}
	for row := 0; row < r.LooDosages.Rows(); row++ {
		for c := 0; c < width; c++ {
			out.LooDosages.Set(row, c, r.LooDosages.Get(row, colStart+c))
		}
	}
	return out
}
