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

// Package refsite holds the immutable per-variant metadata shared by
// every reference-panel record. It has no behavior beyond validation:
// error parameter, recombination probability, and genetic position
// are carried as optional fields on one flat struct rather than a
// class hierarchy, since every reference variant needs all three at
// some point in the HMM's traversal.
package refsite

import (
	"fmt"
	"math"

	"github.com/refpanel/impute/utils"
)

// DefaultErr is the default per-site error parameter used when
// neither the genetic map file nor the reference panel's own
// annotations supply one.
const DefaultErr = 1e-5

// Site is the immutable metadata for one reference variant.
type Site struct {
	Chrom utils.Symbol
	Pos   int64 // 1-based
	ID    string
	Ref   string
	Alt   string

	Err   float64 // error parameter epsilon, in [0, 0.5]
	Recom float64 // recombination probability to the next site, in [0, 0.5]
	CM    float64 // centimorgan position; meaningful only when HasCM is set
	HasCM bool

	AlleleCount int
}

// HasGeneticPosition reports whether CM carries a meaningful value.
func (s *Site) HasGeneticPosition() bool {
	return s.HasCM
}

// Validate enforces that Err and Recom are finite probabilities in
// [0, 0.5]. The caller is
// responsible for enforcing that the final site in a panel has
// Recom == 0, since that is a property of the whole panel, not of one
// site.
func (s *Site) Validate() error {
	if math.IsNaN(s.Err) || math.IsInf(s.Err, 0) || s.Err < 0 || s.Err > 0.5 {
		return fmt.Errorf("refsite: invalid error parameter %v at %s:%d", s.Err, string(*s.Chrom), s.Pos)
	}
	if math.IsNaN(s.Recom) || math.IsInf(s.Recom, 0) || s.Recom < 0 || s.Recom > 0.5 {
		return fmt.Errorf("refsite: invalid recombination probability %v at %s:%d", s.Recom, string(*s.Chrom), s.Pos)
	}
	return nil
}
