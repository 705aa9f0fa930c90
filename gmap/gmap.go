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

// Package gmap converts between base-pair positions and genetic
// distance (centimorgans), and between centimorgan distance and
// recombination/switch probabilities.
package gmap

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/utils"
)

// RecombProb converts a genetic distance in centimorgans to a
// recombination probability using the Haldane map function.
func RecombProb(cM float64) float64 {
	return (1 - math.Exp(-cM/50)) / 2
}

// CMFromRecombProb is the inverse of RecombProb.
func CMFromRecombProb(r float64) float64 {
	return 50 * math.Log(1/(1-2*r))
}

// SwitchProb converts a genetic distance in centimorgans to a switch
// probability.
func SwitchProb(cM float64) float64 {
	return 1 - math.Exp(-cM/100)
}

// CMFromSwitchProb is the inverse of SwitchProb.
func CMFromSwitchProb(p float64) float64 {
	return 100 * math.Log(1/(1-p))
}

// DecayedSwitchProb is SwitchProb scaled by a decay factor lambda.
// Flanking-region dosage decay itself uses FlankingDecay.
func DecayedSwitchProb(cM, lambda float64) float64 {
	return 1 - math.Exp(-lambda*cM/100)
}

// FlankingDecay returns the exp(-lambda*cM/100) attenuation factor
// applied to a dosage's distance from the allele frequency in a
// flanking overlap region. lambda == 0 disables decay (returns 1).
func FlankingDecay(cM, lambda float64) float64 {
	if lambda == 0 {
		return 1
	}
	return math.Exp(-lambda * cM / 100)
}

// Anchor is one (position, cM) sample of a chromosome's genetic map.
type Anchor struct {
	Pos int64
	CM  float64
}

// ChromMap is a chromosome's sorted sequence of genetic map anchors.
type ChromMap struct {
	Anchors []Anchor
}

// Map holds the per-chromosome genetic maps loaded from a genetic map
// file.
type Map struct {
	chroms map[utils.Symbol]*ChromMap
}

// NewMap creates an empty genetic map.
func NewMap() *Map {
	return &Map{chroms: make(map[utils.Symbol]*ChromMap)}
}

// Chrom returns the ChromMap for the given chromosome, or nil if the
// genetic map file didn't cover it.
func (m *Map) Chrom(chrom utils.Symbol) *ChromMap {
	return m.chroms[chrom]
}

// CM returns the genetic distance in centimorgans of pos on this
// chromosome's map:
//
//   - at or before the first anchor: extrapolate from the origin
//     using the first anchor's slope.
//   - between two anchors: linearly interpolate.
//   - past the last anchor: extrapolate using the last known slope.
func (c *ChromMap) CM(pos int64) float64 {
	anchors := c.Anchors
	if len(anchors) == 0 {
		return 0
	}
	if len(anchors) == 1 {
		return anchors[0].CM
	}
	if pos <= anchors[0].Pos {
		slope := (anchors[1].CM - anchors[0].CM) / float64(anchors[1].Pos-anchors[0].Pos)
		return anchors[0].CM + slope*float64(pos-anchors[0].Pos)
	}
	last := len(anchors) - 1
	if pos >= anchors[last].Pos {
		slope := (anchors[last].CM - anchors[last-1].CM) / float64(anchors[last].Pos-anchors[last-1].Pos)
		return anchors[last].CM + slope*float64(pos-anchors[last].Pos)
	}
	i := sort.Search(len(anchors), func(i int) bool { return anchors[i].Pos >= pos })
	prev, cur := anchors[i-1], anchors[i]
	if cur.Pos == prev.Pos {
		return prev.CM
	}
	frac := float64(pos-prev.Pos) / float64(cur.Pos-prev.Pos)
	return prev.CM + frac*(cur.CM-prev.CM)
}

// schema distinguishes the two genetic map file layouts Load
// recognizes.
type schema int

const (
	schemaNew schema = iota
	schemaLegacy
)

// Load reads a genetic map file, selecting between the two supported
// schemas by inspecting the header:
//
//   - new: tab-separated "chrom pos cM", with "#"-prefixed header lines.
//   - legacy: four columns "chrom <discard> cM pos", no header.
func Load(r io.Reader) (*Map, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	m := NewMap()
	sc := schemaLegacy
	sawHeader := false
	firstDataLine := true

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			sawHeader = true
			sc = schemaNew
			continue
		}
		fields := strings.Fields(line)
		if firstDataLine {
			firstDataLine = false
			if !sawHeader && looksLikeNewSchemaHeader(fields) {
				sc = schemaNew
				continue
			}
		}
		var chrom string
		var pos int64
		var cM float64
		switch sc {
		case schemaNew:
			if len(fields) < 3 {
				return nil, fmt.Errorf("gmap: malformed line %q: expected 3 columns", line)
			}
			chrom = fields[0]
			pos = internal.ParseInt(fields[1], 10, 64)
			cM = internal.ParseFloat(fields[2], 64)
		default:
			if len(fields) < 4 {
				return nil, fmt.Errorf("gmap: malformed line %q: expected 4 columns", line)
			}
			chrom = fields[0]
			cM = internal.ParseFloat(fields[2], 64)
			pos = internal.ParseInt(fields[3], 10, 64)
		}
		sym := utils.Intern(chrom)
		cm := m.chroms[sym]
		if cm == nil {
			cm = &ChromMap{}
			m.chroms[sym] = cm
		}
		cm.Anchors = append(cm.Anchors, Anchor{Pos: pos, CM: cM})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gmap: reading genetic map: %w", err)
	}
	for _, cm := range m.chroms {
		sort.Slice(cm.Anchors, func(i, j int) bool { return cm.Anchors[i].Pos < cm.Anchors[j].Pos })
	}
	return m, nil
}

// looksLikeNewSchemaHeader recognizes an unmarked header line of the
// new schema (e.g. "Chromosome Position(bp) Rate(cM/Mb) Map(cM)"
// style files sometimes ship without a leading "#").
func looksLikeNewSchemaHeader(fields []string) bool {
	if len(fields) < 3 {
		return false
	}
	for _, f := range fields[1:3] {
		if internal.ParseFloatSafe(f) != nil {
			return false
		}
	}
	return true
}

// DefaultMinRecom is the floor applied to per-interval recombination
// probabilities when the caller doesn't override --min-recom.
const DefaultMinRecom = 0

// AssignRecomb sets the recombination probability from each site to
// the next: recom[i] = max(minRecom, Haldane(cM[i+1]-cM[i])). The
// final site's recom is always 0. cm and recom must have equal length.
func AssignRecomb(cm []float64, minRecom float64, recom []float64) {
	n := len(cm)
	for i := 0; i < n-1; i++ {
		r := RecombProb(cm[i+1] - cm[i])
		if r < minRecom {
			r = minRecom
		}
		recom[i] = r
	}
	if n > 0 {
		recom[n-1] = 0
	}
}
