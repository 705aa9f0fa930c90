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

package utils

import "unsafe"

// A Symbol is a unique pointer to a chromosome name string, so that
// two sites on the same chromosome can be compared by pointer
// (refpanel/chunk.siteKey, gmap's per-chromosome index) instead of by
// string content.
type Symbol *string

// SymbolHash reduces a Symbol to a uint64 for use as a hash-map key,
// hashing the pointer itself rather than the string it references,
// since Intern already guarantees equal chromosome names share one
// pointer.
func SymbolHash(s Symbol) uint64 {
	return uint64(uintptr(unsafe.Pointer(s)))
}

var symbolTable = make(map[string]Symbol)

// Intern returns a Symbol for the given chromosome name, always
// returning the same pointer for equal strings and different
// pointers for unequal ones: for s1, s2, s1 == s2 implies Intern(s1)
// == Intern(s2), and *Intern(s) == s always holds.
//
// Every caller (vcfio's reference/target parsers, gmap.Load) interns
// chromosome names while sequentially scanning its own input file, so
// this map is never shared across goroutines and needs no locking;
// callers that later fan out across a worker pool (chunk.Run's
// parallel.Range) only ever read the already-interned Symbol values,
// never call Intern itself.
func Intern(s string) Symbol {
	if sym, ok := symbolTable[s]; ok {
		return sym
	}
	sym := Symbol(&s)
	symbolTable[s] = sym
	return sym
}
