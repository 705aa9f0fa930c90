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

package internal

import "sync"

// lineBufferHint is a starting capacity roughly matching one
// GT:DS-formatted VCF data line for a few hundred samples, so the
// first buffer vcfio's writers pull per goroutine only grows once
// instead of on every append during the initial ramp-up.
const lineBufferHint = 4096

var bufPool = sync.Pool{New: func() interface{} {
	return make([]byte, 0, lineBufferHint)
}}

// ReserveByteBuffer reuses a pooled []byte (or allocates one sized for
// a typical output line) for vcfio's per-variant line-assembly loops,
// avoiding one allocation per variant per goroutine on the dosage
// write path. Callers reset it with buf[:0] before their first append
// and must return it via ReleaseByteBuffer when done.
func ReserveByteBuffer() []byte {
	return bufPool.Get().([]byte)[:0]
}

// ReleaseByteBuffer returns buf to the pool ReserveByteBuffer draws
// from. Do not use buf after calling this.
func ReleaseByteBuffer(buf []byte) {
	bufPool.Put(buf)
}
