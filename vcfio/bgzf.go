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

package vcfio

import (
	"bufio"
	"io"

	"github.com/refpanel/impute/utils/bgzf"
)

// AutoDecompress wraps r in a BGZF reader if its first byte marks it
// as a gzip stream, otherwise returns r unchanged, letting reference
// panels and target VCFs be handed to the readers either plain or
// bgzf-compressed.
func AutoDecompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	isGzip, err := bgzf.IsGzip(br)
	if err != nil {
		if err == io.EOF {
			return br, nil
		}
		return nil, err
	}
	if !isGzip {
		return br, nil
	}
	return bgzf.NewReader(br)
}

// CompressWriter wraps w in a BGZF writer at the given compression
// level (see compress/flate's level constants).
func CompressWriter(w io.Writer, level int) io.WriteCloser {
	return bgzf.NewWriter(w, level)
}
