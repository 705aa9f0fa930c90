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

const (
	// ProgramName identifies the imputation binary in log/version output.
	ProgramName = "impute"

	// ProgramVersion is the version of the impute binary.
	ProgramVersion = "1.0.0"

	// ProgramURL points users at documentation for the impute binary.
	ProgramURL = "http://github.com/refpanel/impute"
)
