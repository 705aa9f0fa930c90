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

import "os/exec"

// RunCmd runs an external command with its stdout/stderr already wired
// by the caller, returning any failure instead of panicking, so the
// collaborator subcommands can report it through the normal
// cmd.Impute-style error path rather than crashing the process.
func RunCmd(cmd *exec.Cmd) error {
	return cmd.Run()
}
