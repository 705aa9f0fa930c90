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

package cmd

import (
	"flag"
	"os"
	"os/exec"

	"github.com/refpanel/impute/internal"
)

// CompressReferenceHelp documents the compress-reference command.
const CompressReferenceHelp = "compress-reference input.vcf output.m3vcf\n" +
	"[--min-block-size n]\n" +
	"[--max-block-size n]\n" +
	"[--slope-unit s]\n"

// UpdateM3VCFHelp documents the update-m3vcf command.
const UpdateM3VCFHelp = "update-m3vcf input.m3vcf output.m3vcf\n"

// CompressReference shells out to the compress-reference collaborator
// binary, an external block-compression encoder outside this module's
// scope (this module only ever consumes the resulting expanded/unique
// maps).
func CompressReference() error {
	return runCollaborator("compress-reference", 4, CompressReferenceHelp)
}

// UpdateM3VCF shells out to the update-m3vcf collaborator binary,
// which migrates an older block-sentinel file to the current schema.
func UpdateM3VCF() error {
	return runCollaborator("update-m3vcf", 4, UpdateM3VCFHelp)
}

func runCollaborator(binary string, requiredArgs int, help string) error {
	var flags flag.FlagSet
	parseFlags(&flags, requiredArgs, help)

	path, err := exec.LookPath(binary)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, os.Args[2:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return internal.RunCmd(cmd)
}
