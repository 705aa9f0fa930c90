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

// impute runs Li-Stephens style HMM genotype imputation against a
// block-compressed reference panel.
//
// See https://github.com/refpanel/impute for documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/refpanel/impute/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: impute, compress-reference, update-m3vcf")
	fmt.Fprint(os.Stderr, "\n", cmd.ImputeHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.CompressReferenceHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.UpdateM3VCFHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "impute":
		err = cmd.Impute()
	case "compress-reference":
		err = cmd.CompressReference()
	case "update-m3vcf":
		err = cmd.UpdateM3VCF()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		fmt.Fprintln(os.Stderr, "Unknown command:", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
