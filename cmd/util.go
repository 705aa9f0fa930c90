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
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/refpanel/impute/internal"
	"github.com/refpanel/impute/utils"
)

// ProgramMessage is the first line printed when the impute binary is
// invoked.
var ProgramMessage = fmt.Sprint(
	"\n", utils.ProgramName, " version ", utils.ProgramVersion,
	" compiled with ", runtime.Version(), " ", internal.InvariantsMessage, "- see ", utils.ProgramURL, " for more information.\n",
)

// HelpMessage is printed to show the top-level --help flag.
const HelpMessage = "Print command details:\n[--help]\n"

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func checkExist(parameter, filename string) bool {
	if filename == "" {
		log.Printf("Error: Missing filename for %v.\n", parameter)
		return false
	}
	if _, err := os.Stat(filename); err != nil {
		full, ferr := internal.FullPathname(filename)
		if ferr != nil {
			full = filename
		}
		log.Printf("Error: cannot access file %v for %v: %v.\n", full, parameter, err)
		return false
	}
	return true
}

func checkCreate(parameter, filename string) bool {
	if filename == "" {
		log.Printf("Error: Missing filename for %v.\n", parameter)
		return false
	}
	if f, err := os.Create(filename); err != nil {
		full, ferr := internal.FullPathname(filename)
		if ferr != nil {
			full = filename
		}
		log.Printf("Error: cannot create file %v for %v: %v.\n", full, parameter, err)
		return false
	} else {
		_ = f.Close()
	}
	return true
}

// splitSampleIDs parses a comma-separated --sample-ids value.
func splitSampleIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readSampleIDsFile parses one sample ID per line from a --sample-ids-file.
func readSampleIDsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			ids = append(ids, line)
		}
	}
	return ids, scanner.Err()
}
