package internal

import (
	"os"
	"path/filepath"
)

// FullPathname resolves filename to an absolute path against the
// current working directory, for clearer diagnostics when a CLI flag
// carries a relative path.
func FullPathname(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return filename, nil
	}
	wd, err := os.Getwd()
	return filepath.Join(wd, filename), err
}
