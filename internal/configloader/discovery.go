package configloader

import (
	"os"
	"path/filepath"
)

// configFileNames are searched in order at each directory level.
//
//nolint:gochecknoglobals // Read-only lookup table.
var configFileNames = []string{
	".kotoba.yml",
	".kotoba.yaml",
	"kotoba.yml",
	"kotoba.yaml",
}

// Discover walks from dir up to the filesystem root looking for a
// configuration file. It returns the first hit, or "".
func Discover(dir string) string {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range configFileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
