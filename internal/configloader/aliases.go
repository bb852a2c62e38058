package configloader

import (
	"path/filepath"
	"strings"
)

// ResolveAlias picks the diagnostic alias for a rule entry: an explicit `as`
// wins, otherwise the wasm file's basename without extension. Two rules
// resolving to the same alias fail core validation; the `as` field exists to
// disambiguate them.
func ResolveAlias(as, path string) string {
	if as != "" {
		return as
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
