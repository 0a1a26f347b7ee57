package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// extSet builds the accepted extension set; include entries that are not supported are ignored.
func extSet(include []string) map[string]struct{} {
	supported := constants.SupportedExtensions()
	if len(include) == 0 {
		return supported
	}
	out := make(map[string]struct{}, len(include))
	for _, e := range include {
		e = constants.NormalizeExt(e)
		if _, ok := supported[e]; ok {
			out[e] = struct{}{}
		}
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
