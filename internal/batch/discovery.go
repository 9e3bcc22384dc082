package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barcodekit/internal/utils"
)

// nameFilter selects files by glob patterns on their lower-cased base name.
// Exclusions win over inclusions; no inclusions means everything passes.
type nameFilter struct {
	include []string
	exclude []string
}

func newNameFilter(include, exclude []string) (*nameFilter, error) {
	f := &nameFilter{}
	var err error
	if f.include, err = normalizePatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = normalizePatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func normalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *nameFilter) allows(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if anyMatch(base, f.exclude) {
		return false
	}
	return len(f.include) == 0 || anyMatch(base, f.include)
}

func anyMatch(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// discoverImageFiles expands args to image files allowed by the config filters.
func discoverImageFiles(args []string, config *Config) ([]string, error) {
	filter, err := newNameFilter(config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	files, err := utils.DiscoverImages(args, config.Recursive)
	if err != nil {
		return nil, err
	}
	kept := files[:0]
	for _, f := range files {
		if filter.allows(f) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
