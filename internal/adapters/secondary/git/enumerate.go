package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// Enumerator lists the files of a working tree, excluding ignored directory
// names and doublestar glob patterns. Results are root-relative slash paths
// in sorted order, so equal trees always hash identically.
type Enumerator struct {
	ignoreDirs  map[string]struct{}
	ignoreGlobs []string
}

// NewEnumerator creates a file enumerator with the given ignore set.
func NewEnumerator(ignoreDirs, ignoreGlobs []string) *Enumerator {
	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignored[name] = struct{}{}
	}

	return &Enumerator{
		ignoreDirs:  ignored,
		ignoreGlobs: ignoreGlobs,
	}
}

// ListFiles walks root and returns every non-ignored file path.
func (e *Enumerator) ListFiles(ctx context.Context, root string) ([]string, error) {
	var paths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if info.IsDir() {
			if _, skip := e.ignoreDirs[info.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range e.ignoreGlobs {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return nil
			}
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUnavailable, err)
	}

	sort.Strings(paths)
	return paths, nil
}
