package attachments

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// WorkflowFiles resolves the files a workflow action sends. Files live under
// <root>/<company>/<workflow>/ and block settings name them by file name or
// glob pattern.
type WorkflowFiles struct {
	Root string
}

// Dir returns the directory holding a workflow's files.
func (w WorkflowFiles) Dir(companyID, workflowID string) string {
	return filepath.Join(w.Root, companyID, workflowID)
}

// Resolve expands the comma-separated list into file paths and sorts them
// into images and documents. Patterns that match nothing are skipped; an
// invalid pattern is an error.
func (w WorkflowFiles) Resolve(companyID, workflowID, list string) (Set, error) {
	patterns := SplitList(list)
	if len(patterns) == 0 {
		return Set{}, nil
	}
	dir := w.Dir(companyID, workflowID)
	fsys := os.DirFS(dir)

	var paths []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return Set{}, fmt.Errorf("invalid file pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return Set{}, fmt.Errorf("matching %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	return FromPaths(paths), nil
}
