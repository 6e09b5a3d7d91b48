package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ListDocuments walks the extracted catalog and returns the per-book RDF
// file paths in ascending book-id order. The configured limit caps the
// result; zero means no cap.
func (s *Source) ListDocuments(root string) ([]string, error) {
	epubDir := filepath.Join(root, "cache", "epub")
	entries, err := os.ReadDir(epubDir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir %s: %w", epubDir, err)
	}

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, convErr := strconv.ParseInt(e.Name(), 10, 64)
		if convErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var docs []string
	for _, id := range ids {
		matches, globErr := filepath.Glob(filepath.Join(epubDir, strconv.FormatInt(id, 10), "*.rdf"))
		if globErr != nil {
			return nil, fmt.Errorf("glob rdf files: %w", globErr)
		}
		sort.Strings(matches)
		docs = append(docs, matches...)
		if s.cfg.Limit > 0 && len(docs) >= s.cfg.Limit {
			docs = docs[:s.cfg.Limit]
			break
		}
	}
	return docs, nil
}
