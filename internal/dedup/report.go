package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GenerateReport renders duplicate groups as a human-readable report.
// Within a group files are ordered oldest first; paths are shown relative
// to baseDir when possible.
func GenerateReport(groups map[string][]string, baseDir string) string {
	if len(groups) == 0 {
		return "No duplicate files found."
	}

	digests := make([]string, 0, len(groups))
	for digest := range groups {
		digests = append(digests, digest)
	}
	sort.Strings(digests)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d group(s) of duplicate files:\n", len(groups))

	for i, digest := range digests {
		paths := append([]string(nil), groups[digest]...)
		sort.Slice(paths, func(a, b int) bool {
			return modTime(paths[a]).Before(modTime(paths[b]))
		})

		fmt.Fprintf(&b, "\nGroup %d (hash %s):\n", i+1, shortDigest(digest))
		for j, path := range paths {
			marker := "(duplicate)"
			if j == 0 {
				marker = "(oldest)"
			}
			fmt.Fprintf(&b, "  %s %s\n", marker, displayPath(path, baseDir))
		}
	}

	return b.String()
}

func modTime(path string) (t time.Time) {
	if info, err := os.Stat(path); err == nil {
		t = info.ModTime()
	}
	return t
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func displayPath(path string, baseDir string) string {
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}
