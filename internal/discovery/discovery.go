package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// fileTypeMapping maps a file extension to its key category segment.
var fileTypeMapping = map[string]string{
	".pdf":  "pdf",
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".bmp":  "image",
	".tiff": "image",
	".csv":  "csv",
	".json": "json",
	".txt":  "text",
	".log":  "text",
	".md":   "text",
	".docx": "docx",
	".doc":  "docx",
	".xlsx": "excel",
	".xls":  "excel",
	".pptx": "powerpoint",
	".ppt":  "powerpoint",
	".xml":  "xml",
	".yaml": "yaml",
	".yml":  "yaml",
}

// Options controls a discovery run. Include and Exclude hold dotted,
// lowercase extensions; both filters are optional and are ANDed. Scope
// narrows scanning to root/<scope> when that subdirectory exists.
type Options struct {
	Include         []string
	Exclude         []string
	ExcludePatterns []string
	Scope           string
}

// Discover recursively walks root and returns a FileRecord per file that
// passes the filters. Directories, extensionless files, filtered extensions
// and glob-pattern matches are skipped. It fails fast when root is missing
// or not a directory.
func Discover(root string, opts Options) ([]core.FileRecord, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input directory does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", root)
	}

	scanDir := root
	if opts.Scope != "" {
		scopeDir := filepath.Join(root, opts.Scope)
		if si, err := os.Stat(scopeDir); err == nil && si.IsDir() {
			logx.As().Info().
				Str("dir", scopeDir).
				Msg("Scanning scope-specific directory")
			scanDir = scopeDir
		} else {
			logx.As().Warn().
				Str("scope_dir", scopeDir).
				Str("dir", root).
				Msg("Scope directory not found, scanning entire input directory")
		}
	}

	include := normalizeExtensions(opts.Include)
	exclude := normalizeExtensions(opts.Exclude)

	var matchers []glob.Glob
	for _, pattern := range opts.ExcludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile glob pattern '%s': %w", pattern, err)
		}
		matchers = append(matchers, g)
	}

	var records []core.FileRecord
	err = filepath.Walk(scanDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				logx.As().Warn().
					Str("path", path).
					Msg("File seems to have been deleted during scan, ignoring error...")
				return nil
			}
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			logx.As().Debug().Str("path", path).Msg("Skipping file without extension")
			return nil
		}

		if len(include) > 0 && !include[ext] {
			return nil
		}
		if len(exclude) > 0 && exclude[ext] {
			return nil
		}

		for _, matcher := range matchers {
			if matcher.Match(path) {
				logx.As().Debug().Str("path", path).Msg("Skipping file matching exclude pattern")
				return nil
			}
		}

		records = append(records, core.FileRecord{
			Path:     path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Scope:    DetectScope(path, root),
			Category: Category(path),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning directory %s: %w", scanDir, err)
	}

	logx.As().Info().
		Int("count", len(records)).
		Str("dir", scanDir).
		Msg("Discovered candidate files")

	return records, nil
}

// DetectScope infers the data scope of a file from its location. The first
// path segment relative to root wins; otherwise parent directory names are
// scanned outward. Returns an empty string when undetected. Pure function,
// usable independently of discovery.
func DetectScope(path string, root string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 0 && isScope(parts[0]) {
			return strings.ToLower(parts[0])
		}
	}

	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if isScope(filepath.Base(dir)) {
			return strings.ToLower(filepath.Base(dir))
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}

	return ""
}

func isScope(name string) bool {
	switch strings.ToLower(name) {
	case core.ScopeMBA, core.ScopePolicy:
		return true
	}
	return false
}

// Category returns the type category for a file based on its extension,
// or "other" for unmapped extensions.
func Category(path string) string {
	if category, ok := fileTypeMapping[strings.ToLower(filepath.Ext(path))]; ok {
		return category
	}
	return "other"
}

// BuildKey builds the object key for a file. With includeType the key is
// {prefix}{category}/{filename}, otherwise {prefix}{filename}. An empty
// prefix falls back to "{scope}/".
func BuildKey(scope string, path string, prefix string, includeType bool) string {
	basePrefix := prefix
	if basePrefix == "" {
		basePrefix = scope + "/"
	}
	if !strings.HasSuffix(basePrefix, "/") {
		basePrefix += "/"
	}

	if includeType {
		return basePrefix + Category(path) + "/" + filepath.Base(path)
	}
	return basePrefix + filepath.Base(path)
}

// ParseExtensions parses a comma-separated extension list ("pdf, CSV") into
// normalised dotted lowercase form ([".pdf", ".csv"]).
func ParseExtensions(s string) []string {
	if s == "" {
		return nil
	}

	var exts []string
	for _, ext := range strings.Split(s, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

func normalizeExtensions(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[ext] = true
	}
	return m
}
