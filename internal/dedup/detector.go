package dedup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hma-data/mba-ingest/internal/core"
	"github.com/hma-data/mba-ingest/internal/objstore"
	"github.com/hma-data/mba-ingest/pkg/fsx"
	"github.com/hma-data/mba-ingest/pkg/logx"
)

// cacheEntry is one persisted hash cache record. An entry is only trusted
// when its size and mtime exactly match the current filesystem stat.
type cacheEntry struct {
	Hash  string `json:"hash"`
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
	Path  string `json:"path"`
}

// cacheFile is the JSON side-file layout.
type cacheFile struct {
	Local   map[string]cacheEntry `json:"local"`
	Remote  map[string]cacheEntry `json:"s3"`
	Updated string                `json:"updated"`
}

// Detector finds duplicate files locally (by content digest) and remotely
// (by size at the computed key). It owns a persistent hash cache keyed by
// canonical absolute path; all cache access is mutex-guarded so scans may be
// invoked from concurrent workers.
type Detector struct {
	mu        sync.Mutex
	cachePath string
	algo      string
	local     map[string]cacheEntry
	remote    map[string]cacheEntry
}

// NewDetector creates a detector backed by the JSON cache at cachePath.
// A missing or unreadable cache is a cold start, not an error.
func NewDetector(cachePath string, algo string) *Detector {
	d := &Detector{
		cachePath: cachePath,
		algo:      algo,
		local:     map[string]cacheEntry{},
		remote:    map[string]cacheEntry{},
	}
	d.loadCache()
	return d
}

func (d *Detector) loadCache() {
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logx.As().Warn().Str("cache", d.cachePath).Err(err).Msg("Could not load cache file")
		}
		return
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		logx.As().Warn().Str("cache", d.cachePath).Err(err).Msg("Could not parse cache file")
		return
	}

	if cf.Local != nil {
		d.local = cf.Local
	}
	if cf.Remote != nil {
		d.remote = cf.Remote
	}

	logx.As().Debug().
		Int("local_entries", len(d.local)).
		Int("remote_entries", len(d.remote)).
		Msg("Loaded hash cache")
}

// saveCache persists the cache. Failures are warnings: the cache is a
// best-effort optimization, never correctness-critical.
func (d *Detector) saveCache() {
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0755); err != nil {
		logx.As().Warn().Str("cache", d.cachePath).Err(err).Msg("Could not create cache directory")
		return
	}

	data, err := json.MarshalIndent(cacheFile{
		Local:   d.local,
		Remote:  d.remote,
		Updated: time.Now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		logx.As().Warn().Str("cache", d.cachePath).Err(err).Msg("Could not encode cache")
		return
	}

	if err := os.WriteFile(d.cachePath, data, 0644); err != nil {
		logx.As().Warn().Str("cache", d.cachePath).Err(err).Msg("Could not save cache file")
		return
	}

	logx.As().Debug().Str("cache", d.cachePath).Msg("Cache saved")
}

// ScanDirectory hashes every file under dir and groups paths by digest.
// Cached digests are reused when size and mtime still match; stale entries
// are recomputed and the cache is persisted after the scan, including
// entries for non-duplicate files (they seed future runs).
func (d *Detector) ScanDirectory(dir string, recursive bool) (map[string][]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	if recursive {
		err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.Mode().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(absDir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, filepath.Join(absDir, e.Name()))
			}
		}
	}

	logx.As().Info().
		Int("count", len(files)).
		Str("dir", absDir).
		Msg("Scanning files for duplicates")

	hashToFiles := map[string][]string{}

	d.mu.Lock()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			logx.As().Error().Str("path", path).Err(err).Msg("Error processing file")
			continue
		}

		digest := ""
		if cached, ok := d.local[path]; ok && cached.Size == info.Size() && cached.MTime == info.ModTime().UnixNano() {
			digest = cached.Hash
			logx.As().Debug().Str("path", path).Msg("Using cached digest")
		} else {
			digest, err = fsx.FileDigest(path, d.algo)
			if err != nil {
				logx.As().Error().Str("path", path).Err(err).Msg("Error hashing file")
				continue
			}

			d.local[path] = cacheEntry{
				Hash:  digest,
				Size:  info.Size(),
				MTime: info.ModTime().UnixNano(),
				Path:  path,
			}
		}

		if digest != "" {
			hashToFiles[digest] = append(hashToFiles[digest], path)
		}
	}
	d.saveCache()
	d.mu.Unlock()

	duplicates := FindDuplicateGroups(hashToFiles)
	if len(duplicates) > 0 {
		logx.As().Warn().
			Int("groups", len(duplicates)).
			Msg("Found sets of duplicate files")
	}

	return hashToFiles, nil
}

// FindDuplicateGroups filters a digest grouping down to digests shared by
// two or more paths.
func FindDuplicateGroups(hashToFiles map[string][]string) map[string][]string {
	groups := map[string][]string{}
	for digest, paths := range hashToFiles {
		if len(paths) > 1 {
			groups[digest] = paths
		}
	}
	return groups
}

// CheckLocalDuplicate returns every file under searchDirs sharing the
// content digest of path, excluding path itself.
func (d *Detector) CheckLocalDuplicate(path string, searchDirs []string) []string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	targetDigest, err := fsx.FileDigest(absPath, d.algo)
	if err != nil {
		logx.As().Error().Str("path", absPath).Err(err).Msg("Error hashing file, duplicate check disabled")
		return nil
	}

	var duplicates []string
	for _, dir := range searchDirs {
		if _, exists := fsx.PathExists(dir); !exists {
			continue
		}

		hashToFiles, err := d.ScanDirectory(dir, true)
		if err != nil {
			logx.As().Error().Str("dir", dir).Err(err).Msg("Error scanning directory")
			continue
		}

		for _, candidate := range hashToFiles[targetDigest] {
			if abs, err := filepath.Abs(candidate); err == nil && abs != absPath {
				duplicates = append(duplicates, candidate)
			}
		}
	}

	if len(duplicates) > 0 {
		logx.As().Warn().
			Str("path", filepath.Base(absPath)).
			Int("duplicates", len(duplicates)).
			Msg("File has local duplicates")
	}

	return duplicates
}

// CheckRemoteDuplicate reports whether the object at bucket/key already
// holds a same-size copy of path. Size equality is an approximation of
// content equality; the uploaded local-hash metadata allows a stricter
// comparison downstream.
func (d *Detector) CheckRemoteDuplicate(ctx context.Context, store objstore.Client, path string, bucket string, key string) (bool, *core.ObjectMetadata) {
	exists, md := store.Head(ctx, bucket, key)
	if !exists {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		logx.As().Error().Str("path", path).Err(err).Msg("Cannot stat local file")
		return false, md
	}

	d.mu.Lock()
	d.remote[bucket+"/"+key] = cacheEntry{
		Hash:  md.ETag,
		Size:  md.Size,
		MTime: md.LastModified.UnixNano(),
		Path:  bucket + "/" + key,
	}
	d.mu.Unlock()

	if info.Size() == md.Size {
		logx.As().Info().
			Str("path", filepath.Base(path)).
			Str("key", key).
			Msg("File matches remote object by size")
		return true, md
	}

	logx.As().Info().
		Str("path", filepath.Base(path)).
		Str("key", key).
		Int64("local_size", info.Size()).
		Int64("remote_size", md.Size).
		Msg("File exists remotely with different size")
	return false, md
}
