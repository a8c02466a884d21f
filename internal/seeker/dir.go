package seeker

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/fsutil"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/metrics"
	"github.com/whobutwb/ALEAPP/internal/pattern"
)

// DirSeeker searches a live filesystem subtree. The file listing is built
// once, eagerly, at construction; matched files are copied (never moved)
// into the destination directory preserving their path relative to root.
type DirSeeker struct {
	root  string
	dest  string
	files []string // root-relative, slash-separated, WalkDir order
	cache *extractionCache
}

// NewDirSeeker enumerates every file under root. Unreadable subtrees are
// logged and skipped; they do not fail construction.
func NewDirSeeker(root, dest string) (*DirSeeker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	s := &DirSeeker{
		root:  abs,
		dest:  dest,
		cache: newExtractionCache(),
	}

	logging.Info("building evidence file listing", zap.String("root", abs))
	walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return nil
		}
		s.files = append(s.files, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", abs, walkErr)
	}
	logging.Info("file listing complete", zap.Int("files", len(s.files)))

	return s, nil
}

// Search returns local copies of every file matching pattern.
func (s *DirSeeker) Search(filePattern string, force bool) []string {
	return s.search(filePattern, false, force)
}

// SearchFirst returns the local copy of the first file matching pattern.
func (s *DirSeeker) SearchFirst(filePattern string, force bool) (string, bool) {
	results := s.search(filePattern, true, force)
	if len(results) == 0 {
		return "", false
	}
	return results[0], true
}

func (s *DirSeeker) search(filePattern string, firstOnly, force bool) []string {
	metrics.RecordSearch("directory")

	if !force {
		if paths, ok := s.cache.pattern(filePattern, !firstOnly); ok {
			return paths
		}
	}

	matcher, err := pattern.Compile(filePattern)
	if err != nil {
		logging.Warn("invalid search pattern", zap.String("pattern", filePattern), zap.Error(err))
		return nil
	}

	var results []string
	for _, rel := range s.files {
		if !matcher.Match(rel) {
			continue
		}

		source := filepath.Join(s.root, filepath.FromSlash(rel))
		local, cached := s.cache.localPath(source)
		if !cached || force {
			local = filepath.Join(s.dest, filepath.FromSlash(rel))
			if err := fsutil.CopyFile(source, local); err != nil {
				logging.Warn("could not copy matched file",
					zap.String("source", source), zap.String("dest", local), zap.Error(err))
				metrics.RecordItemError("directory")
				continue
			}
			ctime, mtime, statErr := fsutil.StatTimes(source)
			if statErr != nil {
				logging.Warn("could not stat source", zap.String("source", source), zap.Error(statErr))
			}
			s.cache.storeItem(source, local, FileInfo{
				SourcePath: source,
				Created:    ctime,
				Modified:   mtime,
			})
			metrics.RecordMaterialized("directory")
		}

		results = append(results, local)
		if firstOnly {
			s.cache.storePattern(filePattern, results, true)
			return results
		}
	}

	s.cache.storePattern(filePattern, results, false)
	return results
}

// FileInfo returns the source record for a materialized local path.
func (s *DirSeeker) FileInfo(localPath string) (FileInfo, bool) {
	return s.cache.info(localPath)
}

// Cleanup is a no-op for directory sources.
func (s *DirSeeker) Cleanup() error { return nil }
