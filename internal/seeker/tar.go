package seeker

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/fsutil"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/metrics"
	"github.com/whobutwb/ALEAPP/internal/pattern"
)

// TarSeeker searches a tar or tar.gz archive. The archive is opened once;
// the member table is walked fresh on every uncached search, so no index
// beyond the archive's own structure is kept.
type TarSeeker struct {
	path    string
	f       *os.File
	gzipped bool
	dest    string
	cache   *extractionCache
	closed  bool
}

// NewTarSeeker opens the archive at path. Gzip compression is assumed when
// the filename ends in "gz". An unopenable archive is fatal.
func NewTarSeeker(path, dest string) (*TarSeeker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tar archive %s: %w", path, err)
	}

	s := &TarSeeker{
		path:    path,
		f:       f,
		gzipped: strings.HasSuffix(strings.ToLower(path), "gz"),
		dest:    dest,
		cache:   newExtractionCache(),
	}

	// Validate the stream up front so a bad archive fails construction
	// rather than the first search.
	if _, err := s.newReader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("read tar archive %s: %w", path, err)
	}

	return s, nil
}

// newReader rewinds the archive and returns a fresh member reader.
func (s *TarSeeker) newReader() (*tar.Reader, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var r io.Reader = s.f
	if s.gzipped {
		zr, err := gzip.NewReader(s.f)
		if err != nil {
			return nil, err
		}
		r = zr
	}
	return tar.NewReader(r), nil
}

// Search returns local copies of every member matching pattern.
func (s *TarSeeker) Search(filePattern string, force bool) []string {
	return s.search(filePattern, false, force)
}

// SearchFirst returns the local copy of the first member matching pattern.
func (s *TarSeeker) SearchFirst(filePattern string, force bool) (string, bool) {
	results := s.search(filePattern, true, force)
	if len(results) == 0 {
		return "", false
	}
	return results[0], true
}

func (s *TarSeeker) search(filePattern string, firstOnly, force bool) []string {
	metrics.RecordSearch("tar")

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

	tr, err := s.newReader()
	if err != nil {
		logging.Error("could not rewind tar archive", zap.String("archive", s.path), zap.Error(err))
		return nil
	}

	var results []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logging.Error("tar walk aborted", zap.String("archive", s.path), zap.Error(err))
			break
		}
		if !matcher.Match(hdr.Name) {
			continue
		}

		local := filepath.Join(s.dest, filepath.FromSlash(fsutil.Sanitize(hdr.Name)))

		if hdr.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(local, 0o755); err != nil {
				logging.Warn("could not create directory", zap.String("path", local), zap.Error(err))
				metrics.RecordItemError("tar")
				continue
			}
		} else if cached, ok := s.cache.localPath(hdr.Name); ok && !force {
			local = cached
		} else {
			if err := fsutil.WriteFile(local, tr); err != nil {
				logging.Warn("could not write member to filesystem",
					zap.String("member", hdr.Name), zap.Error(err))
				metrics.RecordItemError("tar")
				continue
			}
			// Tar headers carry no creation time; only mtime is recovered.
			if !hdr.ModTime.IsZero() && hdr.ModTime.Unix() > 0 {
				if err := os.Chtimes(local, hdr.ModTime, hdr.ModTime); err != nil {
					logging.Warn("could not set member mtime", zap.String("path", local), zap.Error(err))
				}
			}
			s.cache.storeItem(hdr.Name, local, FileInfo{
				SourcePath: hdr.Name,
				Modified:   hdr.ModTime,
			})
			metrics.RecordMaterialized("tar")
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
func (s *TarSeeker) FileInfo(localPath string) (FileInfo, bool) {
	return s.cache.info(localPath)
}

// Cleanup closes the archive handle.
func (s *TarSeeker) Cleanup() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
