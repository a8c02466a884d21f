package seeker

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/fsutil"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/metrics"
	"github.com/whobutwb/ALEAPP/internal/pattern"
)

// macResourceForkPrefix marks the resource-fork directory Mac-produced
// archives carry; its members are never evidence.
const macResourceForkPrefix = "__MACOSX"

// extendedTimestampID is the zip extra-field header id of the Extended
// Timestamp record (second-resolution Unix times).
const extendedTimestampID = 0x5455

// ZipSeeker searches a zip container. The member name list is captured
// once at construction.
type ZipSeeker struct {
	path   string
	rc     *zip.ReadCloser
	dest   string
	cache  *extractionCache
	closed bool
}

// NewZipSeeker opens the container at path. An unopenable container is
// fatal.
func NewZipSeeker(path, dest string) (*ZipSeeker, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip archive %s: %w", path, err)
	}
	return &ZipSeeker{
		path:  path,
		rc:    rc,
		dest:  dest,
		cache: newExtractionCache(),
	}, nil
}

// Search returns local copies of every member matching pattern.
func (s *ZipSeeker) Search(filePattern string, force bool) []string {
	return s.search(filePattern, false, force)
}

// SearchFirst returns the local copy of the first member matching pattern.
func (s *ZipSeeker) SearchFirst(filePattern string, force bool) (string, bool) {
	results := s.search(filePattern, true, force)
	if len(results) == 0 {
		return "", false
	}
	return results[0], true
}

func (s *ZipSeeker) search(filePattern string, firstOnly, force bool) []string {
	metrics.RecordSearch("zip")

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
	for _, member := range s.rc.File {
		if strings.HasPrefix(member.Name, macResourceForkPrefix) {
			continue
		}
		if !matcher.Match(member.Name) {
			continue
		}

		local, cached := s.cache.localPath(member.Name)
		if !cached || force {
			extracted, err := s.extract(member)
			if err != nil {
				logging.Warn("could not write member to filesystem",
					zap.String("member", member.Name), zap.Error(err))
				metrics.RecordItemError("zip")
				continue
			}
			local = extracted
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

// extract materializes one member under the destination root and applies
// the best-available modification time: the Extended Timestamp when
// present, else the coarse DOS date/time.
func (s *ZipSeeker) extract(member *zip.File) (string, error) {
	local := filepath.Join(s.dest, filepath.FromSlash(fsutil.Sanitize(member.Name)))

	if strings.HasSuffix(member.Name, "/") {
		if err := os.MkdirAll(local, 0o755); err != nil {
			return "", err
		}
		return local, nil
	}

	rc, err := member.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := fsutil.WriteFile(local, rc); err != nil {
		return "", err
	}

	ctime, mtime := decodeExtendedTimestamp(member.Extra)
	best := mtime
	if best.IsZero() {
		best = dosDateTime(member.ModifiedDate, member.ModifiedTime)
	}
	if !best.IsZero() {
		if err := os.Chtimes(local, best, best); err != nil {
			logging.Warn("could not set member mtime", zap.String("path", local), zap.Error(err))
		}
	}

	s.cache.storeItem(member.Name, local, FileInfo{
		SourcePath: member.Name,
		Created:    ctime,
		Modified:   mtime,
	})
	metrics.RecordMaterialized("zip")
	return local, nil
}

// decodeExtendedTimestamp scans a zip extra-field block for the Extended
// Timestamp record. The block is a sequence of
// (headerId u16le, dataSize u16le, data) records; in the 0x5455 record the
// first data byte is a flag set (bit 0 = mtime present, bit 2 = ctime
// present) followed by u32le Unix epoch seconds, modification time first.
// Truncated or malformed data yields absent values, never a panic.
func decodeExtendedTimestamp(extra []byte) (ctime, mtime time.Time) {
	for len(extra) >= 4 {
		headerID := binary.LittleEndian.Uint16(extra)
		dataSize := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if dataSize > len(extra) {
			return time.Time{}, time.Time{}
		}
		if headerID != extendedTimestampID {
			extra = extra[dataSize:]
			continue
		}

		data := extra[:dataSize]
		if len(data) < 1 {
			return time.Time{}, time.Time{}
		}
		flags := data[0]
		data = data[1:]
		if flags&0x1 != 0 {
			if len(data) < 4 {
				return time.Time{}, time.Time{}
			}
			mtime = time.Unix(int64(binary.LittleEndian.Uint32(data)), 0)
			data = data[4:]
		}
		if flags&0x4 != 0 {
			if len(data) < 4 {
				return ctime, mtime
			}
			ctime = time.Unix(int64(binary.LittleEndian.Uint32(data)), 0)
		}
		return ctime, mtime
	}
	return time.Time{}, time.Time{}
}

// dosDateTime converts the packed MS-DOS date/time fields (2-second
// resolution) to a local time. Zone rules decide any DST offset.
func dosDateTime(date, tm uint16) time.Time {
	if date == 0 {
		return time.Time{}
	}
	year := int(date>>9) + 1980
	month := time.Month(date >> 5 & 0xf)
	day := int(date & 0x1f)
	hour := int(tm >> 11)
	minute := int(tm >> 5 & 0x3f)
	sec := int(tm&0x1f) * 2
	return time.Date(year, month, day, hour, minute, sec, 0, time.Local)
}

// FileInfo returns the source record for a materialized local path.
func (s *ZipSeeker) FileInfo(localPath string) (FileInfo, bool) {
	return s.cache.info(localPath)
}

// Cleanup closes the container handle.
func (s *ZipSeeker) Cleanup() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rc.Close()
}
