// Package seeker locates files matching glob patterns in an evidence
// source and materializes them as ordinary local files. Four backends
// implement the same contract: a live directory tree, a tar/tar.gz
// archive, a zip archive and a remote HTTP file index.
package seeker

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// FileInfo carries the recovered source identity and timestamps of one
// materialized file. A zero time means the source had no usable value.
type FileInfo struct {
	SourcePath string
	Created    time.Time
	Modified   time.Time
}

// Seeker is the common contract over one evidence source. Search and
// SearchFirst materialize matches into the destination directory as a side
// effect; per-item failures are logged and skipped, never surfaced.
// Instances are single-writer: concurrent calls on one Seeker are not
// supported.
type Seeker interface {
	// Search returns the local paths of every item matching pattern, in
	// enumeration order. force bypasses both caches and re-extracts.
	Search(pattern string, force bool) []string

	// SearchFirst stops at the first match in enumeration order. The cached
	// entry holds only that first hit; a later full Search repopulates it.
	SearchFirst(pattern string, force bool) (string, bool)

	// FileInfo returns the source record for a previously materialized
	// local path.
	FileInfo(localPath string) (FileInfo, bool)

	// Cleanup releases backend resources. It is idempotent; Search must not
	// be called afterwards.
	Cleanup() error
}

// Options configures the Open factory.
type Options struct {
	// Destination is the directory matched files are materialized under.
	Destination string

	// APIKey is attached as a bearer token by the web backend.
	APIKey string

	// Timeout is the per-request timeout for the web backend.
	Timeout time.Duration
}

// Open selects a backend from the source string: an http(s) URL gets the
// web backend, a .tar/.tar.gz/.tgz or .zip file its archive backend, and
// an existing directory the directory backend.
func Open(source string, opts Options) (Seeker, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewWebSeeker(WebConfig{
			BaseURL: source,
			APIKey:  opts.APIKey,
			Timeout: opts.Timeout,
		}, opts.Destination), nil
	}

	lower := strings.ToLower(source)
	switch {
	case strings.HasSuffix(lower, ".tar"), strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return NewTarSeeker(source, opts.Destination)
	case strings.HasSuffix(lower, ".zip"):
		return NewZipSeeker(source, opts.Destination)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", source, err)
	}
	if info.IsDir() {
		return NewDirSeeker(source, opts.Destination)
	}
	return nil, fmt.Errorf("unsupported evidence source: %s", source)
}
