// Package fsutil provides shared filesystem helpers for the seeker
// backends: member-name sanitization, atomic file copies and timestamp
// recovery.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Characters that are not representable on common filesystems. They are
// substituted rather than rejected, matching what archive extraction tools
// do when exporting member names.
var illegalChars = strings.NewReplacer(
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// Sanitize converts an archive or remote member name into a relative
// slash-separated path that is safe to create under a destination root.
// Traversal segments, absolute prefixes and illegal characters never
// survive sanitization.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")

	parts := strings.Split(name, "/")
	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		safe = append(safe, illegalChars.Replace(part))
	}
	return strings.Join(safe, "/")
}

// CopyFile copies src to dst, creating parent directories as needed.
// The copy is written to a temp file and renamed into place so a partial
// write never leaves a truncated destination behind.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dirs for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(dir, ".aleapp-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", dst, err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", dst, err)
	}

	return nil
}

// WriteFile streams r to dst, creating parent directories as needed.
// Like CopyFile the write is temp-file-then-rename.
func WriteFile(dst string, r io.Reader) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dirs for %s: %w", dst, err)
	}

	tmp, err := os.CreateTemp(dir, ".aleapp-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", dst, err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", dst, err)
	}

	return nil
}
