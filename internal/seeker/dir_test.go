package seeker

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newDirSeeker(t *testing.T, files map[string]string) (*DirSeeker, string, string) {
	t.Helper()
	root := t.TempDir()
	dest := t.TempDir()
	writeTree(t, root, files)
	s, err := NewDirSeeker(root, dest)
	if err != nil {
		t.Fatalf("NewDirSeeker: %v", err)
	}
	return s, root, dest
}

func TestDirSearchPatternFormsEquivalent(t *testing.T) {
	s, _, _ := newDirSeeker(t, map[string]string{"a/b.db": "data"})

	var results [][]string
	for _, p := range []string{"*/a/b.db", "root/a/b.db", "a/b.db"} {
		got := s.Search(p, false)
		if len(got) != 1 {
			t.Fatalf("Search(%q) returned %d results, want 1", p, len(got))
		}
		results = append(results, got)
	}
	for i := 1; i < len(results); i++ {
		if results[i][0] != results[0][0] {
			t.Errorf("pattern forms disagree: %q vs %q", results[i][0], results[0][0])
		}
	}
}

func TestDirIdempotentExtraction(t *testing.T) {
	s, root, _ := newDirSeeker(t, map[string]string{"a/b.db": "original"})

	first := s.Search("*/b.db", false)
	if len(first) != 1 {
		t.Fatalf("first search: %d results", len(first))
	}

	// Change the source; a cached second search must not re-copy.
	if err := os.WriteFile(filepath.Join(root, "a", "b.db"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := s.Search("*/b.db", false)
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("second search = %v, want %v", second, first)
	}
	data, err := os.ReadFile(second[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Errorf("cached copy was rewritten: %q", data)
	}
}

func TestDirForceReExtracts(t *testing.T) {
	s, root, _ := newDirSeeker(t, map[string]string{"a/b.db": "original"})

	s.Search("*/b.db", false)
	if err := os.WriteFile(filepath.Join(root, "a", "b.db"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := s.Search("*/b.db", true)
	if len(results) != 1 {
		t.Fatalf("force search: %d results", len(results))
	}
	data, err := os.ReadFile(results[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "changed" {
		t.Errorf("force did not re-copy: %q", data)
	}
}

func TestDirSearchFirstReturnsFirstInOrder(t *testing.T) {
	s, _, _ := newDirSeeker(t, map[string]string{
		"a/1.db": "x",
		"b/2.db": "y",
		"c/3.db": "z",
	})

	// WalkDir yields lexical order, so a/1.db is first.
	first, ok := s.SearchFirst("*.db", false)
	if !ok {
		t.Fatal("expected a first hit")
	}
	if filepath.Base(first) != "1.db" {
		t.Errorf("first hit = %s, want 1.db", first)
	}
}

func TestDirFullSearchAfterFirstHit(t *testing.T) {
	s, _, _ := newDirSeeker(t, map[string]string{
		"a/1.db": "x",
		"b/2.db": "y",
		"c/3.db": "z",
	})

	if _, ok := s.SearchFirst("*.db", false); !ok {
		t.Fatal("expected a first hit")
	}

	// The partial cache entry must not satisfy a full search.
	all := s.Search("*.db", false)
	if len(all) != 3 {
		t.Errorf("full search after first-hit = %d results, want 3", len(all))
	}
}

func TestDirFileInfoRecordsSourceTimes(t *testing.T) {
	s, root, _ := newDirSeeker(t, map[string]string{"a/b.db": "data"})

	results := s.Search("*/b.db", false)
	if len(results) != 1 {
		t.Fatalf("search: %d results", len(results))
	}

	info, ok := s.FileInfo(results[0])
	if !ok {
		t.Fatal("expected a FileInfo record")
	}
	if info.SourcePath != filepath.Join(root, "a", "b.db") {
		t.Errorf("SourcePath = %s", info.SourcePath)
	}
	if info.Modified.IsZero() {
		t.Error("expected a modification time")
	}
}

func TestDirNoMatchesIsEmptyNotNilError(t *testing.T) {
	s, _, _ := newDirSeeker(t, map[string]string{"a/b.db": "data"})

	if got := s.Search("*/nonexistent.xyz", false); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if _, ok := s.SearchFirst("*/nonexistent.xyz", false); ok {
		t.Error("expected no first hit")
	}
}

func TestDirCleanupIdempotent(t *testing.T) {
	s, _, _ := newDirSeeker(t, map[string]string{"a/b.db": "data"})
	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := s.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}
