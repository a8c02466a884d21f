package seeker

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenSelectsDirectoryBackend(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, Options{Destination: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()
	if _, ok := s.(*DirSeeker); !ok {
		t.Errorf("backend = %T, want *DirSeeker", s)
	}
}

func TestOpenSelectsTarBackend(t *testing.T) {
	for _, name := range []string{"evidence.tar", "evidence.tar.gz", "evidence.tgz"} {
		archive := filepath.Join(t.TempDir(), name)
		gzipped := name != "evidence.tar"
		writeTarFile(t, archive, gzipped, tarFixture)

		s, err := Open(archive, Options{Destination: t.TempDir()})
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		if _, ok := s.(*TarSeeker); !ok {
			t.Errorf("Open(%s) backend = %T, want *TarSeeker", name, s)
		}
		s.Cleanup()
	}
}

func TestOpenSelectsZipBackend(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evidence.zip")
	writeZipFile(t, archive, []zipEntry{{name: "a.db", content: "x"}})

	s, err := Open(archive, Options{Destination: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()
	if _, ok := s.(*ZipSeeker); !ok {
		t.Errorf("backend = %T, want *ZipSeeker", s)
	}
}

func TestOpenSelectsWebBackend(t *testing.T) {
	s, err := Open("http://127.0.0.1:1", Options{
		Destination: t.TempDir(),
		Timeout:     500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Cleanup()
	if _, ok := s.(*WebSeeker); !ok {
		t.Errorf("backend = %T, want *WebSeeker", s)
	}
}

func TestOpenRejectsUnsupportedSource(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(plain, []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(plain, Options{Destination: t.TempDir()}); err == nil {
		t.Error("expected error for a plain file source")
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing"), Options{Destination: t.TempDir()}); err == nil {
		t.Error("expected error for a missing source")
	}
}
