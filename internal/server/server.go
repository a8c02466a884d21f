// Package server implements the evidence API consumed by the web seeker:
// glob search over an indexed evidence root, streamed downloads with
// timestamp headers, index refresh and a health check.
package server

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/fsutil"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/metrics"
)

// FileEntry is one indexed evidence file as reported to clients.
type FileEntry struct {
	Path  string  `json:"path"`
	Size  int64   `json:"size"`
	Mtime float64 `json:"mtime"`
	Ctime float64 `json:"ctime"`
}

// Server serves the evidence API over a single evidence root directory.
type Server struct {
	root   string
	apiKey string

	mu    sync.RWMutex
	index []FileEntry
}

// New creates a server for the given evidence root. An empty apiKey
// disables authentication.
func New(root, apiKey string) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Server{root: abs, apiKey: apiKey}, nil
}

// Refresh rebuilds the in-memory file index and returns its size.
// Unreadable entries are skipped.
func (s *Server) Refresh() int {
	var index []FileEntry
	filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		ctime, mtime, err := fsutil.StatTimes(p)
		if err != nil {
			return nil
		}
		index = append(index, FileEntry{
			Path:  filepath.ToSlash(rel),
			Size:  info.Size(),
			Mtime: epochSeconds(mtime),
			Ctime: epochSeconds(ctime),
		})
		return nil
	})

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	metrics.SetEvidenceIndexSize(len(index))
	logging.Info("evidence index refreshed", zap.Int("files", len(index)))
	return len(index)
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logging.Middleware, metricsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	files := r.PathPrefix("/files").Subrouter()
	files.Use(s.requireAPIKey)
	files.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	files.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	files.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	return r
}

// requireAPIKey enforces bearer-token authentication when a key is
// configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.apiKey {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rawPattern := r.URL.Query().Get("pattern")
	if rawPattern == "" {
		writeJSON(w, http.StatusOK, map[string]any{"files": []FileEntry{}, "error": "no pattern provided"})
		return
	}

	// Clients prefix patterns with a virtual root segment; strip it before
	// matching against root-relative index paths.
	stripped := strings.TrimLeft(rawPattern, "*")
	stripped = strings.TrimLeft(stripped, "/")
	stripped = strings.TrimPrefix(stripped, "root/")

	strippedGlob, err := glob.Compile(stripped)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"files": []FileEntry{}, "pattern": rawPattern, "count": 0})
		return
	}
	rawGlob, rawErr := glob.Compile(rawPattern)

	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()

	matches := make([]FileEntry, 0)
	for _, entry := range index {
		if strippedGlob.Match(entry.Path) || (rawErr == nil && rawGlob.Match(entry.Path)) {
			matches = append(matches, entry)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":   matches,
		"pattern": rawPattern,
		"count":   len(matches),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		writeError(w, http.StatusBadRequest, "no file path provided")
		return
	}

	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	full = filepath.Clean(full)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	info, err := os.Stat(full)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if !info.Mode().IsRegular() {
		writeError(w, http.StatusBadRequest, "path is not a file")
		return
	}

	ctime, mtime, err := fsutil.StatTimes(full)
	if err == nil {
		w.Header().Set("X-File-Mtime", strconv.FormatFloat(epochSeconds(mtime), 'f', -1, 64))
		w.Header().Set("X-File-Ctime", strconv.FormatFloat(epochSeconds(ctime), 'f', -1, 64))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, full)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	count := s.Refresh()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "file_count": count})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"evidence_root": s.root,
		"auth_enabled":  s.apiKey != "",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// metricsMiddleware records request counts and latency.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}
