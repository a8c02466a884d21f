package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T, apiKey string, files map[string]string) (*Server, *httptest.Server) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := New(root, apiKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Refresh()

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url, apiKey string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeSearch(t *testing.T, resp *http.Response) []FileEntry {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Files []FileEntry `json:"files"`
		Count int         `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	return body.Files
}

func TestSearchPatternFormsEquivalent(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{
		"data/app/contacts.db": "contacts",
		"data/media/photo.jpg": "jpeg",
	})

	for _, pattern := range []string{"*/app/contacts.db", "root/data/app/contacts.db", "data/app/contacts.db"} {
		resp := get(t, ts.URL+"/files/search?pattern="+pattern, "")
		files := decodeSearch(t, resp)
		if len(files) != 1 || files[0].Path != "data/app/contacts.db" {
			t.Errorf("pattern %q matched %v, want data/app/contacts.db", pattern, files)
		}
	}
}

func TestSearchStarCrossesSeparators(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{
		"data/app/contacts.db": "x",
		"data/app/calls.db":    "y",
		"data/media/photo.jpg": "z",
	})

	resp := get(t, ts.URL+"/files/search?pattern=*.db", "")
	files := decodeSearch(t, resp)
	if len(files) != 2 {
		t.Errorf("*.db matched %v, want the two db files", files)
	}
}

func TestSearchReportsTimestamps(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{"f.db": "x"})

	resp := get(t, ts.URL+"/files/search?pattern=f.db", "")
	files := decodeSearch(t, resp)
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	if files[0].Mtime <= 0 {
		t.Errorf("mtime = %f, want positive", files[0].Mtime)
	}
	if files[0].Size != 1 {
		t.Errorf("size = %d, want 1", files[0].Size)
	}
}

func TestSearchEmptyPattern(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{"f.db": "x"})

	resp := get(t, ts.URL+"/files/search", "")
	if files := decodeSearch(t, resp); len(files) != 0 {
		t.Errorf("empty pattern matched %v", files)
	}
}

func TestDownloadStreamsFileWithTimestampHeaders(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{"data/f.db": "payload"})

	resp := get(t, ts.URL+"/files/download?path=data/f.db", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-File-Mtime") == "" {
		t.Error("missing X-File-Mtime header")
	}
	if resp.Header.Get("X-File-Ctime") == "" {
		t.Error("missing X-File-Ctime header")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{"f.db": "x"})

	resp := get(t, ts.URL+"/files/download?path=..%2F..%2Fetc%2Fpasswd", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	_, ts := newTestServer(t, "", map[string]string{"f.db": "x"})

	resp := get(t, ts.URL+"/files/download?path=nope.db", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAuthRequiredOnFileRoutes(t *testing.T) {
	_, ts := newTestServer(t, "sekrit", map[string]string{"f.db": "x"})

	resp := get(t, ts.URL+"/files/search?pattern=f.db", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	resp = get(t, ts.URL+"/files/search?pattern=f.db", "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}

	resp = get(t, ts.URL+"/files/search?pattern=f.db", "sekrit")
	if files := decodeSearch(t, resp); len(files) != 1 {
		t.Errorf("good token: files = %v", files)
	}

	// Health stays open.
	resp = get(t, ts.URL+"/health", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d, want 200", resp.StatusCode)
	}
}

func TestRefreshPicksUpNewFiles(t *testing.T) {
	s, ts := newTestServer(t, "", map[string]string{"a.db": "x"})

	if err := os.WriteFile(filepath.Join(s.root, "b.db"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := get(t, ts.URL+"/files/search?pattern=b.db", "")
	if files := decodeSearch(t, resp); len(files) != 0 {
		t.Fatalf("stale index already lists b.db: %v", files)
	}

	refreshResp, err := http.Post(ts.URL+"/files/refresh", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer refreshResp.Body.Close()
	var body struct {
		FileCount int `json:"file_count"`
	}
	if err := json.NewDecoder(refreshResp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.FileCount != 2 {
		t.Errorf("file_count = %d, want 2", body.FileCount)
	}

	resp = get(t, ts.URL+"/files/search?pattern=b.db", "")
	if files := decodeSearch(t, resp); len(files) != 1 {
		t.Errorf("refreshed index: files = %v", files)
	}
}

func TestHealthReportsAuthMode(t *testing.T) {
	_, ts := newTestServer(t, "sekrit", nil)

	resp := get(t, ts.URL+"/health", "")
	defer resp.Body.Close()
	var body struct {
		Status      string `json:"status"`
		AuthEnabled bool   `json:"auth_enabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || !body.AuthEnabled {
		t.Errorf("body = %+v", body)
	}
}
