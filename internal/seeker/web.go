package seeker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/fsutil"
	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/metrics"
	"github.com/whobutwb/ALEAPP/internal/retry"
)

// connectionTestPattern is the sentinel searched during the construction
// probe. It is never expected to match anything.
const connectionTestPattern = "__connection_test__"

const downloadChunkSize = 8 * 1024

// WebConfig configures a WebSeeker.
type WebConfig struct {
	// BaseURL of the evidence API; a trailing slash is stripped.
	BaseURL string

	// Headers are attached verbatim to every outbound request.
	Headers map[string]string

	// APIKey, when set, is attached as "Authorization: Bearer <key>".
	APIKey string

	// Timeout per HTTP request. Defaults to 30s.
	Timeout time.Duration

	// Retry policy for transient statuses. Zero value uses
	// retry.DefaultPolicy.
	Retry retry.Policy
}

// WebSeeker queries a remote evidence API for file discovery and
// retrieval. Glob evaluation is delegated entirely to the remote index;
// whatever it returns for a pattern is trusted.
type WebSeeker struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	dest    string
	cache   *extractionCache
}

// remoteFile is one entry of the /files/search response.
type remoteFile struct {
	Path  string  `json:"path"`
	Size  int64   `json:"size"`
	Mtime float64 `json:"mtime"`
	Ctime float64 `json:"ctime"`
}

type searchResponse struct {
	Files []remoteFile `json:"files"`
}

// NewWebSeeker builds the retrying HTTP client and issues one best-effort
// connectivity probe. A failed probe only warns; construction always
// succeeds.
func NewWebSeeker(cfg WebConfig, dest string) *WebSeeker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy.MaxRetries == 0 && policy.RetryStatuses == nil {
		policy = retry.DefaultPolicy()
	}

	transport := retry.NewTransport(nil, policy)
	transport.OnRetry = func(attempt, status int) {
		metrics.RecordWebRetry()
		logging.Debug("retrying remote request",
			zap.Int("attempt", attempt), zap.Int("status", status))
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	s := &WebSeeker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: headers,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		dest:  dest,
		cache: newExtractionCache(),
	}

	logging.Info("initializing web seeker", zap.String("base_url", s.baseURL))
	s.testConnection()
	return s
}

// testConnection probes the search endpoint for diagnostics only.
func (s *WebSeeker) testConnection() {
	resp, err := s.get("/files/search", url.Values{"pattern": {connectionTestPattern}})
	if err != nil {
		logging.Warn("could not verify evidence API connection", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		logging.Warn("evidence API returned 401 - check authentication headers")
	case http.StatusNotFound:
		logging.Warn("evidence API search endpoint not found - verify base URL")
	default:
		logging.Info("evidence API reachable", zap.Int("status", resp.StatusCode))
	}
}

func (s *WebSeeker) get(path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	return s.client.Do(req)
}

// searchAPI queries the remote index. Any failure, including a non-2xx
// status or an undecodable body, is zero matches for this call.
func (s *WebSeeker) searchAPI(filePattern string) []remoteFile {
	resp, err := s.get("/files/search", url.Values{"pattern": {filePattern}})
	if err != nil {
		logging.Warn("remote search failed", zap.String("pattern", filePattern), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Warn("remote search rejected",
			zap.String("pattern", filePattern), zap.Int("status", resp.StatusCode))
		return nil
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		logging.Warn("undecodable search response", zap.String("pattern", filePattern), zap.Error(err))
		return nil
	}
	return decoded.Files
}

// download streams one remote file to local and returns the timestamps the
// download response carried.
func (s *WebSeeker) download(remotePath, local string) (ctime, mtime time.Time, err error) {
	resp, err := s.get("/files/download", url.Values{"path": {remotePath}})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return time.Time{}, time.Time{}, fmt.Errorf("download %s: status %d", remotePath, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := os.Create(local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	buf := make([]byte, downloadChunkSize)
	_, copyErr := io.CopyBuffer(out, resp.Body, buf)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(local)
		return time.Time{}, time.Time{}, copyErr
	}
	if closeErr != nil {
		os.Remove(local)
		return time.Time{}, time.Time{}, closeErr
	}

	mtime = headerTime(resp.Header.Get("X-File-Mtime"))
	ctime = headerTime(resp.Header.Get("X-File-Ctime"))
	if !mtime.IsZero() {
		if err := os.Chtimes(local, mtime, mtime); err != nil {
			logging.Warn("could not set downloaded mtime", zap.String("path", local), zap.Error(err))
		}
	}
	return ctime, mtime, nil
}

// headerTime parses an epoch-seconds header value. Zero and negative
// values mean absent.
func headerTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseFloat(v, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return epochTime(sec)
}

func epochTime(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9))
}

// Search downloads every file the remote index reports for pattern.
func (s *WebSeeker) Search(filePattern string, force bool) []string {
	return s.search(filePattern, false, force)
}

// SearchFirst downloads the first file the remote index reports.
func (s *WebSeeker) SearchFirst(filePattern string, force bool) (string, bool) {
	results := s.search(filePattern, true, force)
	if len(results) == 0 {
		return "", false
	}
	return results[0], true
}

func (s *WebSeeker) search(filePattern string, firstOnly, force bool) []string {
	metrics.RecordSearch("web")

	if !force {
		if paths, ok := s.cache.pattern(filePattern, !firstOnly); ok {
			return paths
		}
	}

	var results []string
	for _, remote := range s.searchAPI(filePattern) {
		if remote.Path == "" {
			continue
		}

		local, cached := s.cache.localPath(remote.Path)
		if !cached || force {
			local = filepath.Join(s.dest, filepath.FromSlash(fsutil.Sanitize(remote.Path)))
			dlCtime, dlMtime, err := s.download(remote.Path, local)
			if err != nil {
				logging.Warn("could not download remote file",
					zap.String("remote", remote.Path), zap.String("local", local), zap.Error(err))
				metrics.RecordItemError("web")
				continue
			}

			// Index-reported timestamps win over download headers.
			ctime := epochTime(remote.Ctime)
			if ctime.IsZero() {
				ctime = dlCtime
			}
			mtime := epochTime(remote.Mtime)
			if mtime.IsZero() {
				mtime = dlMtime
			} else if err := os.Chtimes(local, mtime, mtime); err != nil {
				logging.Warn("could not set downloaded mtime", zap.String("path", local), zap.Error(err))
			}

			s.cache.storeItem(remote.Path, local, FileInfo{
				SourcePath: remote.Path,
				Created:    ctime,
				Modified:   mtime,
			})
			metrics.RecordMaterialized("web")
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
func (s *WebSeeker) FileInfo(localPath string) (FileInfo, bool) {
	return s.cache.info(localPath)
}

// Cleanup drops idle connections held by the HTTP client.
func (s *WebSeeker) Cleanup() error {
	s.client.CloseIdleConnections()
	return nil
}
