package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkoval/videofetch/internal/cleanup"
	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
)

type stubService struct {
	createID  string
	createErr error
	job       domain.Job
	getErr    error
	jobs      []domain.Job
	cancelOK  bool
	resumeID  string
	resumeErr error
}

func (s *stubService) Create(context.Context, string, domain.Options) (string, error) {
	return s.createID, s.createErr
}
func (s *stubService) Get(string) (domain.Job, error) { return s.job, s.getErr }

func (s *stubService) List(context.Context) []domain.Job { return s.jobs }

func (s *stubService) Cancel(string) bool { return s.cancelOK }
func (s *stubService) Resume(context.Context, string) (string, error) {
	return s.resumeID, s.resumeErr
}

type stubCleaner struct {
	report cleanup.Report
	err    error
}

func (s *stubCleaner) RunCycle() (cleanup.Report, error) { return s.report, s.err }

func doRequest(t *testing.T, service DownloadService, cleaner CleanupRunner, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	router := NewRouter(service, cleaner, slog.Default())
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateDownload(t *testing.T) {
	service := &stubService{createID: "job-1"}

	rec := doRequest(t, service, &stubCleaner{}, http.MethodPost, "/downloads",
		map[string]string{"url": "https://example.com/v/1"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
}

func TestCreateDownload_InvalidBody(t *testing.T) {
	router := NewRouter(&stubService{}, &stubCleaner{}, slog.Default())
	req := httptest.NewRequest(http.MethodPost, "/downloads", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDownload_UnsafeURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing url", ""},
		{"bad scheme", "ftp://example.com/file"},
		{"loopback", "http://127.0.0.1/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, &stubService{}, &stubCleaner{}, http.MethodPost, "/downloads",
				map[string]string{"url": tt.url})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateDownload_ShuttingDown(t *testing.T) {
	service := &stubService{createErr: apperrors.ErrShuttingDown}

	rec := doRequest(t, service, &stubCleaner{}, http.MethodPost, "/downloads",
		map[string]string{"url": "https://example.com/v/1"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetDownload(t *testing.T) {
	service := &stubService{job: domain.Job{
		ID:        "job-1",
		URL:       "https://example.com/v/1",
		Status:    domain.StatusDownloading,
		Progress:  42,
		CreatedAt: time.Now(),
	}}

	rec := doRequest(t, service, &stubCleaner{}, http.MethodGet, "/downloads/job-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp domain.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, domain.StatusDownloading, resp.Status)
	assert.Equal(t, 42, resp.Progress)
}

func TestGetDownload_NotFound(t *testing.T) {
	service := &stubService{getErr: apperrors.ErrJobNotFound}

	rec := doRequest(t, service, &stubCleaner{}, http.MethodGet, "/downloads/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDownloads(t *testing.T) {
	service := &stubService{jobs: []domain.Job{
		{ID: "a", Status: domain.StatusCompleted},
		{ID: "b", Status: domain.StatusPending},
	}}

	rec := doRequest(t, service, &stubCleaner{}, http.MethodGet, "/downloads", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []domain.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "a", resp[0].ID)
}

func TestCancelDownload(t *testing.T) {
	rec := doRequest(t, &stubService{cancelOK: true}, &stubCleaner{}, http.MethodDelete, "/downloads/job-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, &stubService{cancelOK: false}, &stubCleaner{}, http.MethodDelete, "/downloads/job-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResumeDownload(t *testing.T) {
	rec := doRequest(t, &stubService{resumeID: "job-1"}, &stubCleaner{}, http.MethodPost, "/downloads/job-1/resume", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, &stubService{resumeErr: apperrors.ErrNoHistoryItem}, &stubCleaner{}, http.MethodPost, "/downloads/ghost/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, &stubService{resumeErr: apperrors.ErrNotResumable}, &stubCleaner{}, http.MethodPost, "/downloads/job-1/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerCleanup(t *testing.T) {
	cleaner := &stubCleaner{report: cleanup.Report{Scanned: 3, Deleted: 1, BytesReclaimed: 512}}

	rec := doRequest(t, &stubService{}, cleaner, http.MethodPost, "/cleanup", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Contains(t, resp["message"], "deleted 1")
}

func TestTriggerCleanup_Failure(t *testing.T) {
	cleaner := &stubCleaner{err: errors.New("scan failed")}

	rec := doRequest(t, &stubService{}, cleaner, http.MethodPost, "/cleanup", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, &stubService{}, &stubCleaner{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
