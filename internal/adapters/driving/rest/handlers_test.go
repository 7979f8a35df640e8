package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

type fakeRunner struct {
	got    driving.PipelineRequest
	result *domain.PipelineResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, req driving.PipelineRequest) (*domain.PipelineResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeHealth struct {
	liveErr  error
	readyErr error
}

func (f *fakeHealth) Live(_ context.Context) error  { return f.liveErr }
func (f *fakeHealth) Ready(_ context.Context) error { return f.readyErr }

type fakeJournal struct {
	records []domain.RunRecord
	gotLim  int
}

func (f *fakeJournal) Record(_ context.Context, _ domain.RunRecord) error { return nil }

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	f.gotLim = limit
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeJournal) Get(_ context.Context, runID string) (*domain.RunRecord, error) {
	for _, rec := range f.records {
		if rec.ID == runID {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
}

func (f *fakeJournal) Close() error { return nil }

type fakeEngines struct{ ids []string }

func (f *fakeEngines) IDs() []string { return f.ids }

type serverOpts struct {
	cfg     Config
	runner  *fakeRunner
	health  *fakeHealth
	journal *fakeJournal
}

func newTestServer(t *testing.T, opts serverOpts) (*httptest.Server, *fakeRunner) {
	t.Helper()
	if opts.runner == nil {
		skew := 1.5
		opts.runner = &fakeRunner{result: &domain.PipelineResult{
			RunID:     "run-1",
			Filename:  "scan.pdf",
			EngineID:  "lighton",
			Status:    domain.StatusSucceeded,
			Elapsed:   1200 * time.Millisecond,
			PageCount: 1,
			Pages:     []domain.PageOutcome{{Index: 1, Skew: &skew, Text: "hello"}},
			Output:    "# OCR Results for scan.pdf",
			OutputPath: domain.StorageLayout{
				EngineID: "lighton", Filename: "scan.pdf",
			}.OutputPath(),
		}}
	}
	if opts.health == nil {
		opts.health = &fakeHealth{}
	}
	if opts.journal == nil {
		opts.journal = &fakeJournal{}
	}

	s := NewServer(opts.cfg, opts.runner, opts.health, opts.journal,
		&fakeEngines{ids: []string{"lighton", "tesseract"}}, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, opts.runner
}

func multipartUpload(t *testing.T, field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postOCR(t *testing.T, srv *httptest.Server, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/ocr", contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestOCRSubmission(t *testing.T) {
	srv, runner := newTestServer(t, serverOpts{})

	body, ct := multipartUpload(t, "file", "scan.pdf", []byte("%PDF-fake"), map[string]string{"engine": "lighton"})
	resp := postOCR(t, srv, body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The upload reaches the pipeline intact.
	assert.Equal(t, []byte("%PDF-fake"), runner.got.Data)
	assert.Equal(t, "scan.pdf", runner.got.Filename)
	assert.Equal(t, "lighton", runner.got.EngineID)

	out := decodeBody[ocrResponse](t, resp)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "succeeded", out.Status)
	assert.Equal(t, int64(1200), out.ElapsedMS)
	require.Len(t, out.Pages, 1)
	assert.Equal(t, 1, out.Pages[0].Page)
	require.NotNil(t, out.Pages[0].Skew)
	assert.InDelta(t, 1.5, *out.Pages[0].Skew, 0.001)
	assert.Empty(t, out.Pages[0].Error)
	assert.Equal(t, "output/lighton/scan.md", out.StoredAt)
}

func TestOCRMissingFileField(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	body, ct := multipartUpload(t, "attachment", "scan.pdf", []byte("x"), nil)
	resp := postOCR(t, srv, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOCRErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"corrupt", domain.ErrCorruptInput, http.StatusBadRequest},
		{"empty", domain.ErrEmptyInput, http.StatusBadRequest},
		{"unsupported", domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"too large", domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"too many pages", domain.ErrTooManyPages, http.StatusBadRequest},
		{"unknown engine", domain.ErrUnknownEngine, http.StatusBadRequest},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, serverOpts{
				runner: &fakeRunner{err: fmt.Errorf("wrapped: %w", tc.err)},
			})

			body, ct := multipartUpload(t, "file", "scan.pdf", []byte("x"), nil)
			resp := postOCR(t, srv, body, ct)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestOCRUploadBodyCap(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{cfg: Config{MaxUploadBytes: 100}})

	body, ct := multipartUpload(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 4096), nil)
	resp := postOCR(t, srv, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestEnginesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(srv.URL + "/engines")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[map[string][]string](t, resp)
	assert.Equal(t, []string{"lighton", "tesseract"}, out["engines"])
}

func TestRunsEndpoint(t *testing.T) {
	journal := &fakeJournal{records: []domain.RunRecord{
		{ID: "run-2", Filename: "b.pdf", Status: domain.StatusPartiallySucceeded, PagesTotal: 4, PagesFailed: 1},
		{ID: "run-1", Filename: "a.pdf", Status: domain.StatusSucceeded, PagesTotal: 2},
	}}
	srv, _ := newTestServer(t, serverOpts{journal: journal})

	resp, err := http.Get(srv.URL + "/runs?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, journal.gotLim)

	out := decodeBody[map[string][]runResponse](t, resp)
	require.Len(t, out["runs"], 1)
	assert.Equal(t, "run-2", out["runs"][0].RunID)
	assert.Equal(t, "partially_succeeded", out["runs"][0].Status)
}

func TestRunsEndpointBadLimit(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(srv.URL + "/runs?limit=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunByID(t *testing.T) {
	journal := &fakeJournal{records: []domain.RunRecord{{ID: "run-1", Filename: "a.pdf"}}}
	srv, _ := newTestServer(t, serverOpts{journal: journal})

	resp, err := http.Get(srv.URL + "/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody[runResponse](t, resp)
	assert.Equal(t, "run-1", out.RunID)

	missing, err := http.Get(srv.URL + "/runs/run-404")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestReadyStorageDown(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{
		health: &fakeHealth{readyErr: errors.New("storage unreachable")},
	})

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	out := decodeBody[map[string]string](t, resp)
	assert.Contains(t, out["reason"], "storage unreachable")
}

func TestAPIKeyGuard(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{cfg: Config{APIKey: "secret"}})

	// Unauthenticated submission is rejected.
	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The right key opens it.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/runs", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Probes stay open for orchestrators.
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{cfg: Config{RateLimitRPS: 0.001, RateLimitBurst: 1}})

	first, err := http.Get(srv.URL + "/engines")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(srv.URL + "/engines")
	require.NoError(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	body, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rate limit")
}

func TestRateLimitSkipsProbes(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{cfg: Config{RateLimitRPS: 0.001, RateLimitBurst: 1}})

	// Exhaust the client's bucket on a regular endpoint.
	first, err := http.Get(srv.URL + "/engines")
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	// Probes stay reachable regardless of the bucket.
	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	// The regular endpoint is still limited.
	resp, err := http.Get(srv.URL + "/engines")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRequestIDEcho(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	// A client-supplied id is echoed back.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-42", resp.Header.Get("X-Request-ID"))

	// Otherwise one is generated.
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
