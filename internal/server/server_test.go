package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/raphaelgruber/plagscan/internal/extract"
	"github.com/raphaelgruber/plagscan/internal/service"
	"github.com/raphaelgruber/plagscan/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downScorer struct{ similarity.Lexical }

func (downScorer) Ready(context.Context) error { return errors.New("model not loaded") }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, scorer similarity.Scorer, maxUpload int64) http.Handler {
	t.Helper()
	base := t.TempDir()
	svc := service.NewBatchService(scorer, extract.New(quietLogger()), service.Options{
		WorkRoot:    filepath.Join(base, "work"),
		ResultsRoot: filepath.Join(base, "results"),
		Logger:      quietLogger(),
	})
	return New(svc, quietLogger(), Options{Version: "test", MaxUploadBytes: maxUpload}).Handler()
}

func zipUpload(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func multipartRequest(t *testing.T, archive []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if archive != nil {
		fw, err := mw.CreateFormFile("assignment_file", "hw1.zip")
		require.NoError(t, err)
		_, err = fw.Write(archive)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-assignment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUploadAssignment(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 0)
	upload := zipUpload(t, map[string]string{
		"alice/main.py": "def add(a, b): return a + b",
		"bob/main.py":   "def add(a, b): return a + b",
		"carol/main.py": "print(42)",
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, upload, map[string]string{
		"assignment_name":      "Homework 1",
		"similarity_threshold": "70",
		"allowed_extensions":   `{".py": true, ".java": false}`,
		"detection_mode":       "ai",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "Homework 1", body["assignment"])
	assert.NotEmpty(t, body["assignment_id"])
	assert.Equal(t, 3.0, body["totalSubmissions"])

	pairs, ok := body["pairs"].([]any)
	require.True(t, ok)
	require.Len(t, pairs, 1)
	pair := pairs[0].(map[string]any)
	assert.Equal(t, "1-2", pair["pairId"])
	assert.Equal(t, "Identical", pair["status"])
	assert.Equal(t, map[string]any{"totalPairs": 1.0, "avgSimilarity": 100.0, "highRiskCount": 1.0}, body["stats"])
}

func TestUploadAssignmentErrors(t *testing.T) {
	valid := zipUpload(t, map[string]string{"alice/a.py": "x = 1", "bob/b.py": "y = 2"})

	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		scorer similarity.Scorer
		code   int
		kind   string
	}{
		{
			name: "missing file",
			req:  func(t *testing.T) *http.Request { return multipartRequest(t, nil, map[string]string{"assignment_name": "x"}) },
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/upload-assignment", strings.NewReader("hello"))
			},
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name: "NaN threshold",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, valid, map[string]string{"similarity_threshold": "NaN"})
			},
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name: "bad threshold",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, valid, map[string]string{"similarity_threshold": "high"})
			},
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name: "bad archive mode",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, valid, map[string]string{"archive_mode": "sideways"})
			},
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name: "single submission",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, zipUpload(t, map[string]string{"alice/a.py": "x"}), nil)
			},
			code: http.StatusBadRequest,
			kind: "input",
		},
		{
			name:   "scorer unavailable",
			req:    func(t *testing.T) *http.Request { return multipartRequest(t, valid, nil) },
			scorer: downScorer{},
			code:   http.StatusServiceUnavailable,
			kind:   "capability",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := tt.scorer
			if scorer == nil {
				scorer = similarity.NewLexical()
			}
			h := newTestServer(t, scorer, 0)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 512)
	big := bytes.Repeat([]byte("PK"), 4096)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, big, nil))

	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
	assert.Equal(t, "input", decode(t, rec)["kind"])
}

func TestAnalyzeSimple(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-simple",
		strings.NewReader(`{"text_a": "the cat sat on the mat", "text_b": "the cat sat on the mat"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["similarity_score"])
	assert.Equal(t, true, body["is_plagiarized"])
	assert.Equal(t, "probability that text_b is plagiarized from text_a", body["interpretation"])
}

func TestAnalyzeParaphrase(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze-paraphrase",
		strings.NewReader(`{"text_a": "One two. Three four.", "text_b": "One two. Five six."}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["overall_max_score"])
	assert.Equal(t, 0.5, body["average_score"])
	assert.Equal(t, map[string]any{
		"overall_max": "highest similarity between any sentence pair",
		"average":     "average similarity across all sentence pairs from text_a",
	}, body["interpretation"])
}

func TestAnalyzeBadInput(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 0)

	for _, tc := range []struct{ path, body string }{
		{"/analyze-simple", `not json`},
		{"/analyze-simple", `{"text_a": "only one"}`},
		{"/analyze-paraphrase", `{"text_b": "only one"}`},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.path, tc.body)
		assert.Equal(t, "input", decode(t, rec)["kind"])
	}
}

func TestHealth(t *testing.T) {
	ok := httptest.NewRecorder()
	newTestServer(t, similarity.NewLexical(), 0).ServeHTTP(ok, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "ok", decode(t, ok)["status"])

	down := httptest.NewRecorder()
	newTestServer(t, downScorer{}, 0).ServeHTTP(down, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	body := decode(t, down)
	assert.Equal(t, "unavailable", body["status"])
	assert.Contains(t, body["message"], "model not loaded")
}

func TestIndexAndStats(t *testing.T) {
	h := newTestServer(t, similarity.NewLexical(), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode(t, rec)["version"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "uptime_seconds")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?"+strings.Repeat("q", 300), nil))

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
