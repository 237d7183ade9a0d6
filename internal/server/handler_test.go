package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bc-legal-assistant/server/internal/agent/model"
	errx "github.com/bc-legal-assistant/server/internal/core/error"
	"github.com/bc-legal-assistant/server/internal/documents"
)

// --- Mocks ---

type mockRunner struct {
	resp    model.Response
	err     error
	queries []model.Query
	panics  bool
}

func (m *mockRunner) Answer(_ context.Context, q model.Query) (model.Response, error) {
	if m.panics {
		panic("boom")
	}
	m.queries = append(m.queries, q)
	return m.resp, m.err
}

type mockExtractor struct {
	text    string
	err     error
	uploads []string
}

func (m *mockExtractor) Extract(_ context.Context, up documents.Upload) (string, error) {
	m.uploads = append(m.uploads, up.Filename)
	return m.text, m.err
}

func defaultRunner() *mockRunner {
	return &mockRunner{resp: model.Response{Text: "The 2026 limit is **2.3%**.", Category: model.CategoryRent}}
}

func newTestMux(runner *mockRunner, ex documents.Extractor, limiter Limiter) http.Handler {
	cfg := Config{MaxUploadBytes: 1 << 20, AllowOrigin: "*"}
	return NewServeMux(NewHandler(runner, ex, cfg), limiter, cfg)
}

func postJSON(t *testing.T, mux http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func postMultipart(t *testing.T, mux http.Handler, query string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("query", query))
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/query", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- Tests ---

func TestQuery_JSONSuccess(t *testing.T) {
	runner := defaultRunner()
	mux := newTestMux(runner, &mockExtractor{}, nil)

	rec := postJSON(t, mux, `{"query":"  can my landlord raise rent by 50%  "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "The 2026 limit is **2.3%**.", resp.Response)
	assert.Equal(t, model.CategoryRent, resp.Category)

	require.Len(t, runner.queries, 1)
	assert.Equal(t, model.Query{Text: "can my landlord raise rent by 50%"}, runner.queries[0])
}

func TestQuery_MissingField_Returns400(t *testing.T) {
	runner := defaultRunner()
	rec := postJSON(t, newTestMux(runner, &mockExtractor{}, nil), `{"question":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "missing query field", resp.Error)
	assert.Empty(t, runner.queries)
}

func TestQuery_BlankQuery_Returns400(t *testing.T) {
	runner := defaultRunner()
	rec := postJSON(t, newTestMux(runner, &mockExtractor{}, nil), `{"query":"   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query cannot be empty", decodeError(t, rec).Error)
	assert.Empty(t, runner.queries)
}

func TestQuery_InvalidJSON_Returns400(t *testing.T) {
	rec := postJSON(t, newTestMux(defaultRunner(), &mockExtractor{}, nil), "not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decodeError(t, rec).Error)
}

func TestQuery_GenerationFailure_Returns500(t *testing.T) {
	runner := defaultRunner()
	runner.err = errx.Generation(errors.New("model unavailable"))

	rec := postJSON(t, newTestMux(runner, &mockExtractor{}, nil), `{"query":"overtime rules"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, errx.GenerationErrorMessage, resp.Error)
	assert.NotContains(t, resp.Error, "model unavailable")
}

func TestQuery_MultipartWithDocument(t *testing.T) {
	runner := defaultRunner()
	ex := &mockExtractor{text: "Notice to end tenancy, effective 2026-12-31."}

	rec := postMultipart(t, newTestMux(runner, ex, nil), "is this notice valid?", "notice.pdf", "%PDF-1.4")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"notice.pdf"}, ex.uploads)
	require.Len(t, runner.queries, 1)
	assert.Equal(t, "is this notice valid?", runner.queries[0].Text)
	assert.Equal(t, "Notice to end tenancy, effective 2026-12-31.", runner.queries[0].DocumentText)
}

func TestQuery_MultipartDocumentWithoutQuestion(t *testing.T) {
	runner := defaultRunner()
	ex := &mockExtractor{text: "Employment contract ..."}

	rec := postMultipart(t, newTestMux(runner, ex, nil), "", "contract.txt", "Employment contract ...")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.queries, 1)
	assert.Equal(t, DefaultDocumentQuestion, runner.queries[0].Text)
	assert.True(t, runner.queries[0].HasDocument())
}

func TestQuery_MultipartExtractionFailureMeansNoDocument(t *testing.T) {
	runner := defaultRunner()
	ex := &mockExtractor{err: documents.ErrUnsupportedType}

	rec := postMultipart(t, newTestMux(runner, ex, nil), "what does this say", "photo.png", "\x89PNG")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.queries, 1)
	assert.False(t, runner.queries[0].HasDocument())
}

func TestQuery_MultipartNothingUsable_Returns400(t *testing.T) {
	runner := defaultRunner()
	ex := &mockExtractor{text: ""}

	rec := postMultipart(t, newTestMux(runner, ex, nil), "  ", "blank.txt", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.queries)
}

func TestQuery_MultipartWithoutFile(t *testing.T) {
	runner := defaultRunner()
	ex := &mockExtractor{}

	rec := postMultipart(t, newTestMux(runner, ex, nil), "minimum wage", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ex.uploads)
	require.Len(t, runner.queries, 1)
	assert.Equal(t, model.Query{Text: "minimum wage"}, runner.queries[0])
}

func TestHealth(t *testing.T) {
	mux := newTestMux(defaultRunner(), &mockExtractor{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQuery_RateLimited_Returns429(t *testing.T) {
	runner := defaultRunner()
	mux := newTestMux(runner, &mockExtractor{}, NewMemoryLimiter(1, time.Minute))

	first := postJSON(t, mux, `{"query":"rent"}`)
	second := postJSON(t, mux, `{"query":"rent"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, errx.RateLimitMessage, decodeError(t, second).Error)
	assert.Len(t, runner.queries, 1)
}

func TestQuery_ForwardedForIgnoredByDefault(t *testing.T) {
	runner := defaultRunner()
	mux := newTestMux(runner, &mockExtractor{}, NewMemoryLimiter(1, time.Minute))

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"rent"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.RemoteAddr = "192.0.2.10:40000"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
	assert.Len(t, runner.queries, 1)
}

func TestQuery_LimiterErrorFailsOpen(t *testing.T) {
	runner := defaultRunner()
	mux := newTestMux(runner, &mockExtractor{}, failingLimiter{})

	rec := postJSON(t, mux, `{"query":"rent"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	mux := newTestMux(defaultRunner(), &mockExtractor{}, nil)

	rec := postJSON(t, mux, `{"query":"rent"}`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "3f0c5bd6-3d4e-4a57-9a6d-0f3b8b2a4e11")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, "3f0c5bd6-3d4e-4a57-9a6d-0f3b8b2a4e11", rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_CORSPreflight(t *testing.T) {
	mux := newTestMux(defaultRunner(), &mockExtractor{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	runner := defaultRunner()
	runner.panics = true

	rec := postJSON(t, newTestMux(runner, &mockExtractor{}, nil), `{"query":"rent"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errx.SystemErrorMessage, decodeError(t, rec).Error)
}

func TestNormalize(t *testing.T) {
	q, err := normalize("", "lease")
	require.NoError(t, err)
	assert.Equal(t, model.Query{Text: DefaultDocumentQuestion, DocumentText: "lease"}, q)

	_, err = normalize(" ", " ")
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
}
