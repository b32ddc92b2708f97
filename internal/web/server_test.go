package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WvvvWv/csvsplit/internal/config"
	"github.com/WvvvWv/csvsplit/internal/core"
	"github.com/WvvvWv/csvsplit/internal/history"
)

func newTestServer(t *testing.T, sec config.SecurityConfig) *Server {
	t.Helper()
	svc := core.NewService(core.Options{}, history.NewMemoryStore(10))
	return NewServer(svc, sec)
}

func postSplit(t *testing.T, s *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/split", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) core.SplitResult {
	t.Helper()
	var res core.SplitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func splitBody(t *testing.T, req core.SplitRequest) string {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestHandleSplit_Success(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(input, []byte("id,total\n1,10\n2,20\n3,30\n"), 0o644))
	out := filepath.Join(dir, "out")

	s := newTestServer(t, config.SecurityConfig{})
	rec := postSplit(t, s, splitBody(t, core.SplitRequest{
		InputPath: input, OutputDir: out, RowsPerFile: 2, HasHeader: true,
	}), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Content-Type-Options"))

	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.FileCount)
	assert.Nil(t, res.Error)
	assert.FileExists(t, filepath.Join(out, "orders_1.csv"))
	assert.FileExists(t, filepath.Join(out, "orders_2.csv"))
}

func TestHandleSplit_FailedSplitIsStill200(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{})
	rec := postSplit(t, s, `{"input_path":"x.csv","output_dir":"out","rows_per_file":0,"has_header":true,"convert_to_excel":false}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "VAL001", rec.Header().Get("X-Error-Code"))

	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.FileCount)
	require.NotNil(t, res.Error)
	assert.Equal(t, "rows per file must be greater than 0", *res.Error)
}

func TestHandleSplit_BadJSON(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{})
	rec := postSplit(t, s, `{"input_path":`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "invalid request body")
}

func TestHandleSplit_WireFormat(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{})
	rec := postSplit(t, s, `{"input_path":"","output_dir":"","rows_per_file":0,"has_header":false,"convert_to_excel":false}`, nil)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, false, raw["success"])
	assert.Equal(t, float64(0), raw["file_count"])
	assert.Contains(t, raw, "error")
}

func TestHandleRuns(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{})
	for i := 0; i < 3; i++ {
		postSplit(t, s, `{"rows_per_file":0}`, nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs  []history.Run `json:"runs"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Runs, 2)
	assert.False(t, body.Runs[0].Success)
}

type failingService struct{ SplitService }

func (failingService) Recent(context.Context, int) ([]history.Run, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestHandleRuns_StoreError(t *testing.T) {
	s := NewServer(failingService{}, config.SecurityConfig{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ERR000", body.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k"}})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}})
	body := `{"rows_per_file":0}`

	assert.Equal(t, http.StatusUnauthorized, postSplit(t, s, body, nil).Code)
	assert.Equal(t, http.StatusForbidden, postSplit(t, s, body, map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, postSplit(t, s, body, map[string]string{"X-API-Key": "secret"}).Code)
}

func TestHandleSplit_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, config.SecurityConfig{})
	big := `{"input_path":"` + string(bytes.Repeat([]byte("a"), maxRequestBody)) + `"}`

	rec := postSplit(t, s, big, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult(t, rec)
	require.NotNil(t, res.Error)
	assert.Equal(t, "invalid request body: too large", *res.Error)
}
