package session

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-parser/internal/batch"
	"cv-parser/internal/extract"
	"cv-parser/internal/extraction"
	"cv-parser/internal/llm"
	"cv-parser/internal/results"
	"cv-parser/internal/resume"
)

type scriptedCompleter struct {
	mu    sync.Mutex
	calls int
	keys  []string
}

func (s *scriptedCompleter) Complete(_ context.Context, apiKey string, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.keys = append(s.keys, apiKey)
	prompt := req.Messages[len(req.Messages)-1].Content
	switch {
	case strings.Contains(prompt, "REFUSE"):
		return "I'm sorry, I cannot process this", nil
	case strings.Contains(prompt, "Jane"):
		return `{"name":"Jane Doe","email":"jane@x.com","skills":["Python","Go","SQL"],"years_of_experience":5}`, nil
	default:
		return `{"name":"Sam Roe","skills":["Go","Rust"],"years_of_experience":"3-5"}`, nil
	}
}

type textLayer struct{}

func (textLayer) Name() extract.Strategy { return extract.StrategyLayout }

func (textLayer) ExtractText(_ context.Context, data []byte) (string, error) {
	return strings.TrimPrefix(string(data), "%PDF-"), nil
}

type testServer struct {
	router    *gin.Engine
	completer *scriptedCompleter
	registry  *Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	completer := &scriptedCompleter{}
	client := extraction.New(completer, "fake")
	processor := batch.NewProcessor(client, batch.WithRetries(0))
	docs := extract.Documents{PDF: extract.NewPDFExtractorWith(textLayer{})}
	registry := NewRegistry(0, nil)

	r := gin.New()
	NewHandler(registry, processor, docs, HandlerConfig{TopSkills: 2, CSVRowLimit: 3, MaxUploadBytes: 1 << 20}).RegisterRoutes(r.Group("/api/v1"))
	return &testServer{router: r, completer: completer, registry: registry}
}

func (ts *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func (ts *testServer) json(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return ts.do(t, method, path, bytes.NewBufferString(body), "application/json")
}

func (ts *testServer) newSession(t *testing.T, credential string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	if credential != "" {
		resp = ts.json(t, http.MethodPut, "/api/v1/sessions/"+created.ID+"/credential", `{"api_key":"`+credential+`"}`)
		require.Equal(t, http.StatusNoContent, resp.Code)
	}
	return created.ID
}

func multipartBody(t *testing.T, field string, files map[string]string, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeBatch(t *testing.T, resp *httptest.ResponseRecorder) batchResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out batchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestTextExtractionAppendsToSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "sk-test")

	out := decodeBatch(t, ts.json(t, http.MethodPost, "/api/v1/sessions/"+id+"/text", `{"text":"Jane Doe, jane@x.com, Python/Go/SQL, 5 years experience"}`))
	require.Len(t, out.Records, 1)
	assert.Equal(t, resume.StatusOK, out.Records[0].Status)
	assert.Equal(t, "Jane Doe", out.Records[0].Name)
	assert.Empty(t, out.Records[0].SourceFilename)
	assert.Equal(t, Progress{Completed: 1, Total: 1}, out.Progress)
	assert.Equal(t, []string{"sk-test"}, ts.completer.keys)

	resp := ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/records", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"count":1`)
	assert.NotContains(t, resp.Body.String(), "sk-test")
}

func TestExtractionRequiresCredentialBeforeAnyCall(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "")

	resp := ts.json(t, http.MethodPost, "/api/v1/sessions/"+id+"/text", `{"text":"Jane"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "credential_required")
	assert.Zero(t, ts.completer.calls)

	resp = ts.json(t, http.MethodPut, "/api/v1/sessions/"+id+"/credential", `{"api_key":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestFilesBatchKeepsOrderAndFlagsEmptyDocuments(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "sk-test")

	body, ct := multipartBody(t, "files", map[string]string{
		"a.pdf":    "%PDF-Jane Doe resume",
		"scan.pdf": "%PDF-   ",
		"b.txt":    "REFUSE please",
		"c.png":    "binary",
	}, []string{"a.pdf", "scan.pdf", "b.txt", "c.png"})

	out := decodeBatch(t, ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/files", body, ct))
	require.Len(t, out.Records, 4)
	assert.Equal(t, []string{"a.pdf", "scan.pdf", "b.txt", "c.png"}, []string{
		out.Records[0].SourceFilename, out.Records[1].SourceFilename, out.Records[2].SourceFilename, out.Records[3].SourceFilename,
	})
	assert.Equal(t, resume.StatusOK, out.Records[0].Status)
	assert.Equal(t, resume.StatusInputEmpty, out.Records[1].Status)
	assert.Equal(t, resume.StatusParseFailed, out.Records[2].Status)
	assert.Contains(t, out.Records[2].RawError, "I'm sorry")
	assert.Equal(t, resume.StatusInputEmpty, out.Records[3].Status)
	assert.Equal(t, 2, ts.completer.calls)
	assert.Equal(t, Progress{Completed: 4, Total: 4}, out.Progress)
}

func TestCSVBatchHonorsLimitAndReportsColumnErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "sk-test")

	csvData := "ID,Resume_str\n1,Jane one\n2,Sam two\n3,Sam three\n4,Sam four\n"
	body, ct := multipartBody(t, "file", map[string]string{"Resume.csv": csvData}, []string{"Resume.csv"})
	out := decodeBatch(t, ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/csv?limit=2", body, ct))
	require.Len(t, out.Records, 2)
	assert.Equal(t, "Resume.csv#1", out.Records[0].SourceFilename)
	assert.Equal(t, "Resume.csv#2", out.Records[1].SourceFilename)

	body, ct = multipartBody(t, "file", map[string]string{"bad.csv": "ID,Text\n1,x\n"}, []string{"bad.csv"})
	resp := ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/csv", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "missing_column")
	assert.Equal(t, 2, ts.completer.calls)
}

func TestStatsExportAndReset(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "sk-test")
	decodeBatch(t, ts.json(t, http.MethodPost, "/api/v1/sessions/"+id+"/text", `{"text":"Jane"}`))
	decodeBatch(t, ts.json(t, http.MethodPost, "/api/v1/sessions/"+id+"/text", `{"text":"Sam"}`))

	resp := ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var st struct {
		TotalProcessed  int                  `json:"total_processed"`
		TotalSuccessful int                  `json:"total_successful"`
		Average         *float64             `json:"average_years_experience"`
		TopSkills       []results.SkillCount `json:"top_skills"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &st))
	assert.Equal(t, 2, st.TotalProcessed)
	assert.Equal(t, 2, st.TotalSuccessful)
	require.NotNil(t, st.Average)
	assert.InDelta(t, 4.5, *st.Average, 1e-9)
	assert.Equal(t, []results.SkillCount{{Skill: "Go", Count: 2}, {Skill: "Python", Count: 1}}, st.TopSkills)

	resp = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "extracted_resumes.csv")
	assert.True(t, strings.HasPrefix(resp.Body.String(), "name,email,skills,years_experience,source_filename,status,raw_error\n"))

	resp = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=xml", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/records", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/v1/sessions/nope/records", "/api/v1/sessions/2b0f3f5e-4f7a-4d53-9a57-8f9a3d9c1c11/progress"} {
		resp := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Contains(t, resp.Body.String(), "session_not_found")
	}
}

func TestUploadSizeLimit(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t, "sk-test")
	body, ct := multipartBody(t, "file", map[string]string{"big.pdf": strings.Repeat("x", 2<<20)}, []string{"big.pdf"})

	resp := ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/pdf", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Zero(t, ts.completer.calls)
}
