package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/app/assistant"
	"bloom/app/chunker"
	"bloom/app/ingest"
	"bloom/app/models"
	"bloom/app/modules"
	"bloom/app/scraper"
	"bloom/app/storage"
	"bloom/app/vectordb"
)

type memStore struct {
	mu          sync.Mutex
	collections map[string]map[string]vectordb.Point
}

func newMemStore() *memStore {
	return &memStore{collections: map[string]map[string]vectordb.Point{}}
}

func (m *memStore) EnsureCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = map[string]vectordb.Point{}
	}
	return nil
}

func (m *memStore) Upsert(_ context.Context, collection string, points []vectordb.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.collections[collection][p.ID] = p
	}
	return nil
}

func (m *memStore) Query(_ context.Context, collection string, _ []float32, k int) ([]vectordb.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []vectordb.Result
	for _, p := range m.collections[collection] {
		text, _ := p.Payload["text"].(string)
		id, _ := p.Payload["chunk_id"].(string)
		results = append(results, vectordb.Result{ID: id, Text: text, Metadata: p.Payload, Score: 0.1})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (m *memStore) ListCollections(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names, nil
}

type stubLLM struct{}

func (stubLLM) GenerateResponse(_ context.Context, _ []models.Message) (string, error) {
	return "stub answer", nil
}

func (stubLLM) Embed(_ context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{float32(i)}
	}
	return vectors, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()

	store := newMemStore()
	gateway := vectordb.NewGateway(store, stubLLM{})
	pipeline := ingest.New(gateway, ingest.NewRegistry(), chunker.New(0, 0))
	files := modules.NewStore(t.TempDir())
	orchestrator := scraper.NewOrchestrator(pipeline, files)

	history, err := storage.NewSQLiteHistory(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	chat := assistant.New(stubLLM{}, gateway, history)

	ts := httptest.NewServer(New(pipeline, orchestrator, chat, files, gateway).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func buildUpload(t *testing.T, filename, moduleCode string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if moduleCode != "" {
		require.NoError(t, mw.WriteField("module_code", moduleCode))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func minimalDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(fmt.Sprintf(
		`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`,
		text)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	ts, _ := newTestServer(t)
	buf, contentType := buildUpload(t, "notes.txt", "", []byte("plain text"))
	resp, err := http.Post(ts.URL+"/documents/upload", contentType, buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndStatus(t *testing.T) {
	ts, store := newTestServer(t)

	content := minimalDocx(t, strings.Repeat("course material text ", 10))
	buf, contentType := buildUpload(t, "handbook.docx", "CST3350", content)
	resp, err := http.Post(ts.URL+"/documents/upload", contentType, buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	documentID, _ := body["document_id"].(string)
	require.NotEmpty(t, documentID)
	assert.Equal(t, "CST3350", body["module_code"])

	statusResp, err := http.Get(ts.URL + "/documents/status/" + documentID)
	require.NoError(t, err)
	statusBody := decodeBody(t, statusResp)
	assert.Contains(t, []string{"complete", "warning"}, statusBody["status"])

	store.mu.Lock()
	_, ok := store.collections["module_CST3350"]
	store.mu.Unlock()
	assert.True(t, ok, "upload must index into the module collection")
}

func TestDocumentStatusNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/documents/status/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteDocumentNotImplemented(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents/abc", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"query": "when is the exam?", "session_id": "s1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "stub answer", body["response"])

	historyResp, err := http.Get(ts.URL + "/chat/history?session_id=s1")
	require.NoError(t, err)
	historyBody := decodeBody(t, historyResp)
	turns, ok := historyBody["history"].([]any)
	require.True(t, ok)
	assert.Len(t, turns, 2)

	clearResp := postJSON(t, ts.URL+"/chat/clear", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusOK, clearResp.StatusCode)
	clearResp.Body.Close()
}

func TestChatRequiresQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/chat", map[string]string{"query": "  "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatModulesMergesSources(t *testing.T) {
	ts, store := newTestServer(t)

	require.NoError(t, store.EnsureCollection(context.Background(), "module_CST3350"))
	require.NoError(t, store.EnsureCollection(context.Background(), "bloom_documents"))

	resp, err := http.Get(ts.URL + "/chat/modules")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	mods, ok := body["modules"].([]any)
	require.True(t, ok)
	require.Len(t, mods, 1, "only module_ collections become modules")
	entry := mods[0].(map[string]any)
	assert.Equal(t, "CST3350", entry["code"])
	assert.Equal(t, "Module CST3350", entry["name"])
}

func TestScrapeStartValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/scraper/start", map[string]string{"url": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScrapeStatusNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/scraper/status/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModuleEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	content := minimalDocx(t, strings.Repeat("module endpoint text ", 10))
	buf, contentType := buildUpload(t, "notes.docx", "CST2550", content)
	resp, err := http.Post(ts.URL+"/documents/upload", contentType, buf)
	require.NoError(t, err)
	resp.Body.Close()

	listResp, err := http.Get(ts.URL + "/scraper/modules")
	require.NoError(t, err)
	listBody := decodeBody(t, listResp)
	mods := listBody["modules"].([]any)
	require.Len(t, mods, 1)

	getResp, err := http.Get(ts.URL + "/scraper/modules/CST2550")
	require.NoError(t, err)
	getBody := decodeBody(t, getResp)
	assert.Equal(t, "CST2550", getBody["module_code"])

	treeResp, err := http.Get(ts.URL + "/scraper/modules/tree")
	require.NoError(t, err)
	defer treeResp.Body.Close()
	assert.Equal(t, http.StatusOK, treeResp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/scraper/modules/CST2550", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	missingResp, err := http.Get(ts.URL + "/scraper/modules/CST2550")
	require.NoError(t, err)
	defer missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/chat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
