package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"bloom/app/chunker"
)

type addCall struct {
	texts      []string
	metadatas  []map[string]any
	collection string
}

type fakeGateway struct {
	calls []addCall
	err   error
}

func (f *fakeGateway) Add(_ context.Context, texts []string, metadatas []map[string]any, collection string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, addCall{texts: texts, metadatas: metadatas, collection: collection})
	return make([]string, len(texts)), nil
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	body.WriteString("</w:body></w:document>")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newPipeline(gw *fakeGateway) *Pipeline {
	return New(gw, NewRegistry(), chunker.New(200, 40))
}

func TestIngestDocx(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(gw)

	content := buildDocx(t,
		"The module covers the design and implementation of concurrent systems in considerable depth.",
		"Students are expected to complete weekly laboratory exercises building toward the final project.",
	)
	docID, err := p.Ingest(context.Background(), content, "handbook.docx", "")
	if err != nil {
		t.Fatal(err)
	}
	if docID == "" {
		t.Fatal("expected a document id")
	}

	if len(gw.calls) != 1 {
		t.Fatalf("expected one store call, got %d", len(gw.calls))
	}
	call := gw.calls[0]
	if call.collection != "bloom_documents" {
		t.Errorf("upload without module must land in the default collection, got %s", call.collection)
	}
	if len(call.texts) == 0 {
		t.Fatal("no chunks stored")
	}
	for i, md := range call.metadatas {
		if md["document_id"] != docID {
			t.Errorf("chunk %d missing document id", i)
		}
		if md["filename"] != "handbook.docx" {
			t.Errorf("chunk %d missing filename", i)
		}
		if md["chunk_index"] != i {
			t.Errorf("chunk %d has index %v", i, md["chunk_index"])
		}
		if md["total_chunks"] != len(call.texts) {
			t.Errorf("chunk %d has total %v, want %d", i, md["total_chunks"], len(call.texts))
		}
		if _, present := md["module_code"]; present {
			t.Errorf("module_code must be omitted when absent, got %v", md["module_code"])
		}
		if md["source_type"] != SourceUserUpload {
			t.Errorf("chunk %d has source type %v", i, md["source_type"])
		}
	}

	status, err := p.Registry().Get(docID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != StatusComplete || status.Progress != 100 {
		t.Errorf("unexpected terminal status: %+v", status)
	}
}

func TestIngestModuleScoped(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(gw)

	content := buildDocx(t, "Lecture one introduces the relational model and the SQL query language in detail.")
	_, err := p.Ingest(context.Background(), content, "lecture1.docx", "CST3350")
	if err != nil {
		t.Fatal(err)
	}
	call := gw.calls[0]
	if call.collection != "module_CST3350" {
		t.Errorf("wrong target collection: %s", call.collection)
	}
	if call.metadatas[0]["module_code"] != "CST3350" {
		t.Errorf("module_code missing from metadata")
	}
}

func TestIngestNeverZeroChunks(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(gw)

	// A document whose extraction yields nothing still ends up with exactly
	// one stored placeholder chunk.
	content := buildDocx(t)
	docID, err := p.Ingest(context.Background(), content, "blank.docx", "CST3350")
	if err != nil {
		t.Fatal(err)
	}

	call := gw.calls[0]
	if len(call.texts) != 1 {
		t.Fatalf("expected exactly one placeholder chunk, got %d", len(call.texts))
	}
	if !strings.Contains(call.texts[0], "blank.docx") || !strings.Contains(call.texts[0], "CST3350") {
		t.Errorf("placeholder must carry filename and module: %q", call.texts[0])
	}
	if call.metadatas[0]["document_id"] != docID || call.metadatas[0]["filename"] != "blank.docx" {
		t.Errorf("placeholder metadata incomplete: %+v", call.metadatas[0])
	}

	status, _ := p.Registry().Get(docID)
	if status.Status != StatusWarning {
		t.Errorf("low-content ingestion should end in warning, got %s", status.Status)
	}
}

func TestIngestUnsupportedExtension(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(gw)

	_, err := p.Ingest(context.Background(), []byte("some notes"), "notes.txt", "")
	if err == nil {
		t.Fatal("expected unsupported-format error")
	}
	if len(gw.calls) != 0 {
		t.Error("nothing should reach the vector store")
	}
}

func TestIngestStorageFailure(t *testing.T) {
	gw := &fakeGateway{err: errors.New("vector store unavailable")}
	p := newPipeline(gw)

	content := buildDocx(t, "Enough text for this paragraph to pass the extraction thresholds without any trouble at all today.")
	_, err := p.Ingest(context.Background(), content, "doc.docx", "")
	if err == nil {
		t.Fatal("storage failure must propagate")
	}
}

func TestIngestText(t *testing.T) {
	gw := &fakeGateway{}
	p := newPipeline(gw)

	docID, err := p.IngestText(context.Background(),
		strings.Repeat("Course page content with announcements and section summaries. ", 10),
		"CST3350_page_content.txt", "CST3350", "Advanced Databases", SourceMoodlePage)
	if err != nil {
		t.Fatal(err)
	}
	call := gw.calls[0]
	if call.metadatas[0]["source_type"] != SourceMoodlePage {
		t.Errorf("wrong source type: %v", call.metadatas[0]["source_type"])
	}
	if call.metadatas[0]["module_name"] != "Advanced Databases" {
		t.Errorf("module name missing")
	}
	if status, _ := p.Registry().Get(docID); status.Status != StatusComplete {
		t.Errorf("unexpected status %s", status.Status)
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
