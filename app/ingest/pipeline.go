package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"bloom/app/chunker"
	"bloom/app/extractor"
	"bloom/app/vectordb"
)

const (
	SourceUserUpload = "user_upload"
	SourceScraped    = "scraped"
	SourceMoodlePage = "moodle_page"
)

// Gateway is the slice of the vector index the pipeline writes through.
type Gateway interface {
	Add(ctx context.Context, texts []string, metadatas []map[string]any, collection string) ([]string, error)
}

type Pipeline struct {
	gateway  Gateway
	registry *Registry
	chunks   chunker.Chunker
}

func New(gateway Gateway, registry *Registry, chunks chunker.Chunker) *Pipeline {
	return &Pipeline{gateway: gateway, registry: registry, chunks: chunks}
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// Ingest processes an uploaded document and returns its generated ID.
func (p *Pipeline) Ingest(ctx context.Context, content []byte, filename, moduleCode string) (string, error) {
	return p.IngestFrom(ctx, extractor.NewBytesSource(filename, content), filename, moduleCode, SourceUserUpload)
}

// IngestFrom runs a readable binary source through extraction, chunking and
// storage, tracking progress through fixed checkpoints. Low-content documents
// finish with status "warning" instead of failing; every other error marks
// the document failed and is returned to the caller.
func (p *Pipeline) IngestFrom(ctx context.Context, src extractor.Source, filename, moduleCode, sourceType string) (string, error) {
	documentID := uuid.New().String()
	collection := vectordb.CollectionName(moduleCode)
	p.registry.start(documentID, filename, moduleCode)

	text, err := extractor.Extract(src, filename)
	lowContent := false
	switch {
	case errors.Is(err, extractor.ErrLowContent):
		log.Printf("⚠️ Low content for %s, continuing with placeholder policy", filename)
		lowContent = true
	case err != nil:
		p.registry.fail(documentID, err)
		return "", err
	}
	p.registry.advance(documentID, 30)

	chunks := p.chunks.Split(text)
	p.registry.advance(documentID, 50)

	texts, metadatas := p.buildChunkRecords(chunks, documentID, filename, moduleCode, "", sourceType)
	p.registry.advance(documentID, 70)

	if _, err := p.gateway.Add(ctx, texts, metadatas, collection); err != nil {
		p.registry.fail(documentID, err)
		return "", fmt.Errorf("store chunks for %s: %w", filename, err)
	}

	status := StatusComplete
	if lowContent {
		status = StatusWarning
	}
	p.registry.finish(documentID, status)
	log.Printf("✅ Ingested %s as document %s (%d chunks, %s)", filename, documentID, len(texts), status)
	return documentID, nil
}

// IngestText stores already-extracted text, used for scraped page content.
func (p *Pipeline) IngestText(ctx context.Context, text, filename, moduleCode, moduleName, sourceType string) (string, error) {
	documentID := uuid.New().String()
	collection := vectordb.CollectionName(moduleCode)
	p.registry.start(documentID, filename, moduleCode)
	p.registry.advance(documentID, 30)

	chunks := p.chunks.Split(text)
	p.registry.advance(documentID, 50)

	texts, metadatas := p.buildChunkRecords(chunks, documentID, filename, moduleCode, moduleName, sourceType)
	p.registry.advance(documentID, 70)

	if _, err := p.gateway.Add(ctx, texts, metadatas, collection); err != nil {
		p.registry.fail(documentID, err)
		return "", fmt.Errorf("store chunks for %s: %w", filename, err)
	}

	p.registry.finish(documentID, StatusComplete)
	return documentID, nil
}

// buildChunkRecords drops noise chunks and pairs the survivors with their
// metadata. A document that yields nothing gets exactly one placeholder chunk
// so every processed document stays retrievable by name.
func (p *Pipeline) buildChunkRecords(chunks []string, documentID, filename, moduleCode, moduleName, sourceType string) ([]string, []map[string]any) {
	var texts []string
	for _, ch := range chunks {
		if chunker.Meaningful(ch) {
			texts = append(texts, ch)
		}
	}

	if len(texts) == 0 {
		placeholder := fmt.Sprintf("Document %q", filename)
		if moduleCode != "" {
			placeholder += fmt.Sprintf(" from module %s", moduleCode)
		}
		placeholder += " was processed but no readable text content could be extracted from it."
		texts = []string{placeholder}
	}

	metadatas := make([]map[string]any, len(texts))
	for i := range texts {
		md := map[string]any{
			"document_id":  documentID,
			"filename":     filename,
			"chunk_index":  i,
			"total_chunks": len(texts),
			"source_type":  sourceType,
		}
		// module_code is omitted entirely when absent, never stored empty.
		if moduleCode != "" {
			md["module_code"] = moduleCode
		}
		if moduleName != "" {
			md["module_name"] = moduleName
		}
		metadatas[i] = md
	}
	return texts, metadatas
}
