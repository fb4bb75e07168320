package vectordb

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultCollection holds documents uploaded without a module code.
	DefaultCollection = "bloom_documents"

	// AllCollections is the search sentinel for a cross-collection query.
	AllCollections = "all"

	collectionPrefix = "module_"
)

// CollectionName maps a module code to its collection. Empty code maps to the
// shared default collection.
func CollectionName(moduleCode string) string {
	if moduleCode == "" {
		return DefaultCollection
	}
	return collectionPrefix + moduleCode
}

type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

type Result struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	// Score is a distance: lower means more relevant.
	Score float64 `json:"score"`
}

type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Store is the slice of the vector database the gateway needs.
type Store interface {
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Result, error)
	ListCollections(ctx context.Context) ([]string, error)
}

type Gateway struct {
	store    Store
	embedder Embedder

	mu    sync.Mutex
	known map[string]bool
}

func NewGateway(s Store, embedder Embedder) *Gateway {
	return &Gateway{
		store:    s,
		embedder: embedder,
		known:    map[string]bool{},
	}
}

// Add stores chunk texts under the collection, deriving a deterministic ID
// {document_id}_{chunk_index} from each metadata record so re-ingestion
// overwrites instead of duplicating. Returns the derived IDs.
func (g *Gateway) Add(ctx context.Context, texts []string, metadatas []map[string]any, collection string) ([]string, error) {
	if len(texts) == 0 || len(metadatas) == 0 {
		log.Printf("⚠️ Attempted to add empty documents to %s", collection)
		return nil, nil
	}
	if collection == "" {
		collection = DefaultCollection
	}

	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = chunkID(metadatas[min(i, len(metadatas)-1)], i)
	}

	if err := g.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	points := make([]Point, len(texts))
	for i, text := range texts {
		payload := map[string]any{
			"text":     text,
			"chunk_id": ids[i],
		}
		for k, v := range metadatas[min(i, len(metadatas)-1)] {
			payload[k] = v
		}
		points[i] = Point{
			ID:      pointID(ids[i]),
			Vector:  vectors[i],
			Payload: payload,
		}
	}

	if err := g.store.Upsert(ctx, collection, points); err != nil {
		log.Printf("❌ Error adding %d documents to %s: %v", len(texts), collection, err)
		return nil, fmt.Errorf("add documents to %s: %w", collection, err)
	}

	log.Printf("✅ Added %d chunks to collection %s", len(texts), collection)
	return ids, nil
}

// Search returns up to k results ranked by ascending distance. The sentinel
// AllCollections (or an empty collection name) fans out across every existing
// collection and merges by score.
func (g *Gateway) Search(ctx context.Context, query, collection string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	if collection == "" || collection == AllCollections {
		return g.searchAll(ctx, query, k)
	}

	vector, err := g.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := g.store.Query(ctx, collection, vector, k)
	if err != nil {
		log.Printf("❌ Error searching collection %s: %v", collection, err)
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return results, nil
}

func (g *Gateway) searchAll(ctx context.Context, query string, k int) ([]Result, error) {
	names, err := g.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	if len(names) == 0 {
		log.Print("⚠️ No collections found in the vector store")
		return nil, nil
	}

	vector, err := g.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var merged []Result
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		results, err := g.store.Query(ctx, name, vector, k)
		if err != nil {
			// A corrupt collection must not fail the whole cross-collection
			// search.
			log.Printf("⚠️ Error searching collection %s: %v", name, err)
			continue
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score < merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func (g *Gateway) ListCollections(ctx context.Context) ([]string, error) {
	return g.store.ListCollections(ctx)
}

func (g *Gateway) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := g.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	return vectors[0], nil
}

// ensureCollection creates the collection on first use. The cache is guarded
// so concurrent first access for one name cannot create divergent handles.
func (g *Gateway) ensureCollection(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.known[name] {
		return nil
	}
	if err := g.store.EnsureCollection(ctx, name); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	g.known[name] = true
	return nil
}

// chunkID derives the deterministic stored ID from chunk metadata, defaulting
// the document ID to a sentinel and the index to the positional index so the
// call stays total on incomplete metadata.
func chunkID(metadata map[string]any, position int) string {
	docID := "doc"
	if v, ok := metadata["document_id"].(string); ok && v != "" {
		docID = v
	}
	index := position
	switch v := metadata["chunk_index"].(type) {
	case int:
		index = v
	case int64:
		index = int(v)
	case float64:
		index = int(v)
	}
	return fmt.Sprintf("%s_%d", docID, index)
}

// pointID folds the logical chunk ID into a stable UUID, which is the only
// point identifier shape the store accepts.
func pointID(logical string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bloom:"+logical)).String()
}
