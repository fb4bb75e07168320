package assistant

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/app/models"
	"bloom/app/storage"
	"bloom/app/vectordb"
)

type fakeLLM struct {
	replies  []string
	requests [][]models.Message
}

func (f *fakeLLM) GenerateResponse(_ context.Context, messages []models.Message) (string, error) {
	f.requests = append(f.requests, messages)
	reply := fmt.Sprintf("reply %d", len(f.requests))
	if len(f.replies) >= len(f.requests) {
		reply = f.replies[len(f.requests)-1]
	}
	return reply, nil
}

func (f *fakeLLM) Embed(_ context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{0}
	}
	return vectors, nil
}

type fakeSearcher struct {
	results    []vectordb.Result
	err        error
	collection string
	k          int
}

func (f *fakeSearcher) Search(_ context.Context, _, collection string, k int) ([]vectordb.Result, error) {
	f.collection = collection
	f.k = k
	return f.results, f.err
}

type memoryHistory struct {
	sessions map[string][]storage.Record
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{sessions: map[string][]storage.Record{}}
}

func (m *memoryHistory) AppendMessage(_ context.Context, record storage.Record) error {
	record.Seq = int64(len(m.sessions[record.SessionID]) + 1)
	m.sessions[record.SessionID] = append(m.sessions[record.SessionID], record)
	return nil
}

func (m *memoryHistory) GetMessages(_ context.Context, sessionID string) ([]storage.Record, error) {
	return m.sessions[sessionID], nil
}

func (m *memoryHistory) TrimSession(_ context.Context, sessionID string, keep int) error {
	records := m.sessions[sessionID]
	if len(records) <= keep+1 {
		return nil
	}
	trimmed := append([]storage.Record{records[0]}, records[len(records)-keep:]...)
	m.sessions[sessionID] = trimmed
	return nil
}

func (m *memoryHistory) ClearSession(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func chunkResult(docID, filename, moduleCode, text string, score float64) vectordb.Result {
	metadata := map[string]any{"document_id": docID, "filename": filename}
	if moduleCode != "" {
		metadata["module_code"] = moduleCode
	}
	return vectordb.Result{ID: docID + "_0", Text: text, Metadata: metadata, Score: score}
}

func TestAnswerBuildsContextAndSources(t *testing.T) {
	llm := &fakeLLM{replies: []string{"the deadline is Friday"}}
	search := &fakeSearcher{results: []vectordb.Result{
		chunkResult("d1", "handbook.pdf", "CST3350", "Coursework due Friday", 0.1),
		chunkResult("d2", "slides.pptx", "CST3350", "Week 3 material", 0.2),
		chunkResult("d3", "notes.pdf", "", "Extra reading", 0.3),
		chunkResult("d4", "old.pdf", "CST3350", "Older material", 0.4),
	}}
	a := New(llm, search, newMemoryHistory())

	answer, sources, err := a.Answer(context.Background(), "when is coursework due?", "CST3350", "s1")
	require.NoError(t, err)
	assert.Equal(t, "the deadline is Friday", answer)

	assert.Equal(t, "module_CST3350", search.collection)
	assert.Equal(t, 8, search.k)

	require.Len(t, sources, 3, "only the top three sources are returned")
	assert.Equal(t, "d1", sources[0].DocumentID)
	assert.Equal(t, "handbook.pdf", sources[0].Filename)
	assert.Equal(t, 0.1, sources[0].Relevance)
	assert.Equal(t, "Unknown", sources[2].ModuleCode)

	require.Len(t, llm.requests, 1)
	messages := llm.requests[0]
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "BLOOM")
	assert.Contains(t, messages[1].Content, "[Document: handbook.pdf, Chunk 1]")
	assert.Contains(t, messages[1].Content, "[Document: slides.pptx, Chunk 2]")
	assert.Contains(t, messages[1].Content, "My question is: when is coursework due?")
}

func TestAnswerSearchesAllCollectionsWithoutModule(t *testing.T) {
	search := &fakeSearcher{}
	a := New(&fakeLLM{}, search, newMemoryHistory())

	_, _, err := a.Answer(context.Background(), "hello", "", "")
	require.NoError(t, err)
	assert.Equal(t, vectordb.AllCollections, search.collection)
}

func TestAnswerKeepsConversationHistory(t *testing.T) {
	llm := &fakeLLM{}
	history := newMemoryHistory()
	a := New(llm, &fakeSearcher{}, history)

	_, _, err := a.Answer(context.Background(), "first question", "", "s1")
	require.NoError(t, err)
	_, _, err = a.Answer(context.Background(), "second question", "", "s1")
	require.NoError(t, err)

	// second request carries the first exchange
	second := llm.requests[1]
	require.Len(t, second, 4)
	assert.Equal(t, "system", second[0].Role)
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "reply 1", second[2].Content)
	assert.Contains(t, second[3].Content, "second question")

	// history stores the bare query, not the context-enhanced message
	records := history.sessions["s1"]
	require.Len(t, records, 5)
	assert.Equal(t, "first question", records[1].Content)
}

func TestAnswerHistoryWindow(t *testing.T) {
	llm := &fakeLLM{}
	history := newMemoryHistory()
	a := New(llm, &fakeSearcher{}, history)

	// seed a long stored history
	require.NoError(t, history.AppendMessage(context.Background(), storage.Record{SessionID: "s1", Role: "system", Content: systemPrompt}))
	for i := 0; i < 30; i++ {
		require.NoError(t, history.AppendMessage(context.Background(), storage.Record{
			SessionID: "s1", Role: "user", Content: fmt.Sprintf("old %d", i),
		}))
	}

	_, _, err := a.Answer(context.Background(), "latest", "", "s1")
	require.NoError(t, err)

	messages := llm.requests[0]
	// system + last 20 turns + new query
	require.Len(t, messages, 22)
	assert.Equal(t, "old 10", messages[1].Content)
	assert.Equal(t, "old 29", messages[20].Content)
}

func TestAnswerSearchError(t *testing.T) {
	a := New(&fakeLLM{}, &fakeSearcher{err: assert.AnError}, newMemoryHistory())
	_, _, err := a.Answer(context.Background(), "q", "", "s1")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClearSession(t *testing.T) {
	history := newMemoryHistory()
	a := New(&fakeLLM{}, &fakeSearcher{}, history)

	_, _, err := a.Answer(context.Background(), "q", "", "s1")
	require.NoError(t, err)
	require.NotEmpty(t, history.sessions["s1"])

	require.NoError(t, a.ClearSession(context.Background(), "s1"))
	assert.Empty(t, history.sessions["s1"])
}

func TestHistoryExcludesSystemMessage(t *testing.T) {
	history := newMemoryHistory()
	a := New(&fakeLLM{}, &fakeSearcher{}, history)

	_, _, err := a.Answer(context.Background(), "q1", "", "s1")
	require.NoError(t, err)
	_, _, err = a.Answer(context.Background(), "q2", "", "s1")
	require.NoError(t, err)

	turns, err := a.History(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "q1", turns[0].Content)

	limited, err := a.History(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "q2", limited[0].Content)
}
