package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bloom/app/models"
	"bloom/app/storage"
	"bloom/app/vectordb"
)

const (
	// DefaultSession is used when the caller does not name a session.
	DefaultSession = "default"

	searchK    = 8
	topSources = 3

	// historyWindow is how many past turns are sent with each request;
	// maxHistory is the stored cap, system message excluded.
	historyWindow = 20
	maxHistory    = 40
)

const systemPrompt = `You are BLOOM, an intelligent assistant designed specifically for Middlesex University students.
Your purpose is to help students find and understand information in their course materials.

When answering questions:
1. Draw information exclusively from the provided document excerpts
2. Cite the document source when providing information
3. If information cannot be found in the provided context, acknowledge this limitation
4. Keep responses concise and student-focused, emphasizing practical information
5. Use Middlesex University terminology when applicable
6. Maintain a helpful, supportive, and educational tone
7. Reference previous parts of the conversation when relevant to show continuity

Approach complex topics by breaking them down into simpler components that students can understand.`

// Source points at a document a response drew from.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Relevance  float64 `json:"relevance"`
	ModuleCode string  `json:"module_code"`
}

// Searcher is the slice of the vector gateway the assistant reads from.
type Searcher interface {
	Search(ctx context.Context, query, collection string, k int) ([]vectordb.Result, error)
}

// Assistant answers student questions over indexed course material with
// per-session conversation memory.
type Assistant struct {
	llm     models.Interface
	search  Searcher
	history storage.Interface
}

func New(llm models.Interface, search Searcher, history storage.Interface) *Assistant {
	return &Assistant{llm: llm, search: search, history: history}
}

// Answer retrieves context for the query, generates a grounded response and
// records the turn in the session history. An empty moduleCode searches all
// collections.
func (a *Assistant) Answer(ctx context.Context, query, moduleCode, sessionID string) (string, []Source, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	collection := vectordb.AllCollections
	if moduleCode != "" {
		collection = vectordb.CollectionName(moduleCode)
	}
	log.Printf("💬 Chat query for session %s, collection %s", sessionID, collection)

	results, err := a.search.Search(ctx, query, collection, searchK)
	if err != nil {
		return "", nil, fmt.Errorf("search documents: %w", err)
	}
	log.Printf("✅ Found %d relevant chunks for query", len(results))

	messages, err := a.buildMessages(ctx, sessionID, query, results)
	if err != nil {
		return "", nil, err
	}

	answer, err := a.llm.GenerateResponse(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("generate response: %w", err)
	}

	// The stored user turn is the bare query, not the context-enhanced one.
	if err := a.recordTurn(ctx, sessionID, query, answer); err != nil {
		log.Printf("⚠️ Error saving conversation turn for session %s: %v", sessionID, err)
	}

	return answer, collectSources(results), nil
}

func (a *Assistant) buildMessages(ctx context.Context, sessionID, query string, results []vectordb.Result) ([]models.Message, error) {
	records, err := a.history.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	var messages []models.Message
	if len(records) == 0 {
		messages = append(messages, models.Message{Role: "system", Content: systemPrompt})
		if err := a.history.AppendMessage(ctx, storage.Record{
			SessionID: sessionID, Role: "system", Content: systemPrompt,
		}); err != nil {
			return nil, fmt.Errorf("persist system message: %w", err)
		}
	} else {
		messages = append(messages, models.Message{Role: records[0].Role, Content: records[0].Content})
		past := records[1:]
		if len(past) > historyWindow {
			past = past[len(past)-historyWindow:]
		}
		for _, rec := range past {
			messages = append(messages, models.Message{Role: rec.Role, Content: rec.Content})
		}
	}

	userMessage := fmt.Sprintf(
		"I need information from my course materials. Here are the relevant excerpts:\n\n%s\n\nMy question is: %s",
		formatContext(results), query)
	messages = append(messages, models.Message{Role: "user", Content: userMessage})

	log.Printf("💬 Sending %d messages to the LLM (including system message and new query)", len(messages))
	return messages, nil
}

func (a *Assistant) recordTurn(ctx context.Context, sessionID, query, answer string) error {
	if err := a.history.AppendMessage(ctx, storage.Record{SessionID: sessionID, Role: "user", Content: query}); err != nil {
		return err
	}
	if err := a.history.AppendMessage(ctx, storage.Record{SessionID: sessionID, Role: "assistant", Content: answer}); err != nil {
		return err
	}
	return a.history.TrimSession(ctx, sessionID, maxHistory)
}

// ClearSession drops a session's stored conversation.
func (a *Assistant) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	return a.history.ClearSession(ctx, sessionID)
}

// History returns up to max of the most recent non-system turns of a session.
func (a *Assistant) History(ctx context.Context, sessionID string, max int) ([]models.Message, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	records, err := a.history.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var turns []models.Message
	for _, rec := range records {
		if rec.Role == "system" {
			continue
		}
		turns = append(turns, models.Message{Role: rec.Role, Content: rec.Content})
	}
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	return turns, nil
}

// formatContext renders retrieved chunks as source-tagged excerpts.
func formatContext(results []vectordb.Result) string {
	parts := make([]string, 0, len(results))
	for i, result := range results {
		filename := "Unknown"
		if name, ok := result.Metadata["filename"].(string); ok && name != "" {
			filename = name
		}
		parts = append(parts, fmt.Sprintf("[Document: %s, Chunk %d]\n%s\n", filename, i+1, result.Text))
	}
	return strings.Join(parts, "\n")
}

func collectSources(results []vectordb.Result) []Source {
	sources := make([]Source, 0, topSources)
	for _, result := range results {
		if len(sources) == topSources {
			break
		}
		source := Source{Relevance: result.Score, DocumentID: "Unknown", Filename: "Unknown", ModuleCode: "Unknown"}
		if id, ok := result.Metadata["document_id"].(string); ok && id != "" {
			source.DocumentID = id
		}
		if name, ok := result.Metadata["filename"].(string); ok && name != "" {
			source.Filename = name
		}
		if code, ok := result.Metadata["module_code"].(string); ok && code != "" {
			source.ModuleCode = code
		}
		sources = append(sources, source)
	}
	return sources
}
