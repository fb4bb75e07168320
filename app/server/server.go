package server

import (
	"encoding/json"
	"log"
	"net/http"

	"bloom/app/assistant"
	"bloom/app/ingest"
	"bloom/app/modules"
	"bloom/app/scraper"
	"bloom/app/vectordb"
)

const apiVersion = "1.1.0"

// Server exposes the document, scraper and chat APIs over HTTP.
type Server struct {
	pipeline  *ingest.Pipeline
	scraper   *scraper.Orchestrator
	assistant *assistant.Assistant
	files     *modules.Store
	gateway   *vectordb.Gateway
	mux       *http.ServeMux
}

func New(pipeline *ingest.Pipeline, orchestrator *scraper.Orchestrator,
	chat *assistant.Assistant, files *modules.Store, gateway *vectordb.Gateway) *Server {
	s := &Server{
		pipeline:  pipeline,
		scraper:   orchestrator,
		assistant: chat,
		files:     files,
		gateway:   gateway,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /documents/upload", s.handleUpload)
	s.mux.HandleFunc("GET /documents/status/{id}", s.handleDocumentStatus)
	s.mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)

	s.mux.HandleFunc("POST /scraper/start", s.handleScrapeStart)
	s.mux.HandleFunc("POST /scraper/add_folder_documents", s.handleAddFolderDocuments)
	s.mux.HandleFunc("POST /scraper/complete_folders", s.handleCompleteFolders)
	s.mux.HandleFunc("GET /scraper/status/{id}", s.handleScrapeStatus)
	s.mux.HandleFunc("GET /scraper/tasks", s.handleScrapeTasks)
	s.mux.HandleFunc("GET /scraper/modules", s.handleListModules)
	s.mux.HandleFunc("GET /scraper/modules/tree", s.handleModulesTree)
	s.mux.HandleFunc("GET /scraper/modules/{code}", s.handleGetModule)
	s.mux.HandleFunc("DELETE /scraper/modules/{code}", s.handleDeleteModule)
	s.mux.HandleFunc("DELETE /scraper/modules/{code}/files", s.handleDeleteModuleFile)

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/clear", s.handleChatClear)
	s.mux.HandleFunc("GET /chat/history", s.handleChatHistory)
	s.mux.HandleFunc("GET /chat/modules", s.handleChatModules)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler wraps the mux with permissive CORS for the browser extension.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": apiVersion})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("⚠️ Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
