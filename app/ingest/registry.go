package ingest

import (
	"errors"
	"sync"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusWarning    = "warning"
	StatusFailed     = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

type Status struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ModuleCode string    `json:"module_code,omitempty"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Registry owns the process-wide document processing state. Records live for
// the process lifetime and are never persisted.
type Registry struct {
	mu   sync.Mutex
	docs map[string]*Status
}

func NewRegistry() *Registry {
	return &Registry{docs: map[string]*Status{}}
}

func (r *Registry) start(documentID, filename, moduleCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[documentID] = &Status{
		DocumentID: documentID,
		Filename:   filename,
		ModuleCode: moduleCode,
		Status:     StatusProcessing,
		Progress:   0,
		UpdatedAt:  time.Now(),
	}
}

// advance moves progress forward only; a stale checkpoint never rolls back
// what a polling client already observed.
func (r *Registry) advance(documentID string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.docs[documentID]; ok && progress > s.Progress {
		s.Progress = progress
		s.UpdatedAt = time.Now()
	}
}

func (r *Registry) finish(documentID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.docs[documentID]; ok {
		s.Status = status
		s.Progress = 100
		s.UpdatedAt = time.Now()
	}
}

func (r *Registry) fail(documentID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.docs[documentID]; ok {
		s.Status = StatusFailed
		s.Error = err.Error()
		s.UpdatedAt = time.Now()
	}
}

func (r *Registry) Get(documentID string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.docs[documentID]
	if !ok {
		return Status{}, ErrDocumentNotFound
	}
	return *s, nil
}
