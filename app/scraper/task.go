package scraper

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusInitializing      = "initializing"
	StatusScraping          = "scraping"
	StatusAwaitingFolders   = "awaiting_folders"
	StatusProcessingFolders = "processing_folders"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
)

var ErrTaskNotFound = errors.New("scraping task not found")

// Document is a file reference handed in by the client, either with the
// initial scrape request or per folder during traversal.
type Document struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Task tracks one course scrape. All mutation goes through the mutex;
// the scrape goroutine and status requests touch it concurrently.
type Task struct {
	mu sync.Mutex

	id         string
	url        string
	moduleCode string
	moduleName string
	startTime  time.Time

	status          string
	progress        int
	filesFound      []string
	filesDownloaded []string
	errs            []string
	totalFiles      int
	completedFiles  int
	cookies         map[string]string
	hasFolders      bool
}

// Snapshot is the externally visible state of a Task at one moment.
type Snapshot struct {
	TaskID          string   `json:"task_id"`
	URL             string   `json:"url"`
	ModuleCode      string   `json:"module_code"`
	ModuleName      string   `json:"module_name"`
	StartTime       string   `json:"start_time"`
	ElapsedTime     float64  `json:"elapsed_time"`
	Status          string   `json:"status"`
	Progress        int      `json:"progress"`
	FilesFound      int      `json:"files_found"`
	FilesDownloaded int      `json:"files_downloaded"`
	Errors          []string `json:"errors"`
	TotalFiles      int      `json:"total_files"`
	CompletedFiles  int      `json:"completed_files"`
	HasFolders      bool     `json:"has_folders"`
}

func newTask(url, moduleCode, moduleName string, cookies map[string]string, hasFolders bool) *Task {
	return &Task{
		id:         uuid.NewString(),
		url:        url,
		moduleCode: moduleCode,
		moduleName: moduleName,
		startTime:  time.Now(),
		status:     StatusInitializing,
		cookies:    cookies,
		hasFolders: hasFolders,
	}
}

func (t *Task) ID() string { return t.id }

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs := make([]string, len(t.errs))
	copy(errs, t.errs)
	return Snapshot{
		TaskID:          t.id,
		URL:             t.url,
		ModuleCode:      t.moduleCode,
		ModuleName:      t.moduleName,
		StartTime:       t.startTime.Format(time.RFC3339),
		ElapsedTime:     time.Since(t.startTime).Seconds(),
		Status:          t.status,
		Progress:        t.progress,
		FilesFound:      len(t.filesFound),
		FilesDownloaded: len(t.filesDownloaded),
		Errors:          errs,
		TotalFiles:      t.totalFiles,
		CompletedFiles:  t.completedFiles,
		HasFolders:      t.hasFolders,
	}
}

func (t *Task) setStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *Task) finish(status string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.progress = progress
}

func (t *Task) setProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = progress
}

func (t *Task) setFound(names []string, totalFiles int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesFound = names
	t.totalFiles = totalFiles
}

func (t *Task) addFound(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesFound = append(t.filesFound, names...)
	t.totalFiles += len(names)
}

func (t *Task) markDownloaded(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesDownloaded = append(t.filesDownloaded, name)
	t.completedFiles++
}

func (t *Task) addError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, msg)
}

func (t *Task) fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusFailed
	t.errs = append(t.errs, msg)
}

// updateFolderProgress recomputes progress from completed files, capped
// below 100 so only an explicit traversal-complete call finishes the task.
func (t *Task) updateFolderProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalFiles > 0 {
		p := 100 * t.completedFiles / t.totalFiles
		if p > 95 {
			p = 95
		}
		t.progress = p
	}
}

func (t *Task) cookieMap() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cookies
}

// registry is the in-memory task table. Tasks are never evicted.
type registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func newRegistry() *registry {
	return &registry{tasks: make(map[string]*Task)}
}

func (r *registry) add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.id] = t
}

func (r *registry) get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

func (r *registry) list() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}
