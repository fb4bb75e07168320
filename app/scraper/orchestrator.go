package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"bloom/app/extractor"
	"bloom/app/ingest"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	downloadTimeout = 30 * time.Second
	maxFetchSize    = 50 << 20
)

// Ingestor is the slice of the ingestion pipeline the scraper feeds.
type Ingestor interface {
	IngestFrom(ctx context.Context, src extractor.Source, filename, moduleCode, sourceType string) (string, error)
	IngestText(ctx context.Context, text, filename, moduleCode, moduleName, sourceType string) (string, error)
}

// Files is the slice of the module layout store the scraper writes to.
type Files interface {
	EnsureLayout(moduleCode string) (string, error)
	SaveFile(moduleCode, filename string, content []byte, sourceKind string) (string, string, error)
}

// Orchestrator runs course scrapes in the background and tracks their state.
type Orchestrator struct {
	ingestor   Ingestor
	files      Files
	httpClient *http.Client
	tasks      *registry
}

func NewOrchestrator(ingestor Ingestor, files Files) *Orchestrator {
	return &Orchestrator{
		ingestor:   ingestor,
		files:      files,
		httpClient: &http.Client{Timeout: downloadTimeout},
		tasks:      newRegistry(),
	}
}

// Start registers a scraping task and launches it in the background,
// returning the task ID immediately. When documents were pre-extracted by
// the client, the page is not re-crawled for links.
func (o *Orchestrator) Start(ctx context.Context, courseURL, moduleCode, moduleName string,
	cookies map[string]string, documents []Document, hasFolders bool) string {
	task := newTask(courseURL, moduleCode, moduleName, cookies, hasFolders)
	o.tasks.add(task)

	log.Printf("🕷️ Starting scraping task %s for module %s (%s)", task.ID(), moduleCode, moduleName)

	if len(documents) > 0 {
		log.Printf("📂 Using %d pre-extracted documents from client", len(documents))
		names := make([]string, 0, len(documents))
		for _, doc := range documents {
			names = append(names, doc.Name)
		}
		task.setFound(names, len(documents)+1)
	}

	go o.run(context.WithoutCancel(ctx), task, documents)

	return task.ID()
}

// Get returns the status snapshot for one task.
func (o *Orchestrator) Get(taskID string) (Snapshot, error) {
	task, ok := o.tasks.get(taskID)
	if !ok {
		return Snapshot{}, ErrTaskNotFound
	}
	return task.Snapshot(), nil
}

// List returns snapshots of every known task.
func (o *Orchestrator) List() []Snapshot {
	tasks := o.tasks.list()
	snapshots := make([]Snapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshots = append(snapshots, task.Snapshot())
	}
	return snapshots
}

func (o *Orchestrator) run(ctx context.Context, task *Task, documents []Document) {
	task.setStatus(StatusScraping)

	if _, err := o.files.EnsureLayout(task.moduleCode); err != nil {
		log.Printf("❌ Error creating module layout for %s: %v", task.moduleCode, err)
		task.fail(err.Error())
		return
	}

	body, err := o.fetch(ctx, task.url, task.cookieMap())
	if err != nil {
		log.Printf("❌ Error fetching course page: %v", err)
		task.fail(fmt.Sprintf("Failed to fetch course page: %v", err))
		return
	}

	doc, err := parseHTML(string(body))
	if err != nil {
		task.fail(fmt.Sprintf("Failed to fetch course page: %v", err))
		return
	}

	if pageContent := extractPageText(doc); pageContent != "" {
		contentFilename := task.moduleCode + "_page_content.txt"
		if err := o.savePageContent(ctx, task, contentFilename, pageContent); err != nil {
			task.fail(fmt.Sprintf("Failed to fetch course page: %v", err))
			return
		}
		task.markDownloaded(contentFilename)
	}

	var links []FileLink
	if len(documents) > 0 {
		for _, d := range documents {
			links = append(links, FileLink{Filename: d.Name, URL: d.URL})
		}
		log.Printf("📂 Using %d pre-extracted documents", len(links))
	} else {
		links = extractFileLinks(doc, task.url)
		log.Printf("✅ Extracted %d document links from page", len(links))
	}

	names := make([]string, 0, len(links))
	for _, link := range links {
		names = append(names, link.Filename)
	}
	task.setFound(names, len(links)+1)
	task.setProgress(10)

	for i, link := range links {
		log.Printf("📥 Processing file %d/%d: %s", i+1, len(links), link.Filename)
		if err := o.downloadAndProcess(ctx, link.URL, link.Filename, task.moduleCode, task.cookieMap()); err != nil {
			log.Printf("❌ Failed to process %s: %v", link.Filename, err)
			task.addError("Failed to process " + link.Filename)
		} else {
			task.markDownloaded(link.Filename)
		}
		task.setProgress(10 + 85*(i+1)/len(links))
	}

	if !task.hasFolders {
		task.finish(StatusCompleted, 100)
		log.Printf("✅ Scraping task %s completed successfully", task.ID())
	} else {
		task.finish(StatusAwaitingFolders, 90)
		log.Printf("⏳ Scraping task %s waiting for folder processing", task.ID())
	}
}

// AddFolderDocuments downloads and indexes documents the client found while
// traversing a folder of an in-flight task.
func (o *Orchestrator) AddFolderDocuments(ctx context.Context, taskID, moduleCode, folderURL string,
	documents []Document) (int, error) {
	task, ok := o.tasks.get(taskID)
	if !ok {
		log.Printf("❌ Task %s not found for adding folder documents", taskID)
		return 0, ErrTaskNotFound
	}

	task.setStatus(StatusProcessingFolders)
	log.Printf("📂 Processing folder %s with %d documents for task %s", folderURL, len(documents), taskID)

	names := make([]string, 0, len(documents))
	for _, doc := range documents {
		names = append(names, doc.Name)
	}
	task.addFound(names...)

	cookies := task.cookieMap()
	for _, doc := range documents {
		if err := o.downloadAndProcess(ctx, doc.URL, doc.Name, moduleCode, cookies); err != nil {
			log.Printf("❌ Failed to process folder file %s: %v", doc.Name, err)
			task.addError("Failed to process folder file " + doc.Name)
		} else {
			task.markDownloaded(doc.Name)
		}
	}

	task.updateFolderProgress()
	return len(documents), nil
}

// CompleteFolderTraversal marks a task's folder phase done and the task
// completed, regardless of accumulated per-file errors.
func (o *Orchestrator) CompleteFolderTraversal(taskID string) (Snapshot, error) {
	task, ok := o.tasks.get(taskID)
	if !ok {
		log.Printf("❌ Task %s not found for completing folder traversal", taskID)
		return Snapshot{}, ErrTaskNotFound
	}

	task.finish(StatusCompleted, 100)
	log.Printf("✅ Folder traversal completed for task %s", taskID)
	return task.Snapshot(), nil
}

func (o *Orchestrator) savePageContent(ctx context.Context, task *Task, filename, content string) error {
	if _, _, err := o.files.SaveFile(task.moduleCode, filename, []byte(content), ingest.SourceScraped); err != nil {
		return err
	}
	documentID, err := o.ingestor.IngestText(ctx, content, filename, task.moduleCode, task.moduleName, ingest.SourceMoodlePage)
	if err != nil {
		return err
	}
	log.Printf("✅ Processed page content with document ID: %s", documentID)
	return nil
}

// downloadAndProcess fetches one document, stores it on disk and pushes it
// through the ingestion pipeline. When a document URL answers with an HTML
// interstitial instead of the file, the page is searched for the direct
// pluginfile link and the download retried once; whatever content ends up in
// hand is saved and processed.
func (o *Orchestrator) downloadAndProcess(ctx context.Context, fileURL, filename, moduleCode string,
	cookies map[string]string) error {
	log.Printf("📥 Downloading %s from %s", filename, fileURL)

	content, contentType, err := o.download(ctx, fileURL, cookies)
	if err != nil {
		return err
	}

	if strings.Contains(contentType, "text/html") && hasDocumentExtension(filename) {
		log.Printf("⚠️ URL %s returned HTML instead of a document", fileURL)
		if resourceViewRe.MatchString(fileURL) {
			if direct := findDirectResourceLink(string(content), fileURL); direct != "" {
				log.Printf("✅ Found direct resource link: %s", direct)
				if directContent, _, err := o.download(ctx, direct, cookies); err == nil {
					content = directContent
				} else {
					log.Printf("⚠️ Direct link download failed for %s: %v", direct, err)
				}
			} else {
				log.Printf("⚠️ Could not find direct download link in %s", fileURL)
			}
		}
	}

	path, storedName, err := o.files.SaveFile(moduleCode, filename, content, ingest.SourceScraped)
	if err != nil {
		return err
	}
	log.Printf("📂 Saved file to %s", path)

	documentID, err := o.ingestor.IngestFrom(ctx, extractor.NewBytesSource(storedName, content), storedName, moduleCode, ingest.SourceScraped)
	if err != nil {
		return err
	}
	log.Printf("✅ Successfully processed file with document ID: %s", documentID)
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL string, cookies map[string]string) ([]byte, error) {
	body, _, err := o.download(ctx, rawURL, cookies)
	return body, err
}

func (o *Orchestrator) download(ctx context.Context, rawURL string, cookies map[string]string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch %s: %d %s", rawURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func hasDocumentExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".pdf", ".docx", ".doc", ".pptx", ".ppt"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// findDirectResourceLink pulls the first pluginfile or forced-download href
// out of a resource interstitial page.
func findDirectResourceLink(pageHTML, pageURL string) string {
	doc, err := parseHTML(pageHTML)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var direct string
	walk(doc, func(n *html.Node) {
		if direct != "" || !isElement(n, "a") {
			return
		}
		href := attr(n, "href")
		if href == "" {
			return
		}
		if strings.Contains(href, "pluginfile.php") || strings.Contains(href, "forcedownload=1") {
			direct = resolveURL(base, href)
		}
	})
	return direct
}
