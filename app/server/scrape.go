package server

import (
	"errors"
	"net/http"

	"bloom/app/modules"
	"bloom/app/scraper"
)

type startScrapingRequest struct {
	URL        string             `json:"url"`
	ModuleCode string             `json:"module_code"`
	ModuleName string             `json:"module_name"`
	Cookies    map[string]string  `json:"cookies"`
	Documents  []scraper.Document `json:"documents"`
	HasFolders bool               `json:"has_folders"`
}

type folderDocumentsRequest struct {
	TaskID     string             `json:"task_id"`
	ModuleCode string             `json:"module_code"`
	FolderURL  string             `json:"folder_url"`
	Documents  []scraper.Document `json:"documents"`
}

type completeFoldersRequest struct {
	TaskID string `json:"task_id"`
}

type deleteFileRequest struct {
	Filename   string `json:"filename"`
	SourceType string `json:"source_type"`
}

func (s *Server) handleScrapeStart(w http.ResponseWriter, r *http.Request) {
	var req startScrapingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" || req.ModuleCode == "" {
		writeError(w, http.StatusBadRequest, "url and module_code are required")
		return
	}

	taskID := s.scraper.Start(r.Context(), req.URL, req.ModuleCode, req.ModuleName,
		req.Cookies, req.Documents, req.HasFolders)
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "started"})
}

func (s *Server) handleAddFolderDocuments(w http.ResponseWriter, r *http.Request) {
	var req folderDocumentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	processed, err := s.scraper.AddFolderDocuments(r.Context(), req.TaskID, req.ModuleCode, req.FolderURL, req.Documents)
	if err != nil {
		if errors.Is(err, scraper.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "files_processed": processed})
}

func (s *Server) handleCompleteFolders(w http.ResponseWriter, r *http.Request) {
	var req completeFoldersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.scraper.CompleteFolderTraversal(req.TaskID)
	if err != nil {
		if errors.Is(err, scraper.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"files_found":      snap.FilesFound,
		"files_downloaded": snap.FilesDownloaded,
	})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.scraper.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleScrapeTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.scraper.List()})
}

func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	manifests, err := s.files.ListModules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": manifests})
}

func (s *Server) handleModulesTree(w http.ResponseWriter, _ *http.Request) {
	tree, err := s.files.Tree()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(tree))
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.files.GetModule(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, modules.ErrModuleNotFound) {
			writeError(w, http.StatusNotFound, "Module not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleDeleteModule(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if err := s.files.DeleteModule(code); err != nil {
		if errors.Is(err, modules.ErrModuleNotFound) {
			writeError(w, http.StatusNotFound, "Module not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "module_code": code})
}

func (s *Server) handleDeleteModuleFile(w http.ResponseWriter, r *http.Request) {
	var req deleteFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.files.DeleteFile(r.PathValue("code"), req.Filename, req.SourceType); err != nil {
		switch {
		case errors.Is(err, modules.ErrModuleNotFound):
			writeError(w, http.StatusNotFound, "Module not found")
		case errors.Is(err, modules.ErrFileNotFound):
			writeError(w, http.StatusNotFound, "File not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "filename": req.Filename})
}
