package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"bloom/app/ingest"
	"bloom/app/modules"
)

const maxUploadSize = 50 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	filename := header.Filename
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, ".docx") {
		writeError(w, http.StatusBadRequest, "Only PDF and DOCX files are supported")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	moduleCode := r.FormValue("module_code")
	storedName := filename
	if moduleCode != "" {
		_, name, err := s.files.SaveFile(moduleCode, filename, content, modules.SourceUserUpload)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		storedName = name
	}

	documentID, err := s.pipeline.Ingest(r.Context(), content, storedName, moduleCode)
	if err != nil {
		log.Printf("❌ Error processing document %s: %v", storedName, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Document processed successfully",
		"document_id": documentID,
		"filename":    storedName,
		"module_code": moduleCode,
	})
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.Registry().Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ingest.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, "Document deletion not yet implemented")
}
