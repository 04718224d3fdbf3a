package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/backoff"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

const maxUploadBytes = 64 << 20

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps pipeline errors to HTTP status codes. Transient failures
// (embedding service, vector backend) surface as 503 so clients know to retry.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, chunker.ErrEmptyInput),
		errors.Is(err, retriever.ErrEmptyQuery),
		errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vector.ErrIndexUnavailable), backoff.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type askResponse struct {
	Answer           string                 `json:"answer"`
	Status           models.AnswerStatus    `json:"status"`
	SupportingChunks []*models.Chunk        `json:"supporting_chunks"`
	Retrieval        *models.RetrievalResult `json:"retrieval,omitempty"`
}

// handleAsk answers a question against the indexed documents. Accepts either
// JSON {"question": ...} or multipart form with a "question" field and an
// optional "image" file.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question, image, err := parseQuestion(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, retrieval, err := s.pipeline.Ask(r.Context(), question, image)
	if err != nil {
		if record != nil && record.Status == models.StatusGenerationFailed {
			// The retrieval succeeded; report the failure with the chunks
			// that would have grounded the answer.
			s.logger.Error("Generation failed", zap.Error(err))
			respondJSON(w, http.StatusBadGateway, askResponse{
				Answer:           record.Answer,
				Status:           record.Status,
				SupportingChunks: record.SupportingChunks,
				Retrieval:        retrieval,
			})
			return
		}
		s.logger.Error("Ask failed", zap.Error(err))
		respondError(w, errorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, askResponse{
		Answer:           record.Answer,
		Status:           record.Status,
		SupportingChunks: record.SupportingChunks,
		Retrieval:        retrieval,
	})
}

func parseQuestion(r *http.Request) (string, *models.QuestionImage, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", nil, errors.New("invalid multipart form")
		}
		question := strings.TrimSpace(r.FormValue("question"))
		if question == "" {
			return "", nil, errors.New("question is required")
		}
		file, header, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return question, nil, nil
		}
		if err != nil {
			return "", nil, errors.New("invalid image upload")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, errors.New("reading image upload failed")
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "image/png"
		}
		return question, &models.QuestionImage{MIMEType: mimeType, Data: data}, nil
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, errors.New("invalid JSON body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", nil, errors.New("question is required")
	}
	return question, nil, nil
}

// handleIngestDocument ingests a document supplied as JSON.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), &input)
	if err != nil {
		s.logger.Error("Ingest failed", zap.Error(err))
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleUploadDocument ingests an uploaded file. The filename's extension
// decides the extraction format.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	result, err := s.pipeline.IngestBytes(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		s.logger.Error("Upload ingest failed",
			zap.String("filename", header.Filename),
			zap.Error(err))
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	docs, err := s.pipeline.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("Listing documents failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.pipeline.GetDocument(r.Context(), id)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipeline.Status(r.Context())
	if err != nil {
		s.logger.Error("Status failed", zap.Error(err))
		respondError(w, errorStatus(err), err.Error())
		return
	}

	diskUsage, _ := storage.DiskUsageBytes(
		s.cfg.Storage.DatabasePath,
		s.cfg.Storage.VectorIndexPath,
	)

	resp := map[string]interface{}{
		"documents":       st.Documents,
		"chunks":          st.Chunks,
		"index_entries":   st.IndexEntries,
		"disk_usage":      diskUsage,
		"vector_backend":  s.cfg.Vector.Backend,
		"embedding_model": s.cfg.Embedding.Model,
	}
	if s.watch != nil {
		resp["watched_directories"] = s.watch.Roots()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		respondError(w, http.StatusNotImplemented, "file watching is not enabled")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"directories": s.watch.Roots(),
	})
}

type watchDirectoryRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		respondError(w, http.StatusNotImplemented, "file watching is not enabled")
		return
	}
	var req watchDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.watch.Watch(req.Path, true); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.persistWatchDirectories()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"directories": s.watch.Roots(),
	})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		respondError(w, http.StatusNotImplemented, "file watching is not enabled")
		return
	}
	var req watchDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.watch.Unwatch(req.Path); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.persistWatchDirectories()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"directories": s.watch.Roots(),
	})
}

// persistWatchDirectories writes the current watch list back to the config
// file so it survives restarts. Best effort; failures are logged.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Roots()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("Persisting watch directories failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
