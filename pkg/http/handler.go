package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/errors"
	"scamdetect-server/pkg/pipeline"
)

// Handler serves the analysis API: chunk ingestion, call summaries, and
// call data deletion.
type Handler struct {
	logger         *logrus.Logger
	orchestrator   *pipeline.Orchestrator
	store          *callcontext.Store
	maxUploadBytes int64
}

// NewHandler creates the API handler
func NewHandler(orchestrator *pipeline.Orchestrator, store *callcontext.Store, maxUploadBytes int64, logger *logrus.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	return &Handler{
		logger:         logger,
		orchestrator:   orchestrator,
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

// AnalyzeHandler accepts one audio chunk as multipart form data with call_id
// and chunk_number fields and runs the full analysis pipeline on it.
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	callID := r.FormValue("call_id")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}

	chunkNumber, err := strconv.Atoi(r.FormValue("chunk_number"))
	if err != nil || chunkNumber < 0 {
		writeError(w, http.StatusBadRequest, "chunk_number must be a non-negative integer")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio payload")
		return
	}

	result, err := h.orchestrator.Process(r.Context(), callID, chunkNumber, audio)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrEmptyAudio) {
			writeError(w, http.StatusBadRequest, "audio chunk is empty")
			return
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"call_id":      callID,
			"chunk_number": chunkNumber,
		}).Error("Chunk processing failed")
		writeError(w, http.StatusInternalServerError, "chunk processing failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SummaryHandler returns the comprehensive summary of an analyzed call.
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}

	summary, err := h.store.Summarize(callID)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "no analysis data for call "+callID)
			return
		}
		h.logger.WithError(err).WithField("call_id", callID).Error("Failed to summarize call")
		writeError(w, http.StatusInternalServerError, "failed to summarize call")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ClearHandler deletes all retained analysis data for a call. Deleting a
// call that was never analyzed succeeds.
func (h *Handler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}

	if err := h.store.Clear(callID); err != nil {
		h.logger.WithError(err).WithField("call_id", callID).Error("Failed to clear call data")
		writeError(w, http.StatusInternalServerError, "failed to clear call data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "cleared",
		"call_id": callID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
