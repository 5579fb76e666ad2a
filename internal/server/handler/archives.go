package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
)

// archiveRoot confines the endpoints to cold-storage objects; nothing
// outside this prefix is listed or served.
const archiveRoot = "archive/"

// ArchiveHandler serves the cold-storage archive: listing archived batches
// and streaming individual archive files back out of object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

// List returns metadata for archived objects, optionally narrowed by the
// "prefix" query parameter (relative to the archive root).
// GET /api/archives
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := archiveRoot + strings.TrimPrefix(r.URL.Query().Get("prefix"), "/")

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list archives failed")
		return
	}

	out := make([]map[string]any, len(infos))
	for i, info := range infos {
		out[i] = map[string]any{
			"path":          info.Path,
			"size":          info.Size,
			"last_modified": info.LastModified.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

// Get streams one archived object.
// GET /api/archives/{path...}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	if rel == "" || strings.Contains(rel, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	body, err := h.reader.Get(r.Context(), archiveRoot+rel)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get archive failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "get archive failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.ErrorContext(r.Context(), "stream archive failed", slog.String("error", err.Error()))
	}
}
