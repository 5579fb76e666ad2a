package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/truesightdao/tokenops/internal/domain"
)

// ContributorHandler manages the contributor registry.
type ContributorHandler struct {
	contributors domain.ContributorStore
	logger       *slog.Logger
}

// NewContributorHandler creates a ContributorHandler.
func NewContributorHandler(contributors domain.ContributorStore, logger *slog.Logger) *ContributorHandler {
	return &ContributorHandler{contributors: contributors, logger: logger}
}

type contributorRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	KeyFingerprint string `json:"key_fingerprint"`
	VotingRights   int64  `json:"voting_rights"`
}

// List returns registered contributors.
// GET /api/contributors
func (h *ContributorHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	contributors, err := h.contributors.List(r.Context(), domain.ListOpts{Limit: limit})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list contributors failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list contributors failed")
		return
	}

	out := make([]map[string]any, len(contributors))
	for i, c := range contributors {
		out[i] = map[string]any{
			"id":              c.ID,
			"name":            c.Name,
			"email":           c.Email,
			"key_fingerprint": c.KeyFingerprint,
			"voting_rights":   c.VotingRights,
			"created_at":      c.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contributors": out})
}

// Upsert registers or updates a contributor keyed by fingerprint.
// POST /api/contributors
func (h *ContributorHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req contributorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode json: "+err.Error())
		return
	}
	if req.Name == "" || req.KeyFingerprint == "" {
		writeError(w, http.StatusBadRequest, "name and key_fingerprint are required")
		return
	}

	c := domain.Contributor{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Email:          req.Email,
		KeyFingerprint: req.KeyFingerprint,
		VotingRights:   req.VotingRights,
	}
	if err := h.contributors.Upsert(r.Context(), c); err != nil {
		h.logger.ErrorContext(r.Context(), "upsert contributor failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "upsert contributor failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"key_fingerprint": c.KeyFingerprint})
}
