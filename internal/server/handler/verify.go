package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/service"
)

// maxRequestBody caps the signed-request payload size.
const maxRequestBody = 64 * 1024

// VerifyHandler serves signature verification requests.
type VerifyHandler struct {
	svc    *service.VerificationService
	logger *slog.Logger
}

// NewVerifyHandler creates a VerifyHandler.
func NewVerifyHandler(svc *service.VerificationService, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{svc: svc, logger: logger}
}

type verifyRequest struct {
	Request string `json:"request"`
}

type verifyResponse struct {
	Valid           bool              `json:"valid"`
	Digest          string            `json:"digest"`
	Fingerprint     string            `json:"fingerprint"`
	TransactionType string            `json:"transaction_type,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"`
}

// Verify processes a signed request. The body is either a JSON object with a
// "request" field or the raw request text.
// POST /api/verify
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	raw := string(body)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req verifyRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "decode json: "+err.Error())
			return
		}
		raw = req.Request
	}

	res, err := h.svc.Process(r.Context(), raw)
	if err != nil {
		if errors.Is(err, domain.ErrFormat) || errors.Is(err, domain.ErrDecode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "verify failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Valid:           res.Valid,
		Digest:          res.MessageDigestHex,
		Fingerprint:     res.KeyFingerprint,
		TransactionType: res.TransactionType,
		Fields:          res.Fields,
	})
}

// ListRecent returns the latest verification attempts.
// GET /api/verifications/recent
func (h *VerifyHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	recs, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list verifications failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "list verifications failed")
		return
	}

	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = map[string]any{
			"id":               rec.ID,
			"valid":            rec.Valid,
			"digest":           rec.DigestHex,
			"fingerprint":      rec.KeyFingerprint,
			"transaction_type": rec.TransactionType,
			"contributor_id":   rec.ContributorID,
			"created_at":       rec.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"verifications": out})
}
