// Package service holds the application services that tie the domain cores
// to storage, messaging and the outside platforms.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/metrics"
	"github.com/truesightdao/tokenops/internal/sigrequest"
)

// VerificationChannel is the signal bus channel verification results are
// published on.
const VerificationChannel = "tokenops.verifications"

// Reporter delivers operator notifications. Implemented by notify.Notifier.
type Reporter interface {
	VerificationProcessed(ctx context.Context, res domain.VerificationResult) error
}

// VerificationService processes signed requests end to end: parse, verify
// the RSA signature, resolve the contributor, persist and fan out.
type VerificationService struct {
	verifications domain.VerificationStore
	contributors  domain.ContributorStore
	audit         domain.AuditStore
	bus           domain.SignalBus
	reporter      Reporter
	logger        *slog.Logger
}

// NewVerificationService creates a VerificationService. bus and reporter may
// be nil when fan-out is not wanted (one-shot CLI mode).
func NewVerificationService(
	verifications domain.VerificationStore,
	contributors domain.ContributorStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	reporter Reporter,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		verifications: verifications,
		contributors:  contributors,
		audit:         audit,
		bus:           bus,
		reporter:      reporter,
		logger:        logger.With(slog.String("component", "verification_service")),
	}
}

// Process parses and verifies a raw signed request. A well-formed request
// with a bad signature yields Valid=false and a nil error; malformed input
// returns an error wrapping domain.ErrFormat or domain.ErrDecode.
func (s *VerificationService) Process(ctx context.Context, rawText string) (domain.VerificationResult, error) {
	msg, err := sigrequest.Parse(rawText)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("malformed").Inc()
		return domain.VerificationResult{}, fmt.Errorf("verification_service: parse request: %w", err)
	}

	verified, err := crypto.Verify(msg.Message, msg.PublicKeyBase64, msg.SignatureBase64)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("malformed").Inc()
		return domain.VerificationResult{}, fmt.Errorf("verification_service: verify signature: %w", err)
	}

	body := sigrequest.ParseBody(msg.Message)

	result := domain.VerificationResult{
		Valid:            verified.Valid,
		MessageDigestHex: verified.MessageDigestHex,
		KeyFingerprint:   verified.KeyFingerprint,
		TransactionType:  body.TransactionType,
		Fields:           body.Fields,
	}

	outcome := "invalid"
	if result.Valid {
		outcome = "valid"
	}
	metrics.VerificationsTotal.WithLabelValues(outcome).Inc()

	rec := domain.VerificationRecord{
		ID:              uuid.New().String(),
		Valid:           result.Valid,
		DigestHex:       result.MessageDigestHex,
		KeyFingerprint:  result.KeyFingerprint,
		TransactionType: result.TransactionType,
		Fields:          result.Fields,
		CreatedAt:       time.Now().UTC(),
	}

	// A known contributor links the record; an unknown key is still stored.
	contributor, err := s.contributors.GetByFingerprint(ctx, result.KeyFingerprint)
	switch {
	case err == nil:
		rec.ContributorID = contributor.ID
	case errors.Is(err, domain.ErrNotFound):
		s.logger.InfoContext(ctx, "verification from unregistered key",
			slog.String("fingerprint", result.KeyFingerprint),
		)
	default:
		s.logger.WarnContext(ctx, "contributor lookup failed",
			slog.String("fingerprint", result.KeyFingerprint),
			slog.String("error", err.Error()),
		)
	}

	if err := s.verifications.Insert(ctx, rec); err != nil {
		return result, fmt.Errorf("verification_service: store record: %w", err)
	}

	if err := s.audit.Log(ctx, "verification.processed", map[string]any{
		"id":               rec.ID,
		"valid":            rec.Valid,
		"fingerprint":      rec.KeyFingerprint,
		"transaction_type": rec.TransactionType,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	s.publish(ctx, rec)

	if s.reporter != nil {
		if err := s.reporter.VerificationProcessed(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "verification processed",
		slog.String("id", rec.ID),
		slog.Bool("valid", rec.Valid),
		slog.String("transaction_type", rec.TransactionType),
	)

	return result, nil
}

// ListRecent returns the latest verification attempts.
func (s *VerificationService) ListRecent(ctx context.Context, limit int) ([]domain.VerificationRecord, error) {
	recs, err := s.verifications.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("verification_service: list recent: %w", err)
	}
	return recs, nil
}

func (s *VerificationService) publish(ctx context.Context, rec domain.VerificationRecord) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":            "verification",
		"id":               rec.ID,
		"valid":            rec.Valid,
		"fingerprint":      rec.KeyFingerprint,
		"transaction_type": rec.TransactionType,
		"created_at":       rec.CreatedAt.Format(time.RFC3339),
	})
	if err := s.bus.Publish(ctx, VerificationChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed", slog.String("error", err.Error()))
	}
}
