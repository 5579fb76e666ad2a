package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/metrics"
)

// Uploader publishes report files to a repository. Implemented by the
// GitHub contents client.
type Uploader interface {
	UploadFile(ctx context.Context, path, commitMessage string, content []byte) (string, error)
}

// ReportConfig holds the tunables for reporting and retention.
type ReportConfig struct {
	// Retention is how long verification and plan rows stay in the primary
	// store before being archived to object storage.
	Retention time.Duration
	// ReportDir is the repository directory report files are written under.
	ReportDir string
	// ReportEntries caps how many rows a report section includes.
	ReportEntries int
}

// ReportService produces the DAO's daily activity report and moves aged
// rows to cold storage.
type ReportService struct {
	verifications domain.VerificationStore
	plans         domain.PlanStore
	archiver      domain.Archiver
	uploader      Uploader
	audit         domain.AuditStore
	cfg           ReportConfig
	logger        *slog.Logger
}

// NewReportService creates a ReportService. uploader may be nil, in which
// case PublishDailyReport returns the rendered report without uploading.
func NewReportService(
	verifications domain.VerificationStore,
	plans domain.PlanStore,
	archiver domain.Archiver,
	uploader Uploader,
	audit domain.AuditStore,
	cfg ReportConfig,
	logger *slog.Logger,
) *ReportService {
	if cfg.ReportEntries <= 0 {
		cfg.ReportEntries = 50
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "reports"
	}
	return &ReportService{
		verifications: verifications,
		plans:         plans,
		archiver:      archiver,
		uploader:      uploader,
		audit:         audit,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "report_service")),
	}
}

// Archive moves rows older than the retention window to object storage. It
// returns the verification and plan row counts archived.
func (s *ReportService) Archive(ctx context.Context) (int64, int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)

	verifications, err := s.archiver.ArchiveVerifications(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("report_service: archive verifications: %w", err)
	}
	metrics.ArchivedRows.WithLabelValues("verifications").Add(float64(verifications))

	plans, err := s.archiver.ArchivePlans(ctx, cutoff)
	if err != nil {
		return verifications, 0, fmt.Errorf("report_service: archive plans: %w", err)
	}
	metrics.ArchivedRows.WithLabelValues("purchase_plans").Add(float64(plans))

	s.logger.InfoContext(ctx, "archive complete",
		slog.Int64("verifications", verifications),
		slog.Int64("plans", plans),
		slog.Time("cutoff", cutoff),
	)

	return verifications, plans, nil
}

// PublishDailyReport renders the day's activity as markdown and uploads it
// to the report repository. It returns the rendered report.
func (s *ReportService) PublishDailyReport(ctx context.Context, day time.Time) (string, error) {
	verifications, err := s.verifications.ListRecent(ctx, s.cfg.ReportEntries)
	if err != nil {
		return "", fmt.Errorf("report_service: list verifications: %w", err)
	}
	plans, err := s.plans.ListRecent(ctx, s.cfg.ReportEntries)
	if err != nil {
		return "", fmt.Errorf("report_service: list plans: %w", err)
	}

	report := renderReport(day, verifications, plans)

	if s.uploader != nil {
		path := fmt.Sprintf("%s/%s.md", s.cfg.ReportDir, day.Format("2006-01-02"))
		message := "Daily activity report for " + day.Format("2006-01-02")
		sha, err := s.uploader.UploadFile(ctx, path, message, []byte(report))
		if err != nil {
			return report, fmt.Errorf("report_service: upload report: %w", err)
		}

		if err := s.audit.Log(ctx, "report.published", map[string]any{
			"path": path,
			"sha":  sha,
			"day":  day.Format("2006-01-02"),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}

		s.logger.InfoContext(ctx, "report published",
			slog.String("path", path),
			slog.String("sha", sha),
		)
	}

	return report, nil
}

func renderReport(day time.Time, verifications []domain.VerificationRecord, plans []domain.PlanRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Token operations report, %s\n\n", day.Format("2006-01-02"))

	valid := 0
	for _, v := range verifications {
		if v.Valid {
			valid++
		}
	}
	fmt.Fprintf(&b, "## Verifications\n\n%d processed, %d valid.\n\n", len(verifications), valid)
	if len(verifications) > 0 {
		b.WriteString("| Time (UTC) | Type | Valid | Fingerprint |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, v := range verifications {
			fmt.Fprintf(&b, "| %s | %s | %t | %s |\n",
				v.CreatedAt.UTC().Format("2006-01-02 15:04"),
				v.TransactionType, v.Valid, shortFingerprint(v.KeyFingerprint))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Purchase plans\n\n%d recorded.\n\n", len(plans))
	if len(plans) > 0 {
		b.WriteString("| Time (UTC) | Pair | Budget USD | Quantity | Cost | Executed |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, p := range plans {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %t |\n",
				p.CreatedAt.UTC().Format("2006-01-02 15:04"),
				p.Pair, p.BudgetUSD.String(),
				p.Plan.TotalQuantity.String(), p.Plan.TotalCost.String(), p.Executed)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// shortFingerprint keeps the first four fingerprint bytes for readability.
func shortFingerprint(fp string) string {
	parts := strings.SplitN(fp, ":", 5)
	if len(parts) < 5 {
		return fp
	}
	return strings.Join(parts[:4], ":") + ":..."
}
