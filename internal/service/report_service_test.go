package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
)

type stubArchiver struct {
	verifications int64
	plans         int64
	cutoffs       []time.Time
}

func (s *stubArchiver) ArchiveVerifications(_ context.Context, before time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, before)
	return s.verifications, nil
}

func (s *stubArchiver) ArchivePlans(_ context.Context, before time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, before)
	return s.plans, nil
}

type stubUploader struct {
	paths    []string
	messages []string
	contents [][]byte
}

func (s *stubUploader) UploadFile(_ context.Context, path, commitMessage string, content []byte) (string, error) {
	s.paths = append(s.paths, path)
	s.messages = append(s.messages, commitMessage)
	s.contents = append(s.contents, content)
	return "sha-1", nil
}

func TestArchiveUsesRetentionCutoff(t *testing.T) {
	arch := &stubArchiver{verifications: 3, plans: 2}
	svc := NewReportService(&memVerificationStore{}, &memPlanStore{}, arch, nil, &memAuditStore{},
		ReportConfig{Retention: 30 * 24 * time.Hour}, discardLogger())

	v, p, err := svc.Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if v != 3 || p != 2 {
		t.Errorf("archived = (%d, %d), want (3, 2)", v, p)
	}

	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	for _, cutoff := range arch.cutoffs {
		if cutoff.Sub(want) > time.Minute || want.Sub(cutoff) > time.Minute {
			t.Errorf("cutoff = %v, want about %v", cutoff, want)
		}
	}
}

func TestPublishDailyReport(t *testing.T) {
	vs := &memVerificationStore{}
	_ = vs.Insert(context.Background(), domain.VerificationRecord{
		ID:              "v1",
		Valid:           true,
		TransactionType: "WITHDRAWAL",
		KeyFingerprint:  "aa:bb:cc:dd:ee:ff",
		CreatedAt:       time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	ps := &memPlanStore{}
	_ = ps.Insert(context.Background(), domain.PlanRecord{
		ID:        "p1",
		Pair:      "TSD/USDT",
		BudgetUSD: dec("5"),
		Executed:  true,
		CreatedAt: time.Date(2025, 8, 1, 13, 0, 0, 0, time.UTC),
	})

	up := &stubUploader{}
	audit := &memAuditStore{}
	svc := NewReportService(vs, ps, &stubArchiver{}, up, audit, ReportConfig{}, discardLogger())

	day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.PublishDailyReport(context.Background(), day)
	if err != nil {
		t.Fatalf("PublishDailyReport: %v", err)
	}

	if !strings.Contains(report, "2025-08-01") {
		t.Error("report missing the day")
	}
	if !strings.Contains(report, "WITHDRAWAL") {
		t.Error("report missing verification row")
	}
	if !strings.Contains(report, "TSD/USDT") {
		t.Error("report missing plan row")
	}
	// Long fingerprints are shortened.
	if strings.Contains(report, "aa:bb:cc:dd:ee:ff") {
		t.Error("report contains full fingerprint")
	}

	if len(up.paths) != 1 || up.paths[0] != "reports/2025-08-01.md" {
		t.Errorf("upload paths = %v", up.paths)
	}
	if len(audit.events) != 1 || audit.events[0] != "report.published" {
		t.Errorf("audit events = %v", audit.events)
	}
}

func TestPublishDailyReportNoUploader(t *testing.T) {
	svc := NewReportService(&memVerificationStore{}, &memPlanStore{}, &stubArchiver{}, nil,
		&memAuditStore{}, ReportConfig{}, discardLogger())

	report, err := svc.PublishDailyReport(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("PublishDailyReport: %v", err)
	}
	if report == "" {
		t.Fatal("empty report")
	}
}
