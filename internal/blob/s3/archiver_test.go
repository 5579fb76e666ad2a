package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/truesightdao/tokenops/internal/domain"
)

type fakeWriter struct {
	paths    []string
	payloads [][]byte
	types    []string
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.paths = append(f.paths, path)
	f.payloads = append(f.payloads, buf)
	f.types = append(f.types, contentType)
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

type fakeVerificationStore struct {
	recs       []domain.VerificationRecord
	deletedIDs []string
}

func (f *fakeVerificationStore) Insert(context.Context, domain.VerificationRecord) error { return nil }

func (f *fakeVerificationStore) ListRecent(context.Context, int) ([]domain.VerificationRecord, error) {
	return f.recs, nil
}

func (f *fakeVerificationStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.VerificationRecord, error) {
	var out []domain.VerificationRecord
	for _, r := range f.recs {
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeVerificationStore) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.VerificationRecord
	var n int64
	for _, r := range f.recs {
		if drop[r.ID] {
			f.deletedIDs = append(f.deletedIDs, r.ID)
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return n, nil
}

type fakePlanStore struct {
	recs []domain.PlanRecord
}

func (f *fakePlanStore) Insert(context.Context, domain.PlanRecord) error    { return nil }
func (f *fakePlanStore) MarkExecuted(context.Context, string, string) error { return nil }
func (f *fakePlanStore) ListRecent(context.Context, int) ([]domain.PlanRecord, error) {
	return f.recs, nil
}

func (f *fakePlanStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.PlanRecord, error) {
	var out []domain.PlanRecord
	for _, r := range f.recs {
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakePlanStore) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.PlanRecord
	var n int64
	for _, r := range f.recs {
		if drop[r.ID] {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return n, nil
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func countJSONLLines(t *testing.T, payload []byte) int {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	lines := 0
	for sc.Scan() {
		if !strings.HasPrefix(sc.Text(), "{") {
			t.Errorf("line %d is not a JSON object: %q", lines, sc.Text())
		}
		lines++
	}
	return lines
}

func TestArchiveVerifications(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	vs := &fakeVerificationStore{recs: []domain.VerificationRecord{
		{ID: "a", Valid: true, CreatedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "b", Valid: false, CreatedAt: cutoff.Add(-24 * time.Hour)},
		{ID: "c", Valid: true, CreatedAt: cutoff.Add(24 * time.Hour)},
	}}
	w := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(w, vs, &fakePlanStore{}, audit)

	n, err := arch.ArchiveVerifications(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveVerifications: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}
	if len(w.paths) != 1 || w.paths[0] != "archive/verifications/2025-06/20250601T000000Z-0001.jsonl" {
		t.Errorf("paths = %v", w.paths)
	}
	if w.types[0] != "application/x-ndjson" {
		t.Errorf("content type = %q", w.types[0])
	}

	// Two JSONL lines, one per archived record.
	if lines := countJSONLLines(t, w.payloads[0]); lines != 2 {
		t.Errorf("jsonl lines = %d, want 2", lines)
	}

	if len(audit.events) != 1 || audit.events[0] != "archive.verifications" {
		t.Errorf("audit events = %v", audit.events)
	}
	if len(vs.deletedIDs) != 2 {
		t.Errorf("deleted IDs = %v, want a and b", vs.deletedIDs)
	}
	// The record newer than the cutoff survives.
	if len(vs.recs) != 1 || vs.recs[0].ID != "c" {
		t.Errorf("remaining records = %v, want only c", vs.recs)
	}
}

func TestArchiveVerificationsBeyondBatchSize(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	total := archiveBatchSize + 5
	recs := make([]domain.VerificationRecord, total)
	for i := range recs {
		recs[i] = domain.VerificationRecord{
			ID:        fmt.Sprintf("v%05d", i),
			CreatedAt: cutoff.Add(-time.Duration(total-i) * time.Second),
		}
	}
	vs := &fakeVerificationStore{recs: recs}
	w := &fakeWriter{}
	arch := NewArchiver(w, vs, &fakePlanStore{}, &fakeAudit{})

	n, err := arch.ArchiveVerifications(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveVerifications: %v", err)
	}
	if n != int64(total) {
		t.Errorf("archived = %d, want %d", n, total)
	}

	// Rows past the batch cap go into a second object; every deleted row
	// must appear in an upload.
	if len(w.paths) != 2 {
		t.Fatalf("uploads = %v, want two parts", w.paths)
	}
	if !strings.HasSuffix(w.paths[0], "-0001.jsonl") || !strings.HasSuffix(w.paths[1], "-0002.jsonl") {
		t.Errorf("part suffixes wrong: %v", w.paths)
	}
	uploaded := countJSONLLines(t, w.payloads[0]) + countJSONLLines(t, w.payloads[1])
	if uploaded != total {
		t.Errorf("uploaded %d rows but deleted %d", uploaded, n)
	}
	if len(vs.recs) != 0 {
		t.Errorf("%d eligible records left behind", len(vs.recs))
	}
}

func TestArchiveVerificationsEmpty(t *testing.T) {
	w := &fakeWriter{}
	arch := NewArchiver(w, &fakeVerificationStore{}, &fakePlanStore{}, &fakeAudit{})

	n, err := arch.ArchiveVerifications(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveVerifications: %v", err)
	}
	if n != 0 {
		t.Errorf("archived = %d, want 0", n)
	}
	if len(w.paths) != 0 {
		t.Error("upload happened with no rows to archive")
	}
}

func TestArchivePlans(t *testing.T) {
	cutoff := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	ps := &fakePlanStore{recs: []domain.PlanRecord{
		{
			ID:        "p1",
			Pair:      "TSD/USDT",
			BudgetUSD: decimal.RequireFromString("5"),
			CreatedAt: cutoff.Add(-time.Hour),
		},
	}}
	w := &fakeWriter{}
	arch := NewArchiver(w, &fakeVerificationStore{}, ps, &fakeAudit{})

	n, err := arch.ArchivePlans(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchivePlans: %v", err)
	}
	if n != 1 {
		t.Errorf("archived = %d, want 1", n)
	}
	if w.paths[0] != "archive/plans/2025-07/20250701T000000Z-0001.jsonl" {
		t.Errorf("path = %q", w.paths[0])
	}
	if len(ps.recs) != 0 {
		t.Errorf("plan rows left behind: %v", ps.recs)
	}
}
