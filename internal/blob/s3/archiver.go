package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
)

// archiveBatchSize caps how many rows a single archive file holds.
const archiveBatchSize = 10000

// ArchiveImpl implements domain.Archiver: old verification and plan rows are
// serialized to JSONL, uploaded to object storage partitioned by year-month,
// and then deleted from the primary store. The audit log records each upload
// before deletion so a failed delete leaves a traceable duplicate rather
// than a silent gap.
type ArchiveImpl struct {
	writer        domain.BlobWriter
	verifications domain.VerificationStore
	plans         domain.PlanStore
	audit         domain.AuditStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	verifications domain.VerificationStore,
	plans domain.PlanStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:        writer,
		verifications: verifications,
		plans:         plans,
		audit:         audit,
	}
}

// ArchiveVerifications uploads verifications older than the cutoff to
// archive/verifications/ in batches and deletes each batch from the store
// once its upload is confirmed. It returns the number of rows archived.
func (a *ArchiveImpl) ArchiveVerifications(ctx context.Context, before time.Time) (int64, error) {
	var archived int64
	for part := 1; ; part++ {
		recs, err := a.verifications.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive verifications query: %w", err)
		}
		if len(recs) == 0 {
			return archived, nil
		}

		buf, err := marshalJSONL(recs)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive verifications marshal: %w", err)
		}

		path := archivePath("verifications", before, part)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return archived, fmt.Errorf("s3blob: archive verifications upload: %w", err)
		}

		if err := a.audit.Log(ctx, "archive.verifications", map[string]any{
			"path":   path,
			"count":  len(recs),
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return archived, fmt.Errorf("s3blob: archive verifications audit log: %w", err)
		}

		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}
		deleted, err := a.verifications.DeleteIDs(ctx, ids)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive verifications delete: %w", err)
		}
		archived += deleted

		if len(recs) < archiveBatchSize {
			return archived, nil
		}
	}
}

// ArchivePlans uploads purchase plans older than the cutoff to
// archive/plans/ in batches and deletes each batch from the store once its
// upload is confirmed. It returns the number of rows archived.
func (a *ArchiveImpl) ArchivePlans(ctx context.Context, before time.Time) (int64, error) {
	var archived int64
	for part := 1; ; part++ {
		recs, err := a.plans.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive plans query: %w", err)
		}
		if len(recs) == 0 {
			return archived, nil
		}

		buf, err := marshalJSONL(recs)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive plans marshal: %w", err)
		}

		path := archivePath("plans", before, part)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return archived, fmt.Errorf("s3blob: archive plans upload: %w", err)
		}

		if err := a.audit.Log(ctx, "archive.plans", map[string]any{
			"path":   path,
			"count":  len(recs),
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return archived, fmt.Errorf("s3blob: archive plans audit log: %w", err)
		}

		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}
		deleted, err := a.plans.DeleteIDs(ctx, ids)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive plans delete: %w", err)
		}
		archived += deleted

		if len(recs) < archiveBatchSize {
			return archived, nil
		}
	}
}

// archivePath builds the object key for one archive batch, partitioned by
// the year-month of the cutoff time. The full cutoff timestamp and part
// number keep runs within the same month from overwriting each other.
func archivePath(kind string, before time.Time, part int) string {
	return fmt.Sprintf("archive/%s/%s/%s-%04d.jsonl",
		kind, before.Format("2006-01"), before.Format("20060102T150405Z"), part)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
