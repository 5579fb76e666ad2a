package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
)

type fakeBlobReader struct {
	objects      map[string]string
	listedPrefix string
}

func (f *fakeBlobReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	body, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeBlobReader) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.listedPrefix = prefix
	var infos []domain.BlobInfo
	for path, body := range f.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{
				Path:         path,
				Size:         int64(len(body)),
				LastModified: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			})
		}
	}
	return infos, nil
}

func (f *fakeBlobReader) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func newArchiveHandler(reader domain.BlobReader) *ArchiveHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiveHandler(reader, logger)
}

func TestArchiveList(t *testing.T) {
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/verifications/2025-06/20250601T000000Z-0001.jsonl": `{"id":"a"}` + "\n",
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archives?prefix=verifications/", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if reader.listedPrefix != "archive/verifications/" {
		t.Errorf("listed prefix = %q, want it confined under archive/", reader.listedPrefix)
	}

	var resp struct {
		Archives []struct {
			Path string `json:"path"`
			Size int64  `json:"size"`
		} `json:"archives"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Archives) != 1 || resp.Archives[0].Size != 11 {
		t.Fatalf("archives = %+v", resp.Archives)
	}
}

func TestArchiveGet(t *testing.T) {
	const body = `{"id":"a"}` + "\n"
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/plans/2025-06/20250601T000000Z-0001.jsonl": body,
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archives/plans/2025-06/20250601T000000Z-0001.jsonl", nil)
	req.SetPathValue("path", "plans/2025-06/20250601T000000Z-0001.jsonl")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want %q", rec.Body.String(), body)
	}
}

func TestArchiveGetNotFound(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/archives/plans/missing.jsonl", nil)
	req.SetPathValue("path", "plans/missing.jsonl")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestArchiveGetRejectsTraversal(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{objects: map[string]string{
		"secrets.txt": "nope",
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/archives/x", nil)
	req.SetPathValue("path", "../secrets.txt")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
