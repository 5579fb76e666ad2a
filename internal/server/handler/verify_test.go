package handler

import (
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/service"
)

type fakeVerificationStore struct {
	mu   sync.Mutex
	recs []domain.VerificationRecord
}

func (s *fakeVerificationStore) Insert(_ context.Context, rec domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeVerificationStore) ListRecent(_ context.Context, limit int) ([]domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.recs) {
		limit = len(s.recs)
	}
	out := make([]domain.VerificationRecord, limit)
	copy(out, s.recs[len(s.recs)-limit:])
	return out, nil
}

func (s *fakeVerificationStore) ListBefore(context.Context, time.Time, int) ([]domain.VerificationRecord, error) {
	return nil, nil
}

func (s *fakeVerificationStore) DeleteIDs(context.Context, []string) (int64, error) {
	return 0, nil
}

type fakeContributorStore struct{}

func (fakeContributorStore) Upsert(context.Context, domain.Contributor) error { return nil }

func (fakeContributorStore) GetByFingerprint(context.Context, string) (domain.Contributor, error) {
	return domain.Contributor{}, domain.ErrNotFound
}

func (fakeContributorStore) List(context.Context, domain.ListOpts) ([]domain.Contributor, error) {
	return nil, nil
}

type fakeAuditStore struct{}

func (fakeAuditStore) Log(context.Context, string, map[string]any) error { return nil }

func (fakeAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newTestHandler(store *fakeVerificationStore) *VerifyHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewVerificationService(store, fakeContributorStore{}, fakeAuditStore{}, nil, nil, logger)
	return NewVerifyHandler(svc, logger)
}

// signedRequest builds a signed-request payload with a fresh RSA key.
func signedRequest(t *testing.T, message string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	return fmt.Sprintf("%s\n\nMy Digital Signature: %s\n\nRequest Transaction ID: %s\n",
		message,
		base64.StdEncoding.EncodeToString(der),
		base64.StdEncoding.EncodeToString(sig),
	)
}

func TestVerifyRawBody(t *testing.T) {
	store := &fakeVerificationStore{}
	h := newTestHandler(store)

	raw := signedRequest(t, "[WITHDRAWAL]\n- Amount: 100")
	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader(raw))
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Valid           bool   `json:"valid"`
		Fingerprint     string `json:"fingerprint"`
		TransactionType string `json:"transaction_type"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Error("expected valid=true")
	}
	if resp.Fingerprint == "" {
		t.Error("expected a key fingerprint")
	}
	if resp.TransactionType != "WITHDRAWAL" {
		t.Errorf("transaction_type = %q", resp.TransactionType)
	}
	if len(store.recs) != 1 {
		t.Errorf("stored %d records, want 1", len(store.recs))
	}
}

func TestVerifyJSONBody(t *testing.T) {
	h := newTestHandler(&fakeVerificationStore{})

	raw := signedRequest(t, "hello")
	body, _ := json.Marshal(map[string]string{"request": raw})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestVerifyTamperedSignatureIsNotAnError(t *testing.T) {
	h := newTestHandler(&fakeVerificationStore{})

	raw := signedRequest(t, "original message")
	raw = strings.Replace(raw, "original", "tampered", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader(raw))
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	// A failed check is a normal outcome, not a client error.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid {
		t.Error("expected valid=false for tampered message")
	}
}

func TestVerifyMalformedRequest(t *testing.T) {
	h := newTestHandler(&fakeVerificationStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/verify", strings.NewReader("not a signed request"))
	rr := httptest.NewRecorder()

	h.Verify(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListRecent(t *testing.T) {
	store := &fakeVerificationStore{}
	store.recs = append(store.recs, domain.VerificationRecord{
		ID:              "v-1",
		Valid:           true,
		DigestHex:       "ab",
		KeyFingerprint:  "cd:ef",
		TransactionType: "WITHDRAWAL",
		CreatedAt:       time.Now().UTC(),
	})
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/verifications/recent?limit=10", nil)
	rr := httptest.NewRecorder()

	h.ListRecent(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "v-1") {
		t.Errorf("response missing record: %s", rr.Body.String())
	}
}
