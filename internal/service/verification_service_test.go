package service

import (
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/domain"
)

type recordingReporter struct {
	results []domain.VerificationResult
}

func (r *recordingReporter) VerificationProcessed(_ context.Context, res domain.VerificationResult) error {
	r.results = append(r.results, res)
	return nil
}

// signedRequest builds a request in the current wire format, signed with a
// fresh RSA key.
func signedRequest(t *testing.T, message string) (string, string) {
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

	raw := fmt.Sprintf("%s\n\nMy Digital Signature: %s\n\nRequest Transaction ID: %s\n",
		message,
		base64.StdEncoding.EncodeToString(der),
		base64.StdEncoding.EncodeToString(sig),
	)
	return raw, crypto.Fingerprint(der)
}

func newVerificationService(vs *memVerificationStore, cs *memContributorStore, audit *memAuditStore, bus *memBus, rep Reporter) *VerificationService {
	return NewVerificationService(vs, cs, audit, bus, rep, discardLogger())
}

func TestProcessValidRequest(t *testing.T) {
	message := "[WITHDRAWAL]\n- Amount: 100\n- Address: abc123"
	raw, fingerprint := signedRequest(t, message)

	vs := &memVerificationStore{}
	cs := &memContributorStore{}
	_ = cs.Upsert(context.Background(), domain.Contributor{
		ID:             "c-1",
		Name:           "Ada",
		KeyFingerprint: fingerprint,
	})
	audit := &memAuditStore{}
	bus := &memBus{}
	rep := &recordingReporter{}

	svc := newVerificationService(vs, cs, audit, bus, rep)

	res, err := svc.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Valid {
		t.Fatal("Valid = false, want true")
	}
	if res.TransactionType != "WITHDRAWAL" {
		t.Errorf("TransactionType = %q", res.TransactionType)
	}
	if res.Fields["Amount"] != "100" {
		t.Errorf("Fields[Amount] = %q", res.Fields["Amount"])
	}
	if res.KeyFingerprint != fingerprint {
		t.Errorf("KeyFingerprint = %q, want %q", res.KeyFingerprint, fingerprint)
	}

	if len(vs.recs) != 1 {
		t.Fatalf("stored records = %d, want 1", len(vs.recs))
	}
	if vs.recs[0].ContributorID != "c-1" {
		t.Errorf("ContributorID = %q, want c-1", vs.recs[0].ContributorID)
	}
	if len(bus.messages[VerificationChannel]) != 1 {
		t.Errorf("bus messages = %d, want 1", len(bus.messages[VerificationChannel]))
	}
	if len(rep.results) != 1 {
		t.Errorf("reporter calls = %d, want 1", len(rep.results))
	}
	if len(audit.events) != 1 || audit.events[0] != "verification.processed" {
		t.Errorf("audit events = %v", audit.events)
	}
}

func TestProcessTamperedMessage(t *testing.T) {
	raw, _ := signedRequest(t, "[TRANSFER]\n- Amount: 5")
	// Flip a digit inside the signed body.
	tampered := []byte(raw)
	for i := range tampered {
		if tampered[i] == '5' {
			tampered[i] = '6'
			break
		}
	}

	vs := &memVerificationStore{}
	svc := newVerificationService(vs, &memContributorStore{}, &memAuditStore{}, &memBus{}, nil)

	res, err := svc.Process(context.Background(), string(tampered))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Valid {
		t.Fatal("Valid = true for tampered message")
	}
	// Invalid attempts are still recorded.
	if len(vs.recs) != 1 {
		t.Fatalf("stored records = %d, want 1", len(vs.recs))
	}
	if vs.recs[0].Valid {
		t.Error("stored record marked valid")
	}
}

func TestProcessUnknownContributor(t *testing.T) {
	raw, _ := signedRequest(t, "[VOTE]\n- Proposal: 7")

	vs := &memVerificationStore{}
	svc := newVerificationService(vs, &memContributorStore{}, &memAuditStore{}, &memBus{}, nil)

	res, err := svc.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Valid {
		t.Fatal("Valid = false, want true")
	}
	if vs.recs[0].ContributorID != "" {
		t.Errorf("ContributorID = %q, want empty", vs.recs[0].ContributorID)
	}
}

func TestProcessMalformedRequest(t *testing.T) {
	svc := newVerificationService(&memVerificationStore{}, &memContributorStore{}, &memAuditStore{}, &memBus{}, nil)

	_, err := svc.Process(context.Background(), "just some text with no signature block")
	if !errors.Is(err, domain.ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestProcessBadBase64(t *testing.T) {
	svc := newVerificationService(&memVerificationStore{}, &memContributorStore{}, &memAuditStore{}, &memBus{}, nil)

	raw := "hello\n\nMy Digital Signature: !!!not-base64!!!\n\nRequest Transaction ID: AAAA\n"
	_, err := svc.Process(context.Background(), raw)
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}
