package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/truesightdao/tokenops/internal/domain"
)

// testKey generates an RSA keypair and returns it with the base64 DER
// (SubjectPublicKeyInfo) encoding of the public key.
func testKey(t *testing.T, bits int) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return priv, base64.StdEncoding.EncodeToString(der)
}

func TestVerifyPKCS1v15Signature(t *testing.T) {
	priv, pubB64 := testKey(t, 2048)

	msg := "[WITHDRAWAL REQUEST]\n- Amount: 25 TDG\n- Wallet: 9xQeWvG8"
	digest := sha256.Sum256([]byte(msg))

	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, stdcrypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	res, err := Verify(msg, pubB64, base64.StdEncoding.EncodeToString(sig))
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid signature")
	}
	if len(res.MessageDigestHex) != 64 {
		t.Fatalf("unexpected digest hex %q", res.MessageDigestHex)
	}
	if !strings.Contains(res.KeyFingerprint, ":") {
		t.Fatalf("fingerprint not colon-separated: %q", res.KeyFingerprint)
	}
}

func TestVerifyRawConvention(t *testing.T) {
	priv, pubB64 := testKey(t, 2048)

	msg := "register my contribution"
	digest := sha256.Sum256([]byte(msg))

	// The DApp signer computes s = digest^d mod n with no padding.
	m := new(big.Int).SetBytes(digest[:])
	s := new(big.Int).Exp(m, priv.D, priv.N)
	sig := s.FillBytes(make([]byte, priv.Size()))

	res, err := Verify(msg, pubB64, base64.StdEncoding.EncodeToString(sig))
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected raw-convention signature to verify")
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	priv, pubB64 := testKey(t, 2048)

	msg := "approve proposal 42"
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, stdcrypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	// Mutated message.
	res, err := Verify(msg+"!", pubB64, sigB64)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid {
		t.Fatalf("mutated message must not verify")
	}

	// Mutated signature.
	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[10] ^= 0x01
	res, err = Verify(msg, pubB64, base64.StdEncoding.EncodeToString(bad))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid {
		t.Fatalf("mutated signature must not verify")
	}

	// Wrong key.
	_, otherPub := testKey(t, 2048)
	res, err = Verify(msg, otherPub, sigB64)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid {
		t.Fatalf("signature must not verify under a different key")
	}
}

func TestVerifyDeterministic(t *testing.T) {
	priv, pubB64 := testKey(t, 1024)

	msg := "same inputs, same answer"
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, stdcrypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	first, err := Verify(msg, pubB64, sigB64)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Verify(msg, pubB64, sigB64)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if again != first {
			t.Fatalf("result changed between calls: %+v vs %+v", again, first)
		}
	}
}

func TestVerifyOversizedSignature(t *testing.T) {
	_, pubB64 := testKey(t, 1024)

	// One byte longer than the 128-byte modulus: a failed check, not an error.
	long := make([]byte, 129)
	for i := range long {
		long[i] = 0xab
	}
	res, err := Verify("hello", pubB64, base64.StdEncoding.EncodeToString(long))
	if err != nil {
		t.Fatalf("oversized signature must not be an error, got %v", err)
	}
	if res.Valid {
		t.Fatalf("oversized signature must not verify")
	}
}

func TestVerifyDecodeErrors(t *testing.T) {
	_, pubB64 := testKey(t, 1024)

	cases := []struct {
		name string
		key  string
		sig  string
	}{
		{"bad key base64", "not$$base64", "aGVsbG8="},
		{"bad sig base64", pubB64, "###"},
		{"key not DER", base64.StdEncoding.EncodeToString([]byte("plain text")), "aGVsbG8="},
	}
	for _, tc := range cases {
		_, err := Verify("msg", tc.key, tc.sig)
		if !errors.Is(err, domain.ErrDecode) {
			t.Fatalf("%s: expected ErrDecode, got %v", tc.name, err)
		}
	}
}

func TestParseBarePKCS1Key(t *testing.T) {
	priv, _ := testKey(t, 1024)
	der := x509.MarshalPKCS1PublicKey(&priv.PublicKey)

	pub, err := ParseRSAPublicKey(der)
	if err != nil {
		t.Fatalf("parse bare key: %v", err)
	}
	if pub.N.Cmp(priv.N) != 0 {
		t.Fatalf("modulus mismatch")
	}
	if pub.E.Int64() != int64(priv.E) {
		t.Fatalf("exponent mismatch: got %v want %d", pub.E, priv.E)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, der := range [][]byte{nil, {0x30}, {0x02, 0x01, 0x05}, {0x30, 0x03, 0x04, 0x01, 0x00}} {
		if _, err := ParseRSAPublicKey(der); !errors.Is(err, domain.ErrDecode) {
			t.Fatalf("expected ErrDecode for %x, got %v", der, err)
		}
	}
}
