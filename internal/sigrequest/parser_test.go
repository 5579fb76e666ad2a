package sigrequest

import (
	"errors"
	"testing"

	"github.com/truesightdao/tokenops/internal/domain"
)

const (
	testKeyB64 = "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA54jN"
	testSigB64 = "Ne4/MH+5cQu/j0DKE3vUUp4Jq5BVk6wqHmLhhLN5qvE="
)

func TestParseBlankLineVariant(t *testing.T) {
	text := "[QR CODE BATCH REQUEST]\n- Product: Cacao 2024\n- Quantity: 10\n\n" +
		"My Digital Signature: " + testKeyB64 + "\n\n" +
		"Request Transaction ID: " + testSigB64 + "\n"

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Message != "[QR CODE BATCH REQUEST]\n- Product: Cacao 2024\n- Quantity: 10" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.PublicKeyBase64 != testKeyB64 {
		t.Fatalf("unexpected key %q", got.PublicKeyBase64)
	}
	if got.SignatureBase64 != testSigB64 {
		t.Fatalf("unexpected signature %q", got.SignatureBase64)
	}
}

func TestParseLegacyVariantIdentical(t *testing.T) {
	blank := "[QR CODE BATCH REQUEST]\n- Product: Cacao 2024\n\n" +
		"My Digital Signature: " + testKeyB64 + "\n\n" +
		"Request Transaction ID: " + testSigB64
	legacy := "[QR CODE BATCH REQUEST]\n- Product: Cacao 2024\n--------\n" +
		"My Digital Signature: " + testKeyB64 + "\n" +
		"Request Transaction ID: " + testSigB64

	a, err := Parse(blank)
	if err != nil {
		t.Fatalf("parse blank variant: %v", err)
	}
	b, err := Parse(legacy)
	if err != nil {
		t.Fatalf("parse legacy variant: %v", err)
	}
	if a != b {
		t.Fatalf("variants parsed differently:\n%+v\n%+v", a, b)
	}
}

func TestParseCRLF(t *testing.T) {
	text := "hello world\r\n\r\nMy Digital Signature: " + testKeyB64 +
		"\r\n\r\nRequest Transaction ID: " + testSigB64 + "\r\n"
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Message != "hello world" {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestParseFormatErrors(t *testing.T) {
	cases := []string{
		"",
		"   \n\n  ",
		"just a message with no signature block",
		"message\n\nRequest Transaction ID: " + testSigB64, // missing signature label
		"message\n\nMy Digital Signature: " + testKeyB64,   // missing tx id label
		// Labels in the wrong order.
		"message\n\nRequest Transaction ID: " + testSigB64 + "\n\nMy Digital Signature: " + testKeyB64,
		// Legacy sentinel but no labels after it.
		"message\n--------\nnothing here",
		// Labels present but empty values.
		"message\n\nMy Digital Signature:\n\nRequest Transaction ID:",
	}
	for i, text := range cases {
		if _, err := Parse(text); !errors.Is(err, domain.ErrFormat) {
			t.Fatalf("case %d: expected ErrFormat, got %v", i, err)
		}
	}
}

func TestParseBody(t *testing.T) {
	body := ParseBody("[WITHDRAWAL REQUEST]\n- Amount: 25 TDG\n- Wallet: 9xQeWvG8\nfree text line")
	if body.TransactionType != "WITHDRAWAL REQUEST" {
		t.Fatalf("unexpected type %q", body.TransactionType)
	}
	if body.Fields["Amount"] != "25 TDG" || body.Fields["Wallet"] != "9xQeWvG8" {
		t.Fatalf("unexpected fields %v", body.Fields)
	}
}

func TestParseBodyPlainText(t *testing.T) {
	body := ParseBody("no markup here, just prose")
	if body.TransactionType != "" || len(body.Fields) != 0 {
		t.Fatalf("plain body should yield empty result, got %+v", body)
	}
}

// Values with an embedded colon (URLs, timestamps) keep everything after the
// first separator.
func TestParseBodyColonValue(t *testing.T) {
	body := ParseBody("[LEDGER UPDATE]\n- Link: https://example.org/x?y=1")
	if body.Fields["Link"] != "https://example.org/x?y=1" {
		t.Fatalf("unexpected value %q", body.Fields["Link"])
	}
}
