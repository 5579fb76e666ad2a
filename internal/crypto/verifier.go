// Package crypto implements the RSA signature check for DAO signed requests
// and the at-rest encryption of exchange credentials.
//
// Verification deliberately avoids the platform's high-level RSA verify call:
// the key is parsed with a minimal DER reader and the signature is checked by
// modular exponentiation, matching the convention used by the DApp signer.
package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/truesightdao/tokenops/internal/domain"
)

// sha256DigestInfo is the DER DigestInfo prefix for SHA-256 used by
// EMSA-PKCS1-v1_5 encoding.
var sha256DigestInfo = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86,
	0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05,
	0x00, 0x04, 0x20,
}

// Result carries the verification outcome plus derived metadata callers use
// for contributor lookup and audit logging.
type Result struct {
	Valid            bool
	MessageDigestHex string
	KeyFingerprint   string
}

// Verify checks that signatureB64 is a valid RSA signature of message under
// the DER public key in publicKeyB64.
//
// Two digest conventions are accepted: the raw convention used by the DApp
// (s^e mod n equals the SHA-256 digest as an unsigned integer) and standard
// EMSA-PKCS1-v1_5 (so keys signed with common RSA tooling verify as well).
//
// A signature that is well-formed but does not verify yields Valid=false and
// a nil error. Undecodable inputs yield an error wrapping domain.ErrDecode.
// The call is pure and deterministic.
func Verify(message, publicKeyB64, signatureB64 string) (Result, error) {
	keyDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyB64))
	if err != nil {
		return Result{}, fmt.Errorf("crypto: decode public key: %v: %w", err, domain.ErrDecode)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureB64))
	if err != nil {
		return Result{}, fmt.Errorf("crypto: decode signature: %v: %w", err, domain.ErrDecode)
	}

	pub, err := ParseRSAPublicKey(keyDER)
	if err != nil {
		return Result{}, err
	}

	digest := sha256.Sum256([]byte(message))

	res := Result{
		MessageDigestHex: hex.EncodeToString(digest[:]),
		KeyFingerprint:   Fingerprint(keyDER),
	}

	// A signature longer than the modulus can never be a valid RSA value;
	// that is a failed check, not a malformed input.
	if len(sig) > pub.Size() {
		return res, nil
	}

	s := new(big.Int).SetBytes(sig)
	if s.Cmp(pub.N) >= 0 {
		return res, nil
	}

	// m = s^e mod n via square-and-multiply (big.Int.Exp).
	m := new(big.Int).Exp(s, pub.E, pub.N)

	digestInt := new(big.Int).SetBytes(digest[:])
	if m.Cmp(digestInt) == 0 {
		res.Valid = true
		return res, nil
	}

	emsaInt := new(big.Int).SetBytes(emsaPKCS1v15(digest[:], pub.Size()))
	res.Valid = m.Cmp(emsaInt) == 0
	return res, nil
}

// Fingerprint returns the SHA-256 hash of the raw DER key bytes rendered as
// colon-separated lowercase hex, e.g. "ab:cd:...".
func Fingerprint(keyDER []byte) string {
	sum := sha256.Sum256(keyDER)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

// emsaPKCS1v15 builds the EMSA-PKCS1-v1_5 encoding of a SHA-256 digest for a
// k-byte modulus: 0x00 0x01 PS 0x00 DigestInfo || digest, PS all 0xff.
// Returns nil when the modulus is too short for the encoding.
func emsaPKCS1v15(digest []byte, k int) []byte {
	tLen := len(sha256DigestInfo) + len(digest)
	if k < tLen+11 {
		return nil
	}
	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-tLen:], sha256DigestInfo)
	copy(em[k-len(digest):], digest)
	return em
}
