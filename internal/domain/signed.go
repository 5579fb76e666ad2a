package domain

import "time"

// SignedMessage is the parsed form of a signed request: the exact text that
// was signed, the submitter's DER public key, and the detached RSA signature.
// Message must reproduce byte-for-byte what the signer saw; the parser trims
// only the section framing, never the body.
type SignedMessage struct {
	Message         string
	PublicKeyBase64 string
	SignatureBase64 string
}

// RequestBody is the structured content of a signed message body: a [TYPE]
// header line followed by "- Key: Value" field lines.
type RequestBody struct {
	TransactionType string
	Fields          map[string]string
}

// VerificationResult is the outcome of checking a signed request. Valid=false
// with a nil error is the normal "checked and invalid" outcome; parse and
// decode failures surface as errors before a result is produced.
type VerificationResult struct {
	Valid            bool
	MessageDigestHex string
	KeyFingerprint   string
	TransactionType  string
	Fields           map[string]string
}

// VerificationRecord is a persisted verification attempt.
type VerificationRecord struct {
	ID              string
	Valid           bool
	DigestHex       string
	KeyFingerprint  string
	TransactionType string
	Fields          map[string]string
	ContributorID   string
	CreatedAt       time.Time
}

// Contributor is a registered DAO member identified by the SHA-256
// fingerprint of their DER public key.
type Contributor struct {
	ID             string
	Name           string
	Email          string
	KeyFingerprint string
	VotingRights   int64
	CreatedAt      time.Time
}
