// Package sigrequest parses the signed-request text format submitted by the
// DAO DApp. Two wire variants are accepted: blank-line separated sections and
// the legacy layout with a "--------" sentinel before the signature block.
package sigrequest

import (
	"fmt"
	"strings"

	"github.com/truesightdao/tokenops/internal/domain"
)

const (
	signatureLabel = "My Digital Signature:"
	txIDLabel      = "Request Transaction ID:"
	legacySentinel = "--------"
)

// Parse extracts the message body, public key, and signature from a signed
// request text. It returns an error wrapping domain.ErrFormat when neither
// wire variant matches.
//
// The message body is returned exactly as signed: only the section framing
// (the blank separator lines or the sentinel) is removed, with the same
// trailing-whitespace trim the DApp signer applies.
func Parse(text string) (domain.SignedMessage, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SignedMessage{}, fmt.Errorf("sigrequest: empty request: %w", domain.ErrFormat)
	}

	if strings.Contains(text, legacySentinel) {
		return parseLegacy(text)
	}
	return parseSections(text)
}

// parseSections handles the current format: message, signature line, and
// transaction-id line separated by blank lines.
func parseSections(text string) (domain.SignedMessage, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	sigIdx := strings.Index(normalized, signatureLabel)
	txIdx := strings.Index(normalized, txIDLabel)
	if sigIdx < 0 || txIdx < 0 || txIdx < sigIdx {
		return domain.SignedMessage{}, fmt.Errorf(
			"sigrequest: expected %q followed by %q: %w", signatureLabel, txIDLabel, domain.ErrFormat)
	}

	msg := strings.TrimRight(normalized[:sigIdx], "\n ")
	if strings.TrimSpace(msg) == "" {
		return domain.SignedMessage{}, fmt.Errorf("sigrequest: empty message body: %w", domain.ErrFormat)
	}

	key := extractLabelValue(normalized[sigIdx:txIdx], signatureLabel)
	sig := extractLabelValue(normalized[txIdx:], txIDLabel)
	if key == "" || sig == "" {
		return domain.SignedMessage{}, fmt.Errorf("sigrequest: missing key or signature value: %w", domain.ErrFormat)
	}

	return domain.SignedMessage{
		Message:         strings.TrimSpace(msg),
		PublicKeyBase64: key,
		SignatureBase64: sig,
	}, nil
}

// parseLegacy handles the variant that wraps the signature block with a
// "--------" line: everything before the sentinel is the message.
func parseLegacy(text string) (domain.SignedMessage, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")

	var (
		msgLines []string
		key, sig string
		seen     bool
	)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, legacySentinel):
			seen = true
		case strings.HasPrefix(line, signatureLabel):
			key = strings.TrimSpace(strings.TrimPrefix(line, signatureLabel))
		case strings.HasPrefix(line, txIDLabel):
			sig = strings.TrimSpace(strings.TrimPrefix(line, txIDLabel))
		case !seen:
			msgLines = append(msgLines, line)
		}
	}

	if !seen || key == "" || sig == "" {
		return domain.SignedMessage{}, fmt.Errorf("sigrequest: incomplete legacy request: %w", domain.ErrFormat)
	}
	msg := strings.TrimSpace(strings.Join(msgLines, "\n"))
	if msg == "" {
		return domain.SignedMessage{}, fmt.Errorf("sigrequest: empty message body: %w", domain.ErrFormat)
	}

	return domain.SignedMessage{
		Message:         msg,
		PublicKeyBase64: key,
		SignatureBase64: sig,
	}, nil
}

// extractLabelValue pulls the single-line value following a label out of a
// section.
func extractLabelValue(section, label string) string {
	rest := strings.TrimPrefix(section, label)
	if rest == section {
		return ""
	}
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// ParseBody extracts the transaction type and field map from a message body.
// The first "[TYPE]" line names the transaction type; subsequent
// "- Key: Value" lines become fields. Bodies without the markup yield an
// empty type and no fields, which is not an error.
func ParseBody(message string) domain.RequestBody {
	body := domain.RequestBody{Fields: map[string]string{}}

	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") && body.TransactionType == "":
			body.TransactionType = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
		case strings.HasPrefix(line, "- "):
			kv := strings.SplitN(strings.TrimPrefix(line, "- "), ":", 2)
			if len(kv) == 2 {
				k := strings.TrimSpace(kv[0])
				v := strings.TrimSpace(kv[1])
				if k != "" {
					body.Fields[k] = v
				}
			}
		}
	}
	return body
}
