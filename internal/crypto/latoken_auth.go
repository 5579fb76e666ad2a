package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// LatokenAuth holds the credentials for HMAC-authenticated requests against
// the LATOKEN private REST API.
type LatokenAuth struct {
	Key    string // API key
	Secret string // API secret
}

// Headers returns the HTTP headers for a private LATOKEN request. The
// signature is HMAC-SHA512(secret, method+endpoint+query) encoded as hex.
//
// Returned header keys:
//   - X-LA-APIKEY
//   - X-LA-SIGNATURE
//   - X-LA-DIGEST
func (a *LatokenAuth) Headers(method, endpoint, query string) map[string]string {
	mac := hmac.New(sha512.New, []byte(a.Secret))
	mac.Write([]byte(method + endpoint + query))
	sig := hex.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-LA-APIKEY":    a.Key,
		"X-LA-SIGNATURE": sig,
		"X-LA-DIGEST":    "HMAC-SHA512",
	}
}

// String returns a redacted representation suitable for logging.
func (a *LatokenAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("LatokenAuth{key=%s, secret=%s}", redact(a.Key), redact(a.Secret))
}
