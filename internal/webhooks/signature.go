package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an HMAC-SHA256 signature over the raw request body.
// The header value may be hex or base64 encoded; both are compared in
// constant time. Returns false when no secret is configured.
func VerifySignature(secret string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if secret == "" || header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)

	if decoded, err := hex.DecodeString(header); err == nil {
		return hmac.Equal(sum, decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		return hmac.Equal(sum, decoded)
	}
	return false
}
