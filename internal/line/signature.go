// Package line implements the LINE messaging transport: webhook payload
// parsing, signature verification, reply/push delivery, and flex cards.
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ValidSignature verifies a webhook body against the X-Line-Signature
// header using HMAC-SHA256 over the raw bytes with the channel secret.
func ValidSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}
