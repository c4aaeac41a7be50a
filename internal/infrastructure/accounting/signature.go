package accounting

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// verifyHMACBase64 checks a base64-encoded HMAC-SHA256 signature over the
// raw payload. Comparison is constant time.
func verifyHMACBase64(secret string, payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return accounting.ErrInvalidSignature
	}
	return nil
}

// verifyHMACHex checks a hex-encoded HMAC-SHA256 signature over the raw
// payload. Comparison is constant time.
func verifyHMACHex(secret string, payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return accounting.ErrInvalidSignature
	}
	return nil
}

// SignHMACBase64 computes the base64 HMAC-SHA256 signature for a payload.
// Exported for webhook test fixtures and local tooling.
func SignHMACBase64(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignHMACHex computes the hex HMAC-SHA256 signature for a payload.
func SignHMACHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
