package zalo

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	// SignatureHeader carries the webhook signature.
	SignatureHeader = "X-ZEvent-Signature"

	// PlaceholderWebhookSecret is the unconfigured value shipped in sample env files.
	PlaceholderWebhookSecret = "your_webhook_secret"
)

// ComputeSignature returns hex(sha256(appID + body + timestamp + secret)).
func ComputeSignature(appID string, body []byte, timestamp, secret string) string {
	h := sha256.New()
	h.Write([]byte(appID))
	h.Write(body)
	h.Write([]byte(timestamp))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks signature against the raw request body. Verification
// is skipped, returning true, when no signature was sent or no secret is configured.
func VerifySignature(body []byte, ev Event, signature, secret string) bool {
	if SignatureSkipped(signature, secret) {
		return true
	}

	var appID, timestamp string
	if ev != nil {
		appID = ev.AppID()
		timestamp = ev.Timestamp()
	}
	want := ComputeSignature(appID, body, timestamp, secret)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(want)) == 1
}

// SignatureSkipped reports whether VerifySignature would skip verification.
func SignatureSkipped(signature, secret string) bool {
	return strings.TrimSpace(signature) == "" || secret == "" || secret == PlaceholderWebhookSecret
}
