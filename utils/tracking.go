package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"emailforge/config"
)

// GenerateMessageID produces a globally unique Message-ID local part.
func GenerateMessageID(domain string) string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return fmt.Sprintf("%d.%s@%s", time.Now().UnixNano(), hex.EncodeToString(buf), domain)
}

// TrackingToken derives the token guarding the public open and click
// tracking URLs for one message.
func TrackingToken(messageID string) string {
	mac := hmac.New(sha256.New, []byte(config.AppConfig.EncryptionKey))
	mac.Write([]byte("track:" + messageID))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// VerifyTrackingToken reports whether a presented token matches the
// message it claims to track.
func VerifyTrackingToken(messageID, token string) bool {
	expected := TrackingToken(messageID)
	return hmac.Equal([]byte(expected), []byte(token))
}
