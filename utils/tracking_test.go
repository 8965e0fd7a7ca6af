package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"emailforge/config"
)

func TestGenerateMessageID(t *testing.T) {
	first := GenerateMessageID("example.com")
	second := GenerateMessageID("example.com")

	assert.True(t, strings.HasSuffix(first, "@example.com"))
	assert.NotEqual(t, first, second)
}

func TestTrackingTokenVerification(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-encryption-key"

	messageID := GenerateMessageID("example.com")
	token := TrackingToken(messageID)

	assert.True(t, VerifyTrackingToken(messageID, token))
	assert.False(t, VerifyTrackingToken(messageID, token+"00"))
	assert.False(t, VerifyTrackingToken("other-message", token))
}

func TestTrackingTokenDependsOnKey(t *testing.T) {
	config.AppConfig.EncryptionKey = "key-one"
	token := TrackingToken("msg@example.com")

	config.AppConfig.EncryptionKey = "key-two"
	assert.False(t, VerifyTrackingToken("msg@example.com", token))
}
