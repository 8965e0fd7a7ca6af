package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emailforge/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-encryption-key"

	plaintext := "smtp-password-123!"
	encrypted, err := Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-encryption-key"

	first, err := Encrypt("same input")
	require.NoError(t, err)
	second, err := Encrypt("same input")
	require.NoError(t, err)

	// A random IV per message means identical inputs never collide
	assert.NotEqual(t, first, second)
}

func TestEncryptEmptyString(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-encryption-key"

	encrypted, err := Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	decrypted, err := Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestDecryptRejectsMalformedCiphertext(t *testing.T) {
	config.AppConfig.EncryptionKey = "test-encryption-key"

	_, err := Decrypt("not-base64!!!")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=")
	assert.Error(t, err)
}

func TestEncryptRequiresKey(t *testing.T) {
	original := config.AppConfig.EncryptionKey
	defer func() { config.AppConfig.EncryptionKey = original }()

	config.AppConfig.EncryptionKey = ""
	_, err := Encrypt("anything")
	assert.Error(t, err)
}
