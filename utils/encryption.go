package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/scrypt"

	"emailforge/config"
)

// Static application salt for the scrypt derivation. The encryption key
// itself comes from the environment; the salt only needs to be stable so
// stored credentials survive restarts.
var kdfSalt = []byte("emailforge.credentials.v1")

var keyCache struct {
	sync.Mutex
	secret string
	key    []byte
}

// derivedKey returns the AES-256 key derived from the configured secret,
// caching the scrypt result until the secret changes.
func derivedKey() ([]byte, error) {
	secret := config.AppConfig.EncryptionKey
	if secret == "" {
		return nil, errors.New("encryption key not configured")
	}

	keyCache.Lock()
	defer keyCache.Unlock()

	if keyCache.secret == secret {
		return keyCache.key, nil
	}

	key, err := scrypt.Key([]byte(secret), kdfSalt, 32768, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	keyCache.secret = secret
	keyCache.key = key
	return key, nil
}

// Encrypt encrypts a credential with AES-256-CBC. A fresh random IV is
// generated per message and prepended to the ciphertext.
func Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key, err := derivedKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize+len(padded))

	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext[aes.BlockSize:], padded)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, reading the IV from the ciphertext prefix.
func Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	key, err := derivedKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	decoded, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	if len(decoded) < 2*aes.BlockSize || len(decoded)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext malformed")
	}

	iv := decoded[:aes.BlockSize]
	decoded = decoded[aes.BlockSize:]

	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decoded, decoded)

	unpadded, err := pkcs7Unpad(decoded, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded data length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
