package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrSealed is returned when a sealed value is malformed, tampered with or sealed for another purpose.
var ErrSealed = errors.New("sealed value is invalid")

// Sealer encrypts short payloads into URL safe strings with AES-256-GCM.
// Keys are derived per purpose so a value sealed for one use cannot be opened by another.
type Sealer struct {
	key     []byte
	purpose []byte
}

// NewSealer derives a sealing key for purpose from secret.
func NewSealer(secret, purpose string) Sealer {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf only fails after 255 blocks of output.
		panic(err)
	}
	return Sealer{key: key, purpose: []byte(purpose)}
}

func (s Sealer) aead() (cipher.AEAD, error) {
	if len(s.key) == 0 {
		return nil, errors.New("sealer not initialised")
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and returns it base64url encoded with the nonce prepended.
func (s Sealer) Seal(plaintext []byte) (string, error) {
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, s.purpose)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s Sealer) Open(token string) ([]byte, error) {
	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}
	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrSealed
	}
	nonceSize := gcm.NonceSize()
	if len(payload) < nonceSize+gcm.Overhead() {
		return nil, ErrSealed
	}
	plain, err := gcm.Open(nil, payload[:nonceSize], payload[nonceSize:], s.purpose)
	if err != nil {
		return nil, ErrSealed
	}
	return plain, nil
}
