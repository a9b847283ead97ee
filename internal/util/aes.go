package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	AESKeySize = 32
	// GCMNonceSize is the standard 96-bit GCM nonce.
	GCMNonceSize = 12
	// GCMTagSize is the 128-bit GCM authentication tag.
	GCMTagSize = 16
	// GCMOverhead is the number of bytes EncryptAES adds to a plaintext.
	GCMOverhead = GCMNonceSize + GCMTagSize
)

// ErrCiphertextTooShort is returned when a sealed blob cannot hold a nonce and tag.
var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce and tag")

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// EncryptAES seals plainText with AES-256-GCM under a fresh random nonce and
// returns nonce || ciphertext || tag.
func EncryptAES(plainText, rawKey []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, GCMNonceSize, GCMNonceSize+len(plainText)+GCMTagSize)
	if _, err = io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(out, out[:GCMNonceSize], plainText, nil), nil
}

// DecryptAES opens a blob produced by EncryptAES. No plaintext is returned
// unless the tag verifies.
func DecryptAES(sealed, rawKey []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < GCMOverhead {
		return nil, ErrCiphertextTooShort
	}

	nonce, cipherText := sealed[:GCMNonceSize], sealed[GCMNonceSize:]
	plainText, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}
	if plainText == nil {
		plainText = []byte{}
	}
	return plainText, nil
}

func NewAESKey() ([]byte, error) {
	rawKey := make([]byte, AESKeySize)
	if _, err := rand.Read(rawKey); err != nil {
		return nil, fmt.Errorf("generating AES key: %w", err)
	}
	return rawKey, nil
}
