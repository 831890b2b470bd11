// Package cryptobox implements a hybrid RSA-OAEP / AES-GCM message scheme
// for end-to-end experiments between clients. The relay itself never calls
// it: frames cross the relay in plaintext under transport security only.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"io"
)

const (
	keyBits        = 2048
	sessionKeySize = 32
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// GenerateKeyPair creates a fresh RSA key pair for the scheme.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, keyBits)
}

// Encrypt seals message for the holder of pub: a random AES-256 session key
// encrypts the message under GCM, and the session key travels RSA-OAEP
// wrapped. Output layout: wrapped key || nonce || sealed message.
func Encrypt(message []byte, pub *rsa.PublicKey) ([]byte, error) {
	sessionKey := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(rand.Reader, sessionKey); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, sessionKey, nil)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(wrappedKey)+len(nonce)+len(message)+gcm.Overhead())
	out = append(out, wrappedKey...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, message, nil)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt with the matching private key.
// Any tampering with the wrapped key, nonce, or sealed payload fails.
func Decrypt(blob []byte, priv *rsa.PrivateKey) ([]byte, error) {
	keySize := priv.Size()
	if len(blob) < keySize {
		return nil, errCiphertextTooShort
	}

	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, blob[:keySize], nil)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	rest := blob[keySize:]
	if len(rest) < gcm.NonceSize() {
		return nil, errCiphertextTooShort
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	return gcm.Open(nil, nonce, sealed, nil)
}
