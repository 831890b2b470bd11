package cryptobox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("meet at the usual place")

	blob, err := Encrypt(message, &key.PublicKey)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), string(message))

	plain, err := Decrypt(blob, key)
	require.NoError(t, err)
	assert.Equal(t, message, plain)
}

func TestEncryptProducesFreshCiphertext(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	message := []byte("same message twice")

	first, err := Encrypt(message, &key.PublicKey)
	require.NoError(t, err)
	second, err := Encrypt(message, &key.PublicKey)
	require.NoError(t, err)

	// Fresh session key and nonce every time.
	assert.False(t, bytes.Equal(first, second))
}

func TestDecryptRejectsTamperedPayload(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	blob, err := Encrypt([]byte("original"), &key.PublicKey)
	require.NoError(t, err)

	tampered := make([]byte, len(blob))
	copy(tampered, blob)
	tampered[len(tampered)-1] ^= 0x01

	_, err = Decrypt(tampered, key)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedWrappedKey(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	blob, err := Encrypt([]byte("original"), &key.PublicKey)
	require.NoError(t, err)

	blob[0] ^= 0x01

	_, err = Decrypt(blob, key)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	eve, err := GenerateKeyPair()
	require.NoError(t, err)

	blob, err := Encrypt([]byte("for alice only"), &alice.PublicKey)
	require.NoError(t, err)

	_, err = Decrypt(blob, eve)
	assert.Error(t, err)
}

func TestDecryptRejectsShortBlob(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = Decrypt([]byte("way too short"), key)
	assert.ErrorIs(t, err, errCiphertextTooShort)

	// Long enough to contain a wrapped key, but nothing after it.
	_, err = Decrypt(make([]byte, key.Size()), key)
	assert.Error(t, err)
}
