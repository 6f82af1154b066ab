package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCMEncryptor_RoundTrip(t *testing.T) {
	key, err := GenerateKey(256)
	require.NoError(t, err)
	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)

	plaintext := []byte("wal segment bytes")
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestChaCha20Poly1305Encryptor_RoundTrip(t *testing.T) {
	key, err := GenerateKey(256)
	require.NoError(t, err)
	enc, err := NewChaCha20Poly1305Encryptor(key)
	require.NoError(t, err)

	plaintext := []byte("archive entry bytes")
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	key, err := GenerateKey(256)
	require.NoError(t, err)
	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = enc.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewEncryptor_UnsupportedAlgorithm(t *testing.T) {
	_, err := NewEncryptor("rot13", make([]byte, 32))
	assert.Error(t, err)
}

func TestDeriveKey_IsDeterministicForSameSalt(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	k1, err := DeriveKey([]byte("correct horse battery staple"), salt, 32)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("correct horse battery staple"), salt, 32)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyID_IsStableAndNonEmpty(t *testing.T) {
	key, err := GenerateKey(256)
	require.NoError(t, err)
	id1 := KeyID(key)
	id2 := KeyID(key)
	assert.NotEmpty(t, id1)
	assert.Equal(t, id1, id2)
}
