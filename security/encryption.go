// Package security provides optional at-rest encryption for archived WAL
// segments and portable archive entries. It is never enabled by default —
// callers opt in explicitly via wal.WithArchiveEncryptor or
// archive.WithEncryption.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// Encryptor encrypts and decrypts opaque byte payloads for at-rest storage.
type Encryptor interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
	Algorithm() string
}

// AESGCMEncryptor implements AES-256-GCM encryption.
type AESGCMEncryptor struct {
	cipher cipher.AEAD
	mu     sync.RWMutex
}

// NewAESGCMEncryptor creates a new AES-256-GCM encryptor from a 32-byte key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("security: AES-256 requires a 32-byte key, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: creating GCM: %w", err)
	}

	return &AESGCMEncryptor{cipher: gcm}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM, prefixing the nonce.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nonce := make([]byte, e.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: generating nonce: %w", err)
	}
	return e.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nonceSize := e.cipher.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("security: ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decryption failed: %w", err)
	}
	return plaintext, nil
}

// Algorithm returns "AES-256-GCM".
func (e *AESGCMEncryptor) Algorithm() string { return "AES-256-GCM" }

// ChaCha20Poly1305Encryptor implements ChaCha20-Poly1305 encryption.
type ChaCha20Poly1305Encryptor struct {
	cipher cipher.AEAD
	mu     sync.RWMutex
}

// NewChaCha20Poly1305Encryptor creates a new ChaCha20-Poly1305 encryptor.
func NewChaCha20Poly1305Encryptor(key []byte) (*ChaCha20Poly1305Encryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("security: ChaCha20-Poly1305 requires a %d-byte key, got %d bytes",
			chacha20poly1305.KeySize, len(key))
	}

	c, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("security: creating ChaCha20-Poly1305 cipher: %w", err)
	}
	return &ChaCha20Poly1305Encryptor{cipher: c}, nil
}

// Encrypt encrypts plaintext using ChaCha20-Poly1305, prefixing the nonce.
func (e *ChaCha20Poly1305Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nonce := make([]byte, e.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: generating nonce: %w", err)
	}
	return e.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (e *ChaCha20Poly1305Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nonceSize := e.cipher.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("security: ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decryption failed: %w", err)
	}
	return plaintext, nil
}

// Algorithm returns "ChaCha20-Poly1305".
func (e *ChaCha20Poly1305Encryptor) Algorithm() string { return "ChaCha20-Poly1305" }

// NewEncryptor constructs an Encryptor by algorithm name, one of
// "AES-256-GCM" or "ChaCha20-Poly1305".
func NewEncryptor(algorithm string, key []byte) (Encryptor, error) {
	switch algorithm {
	case "AES-256-GCM":
		return NewAESGCMEncryptor(key)
	case "ChaCha20-Poly1305":
		return NewChaCha20Poly1305Encryptor(key)
	default:
		return nil, fmt.Errorf("security: unsupported algorithm %q", algorithm)
	}
}

// DeriveKey derives an encryption key from a passphrase using scrypt.
// N=32768 (2^15), r=8, p=1 are the conservative recommended parameters.
func DeriveKey(passphrase, salt []byte, keyLen int) ([]byte, error) {
	if len(salt) < 16 {
		return nil, fmt.Errorf("security: salt must be at least 16 bytes")
	}
	key, err := scrypt.Key(passphrase, salt, 32768, 8, 1, keyLen)
	if err != nil {
		return nil, fmt.Errorf("security: key derivation failed: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a random 32-byte salt for DeriveKey.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("security: generating salt: %w", err)
	}
	return salt, nil
}

// GenerateKey generates a random key of the given bit length.
func GenerateKey(bits int) ([]byte, error) {
	if bits%8 != 0 {
		return nil, fmt.Errorf("security: key size must be a multiple of 8 bits")
	}
	key := make([]byte, bits/8)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("security: generating key: %w", err)
	}
	return key, nil
}

// EncryptedBlob wraps a ciphertext with the metadata needed to decrypt it.
// Archive entries and archived WAL segments store the bare Encrypt output,
// not this wrapper.
type EncryptedBlob struct {
	Algorithm  string `json:"algorithm"`
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt,omitempty"`
}

// KeyID returns a short, non-secret fingerprint for a key, suitable for
// logging or recording which key encrypted a given blob without exposing
// the key itself.
func KeyID(key []byte) string {
	hash := sha256.Sum256(key)
	return fmt.Sprintf("%x", hash[:8])
}
