package security

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// VaultCipher is the reversible cipher for stored vault secrets. The owner id
// is bound as associated data, so a ciphertext only opens for its owner.
type VaultCipher interface {
	Seal(ownerID, plain string) ([]byte, error)
	Open(ownerID string, sealed []byte) (string, error)
}

var ErrCiphertextInvalid = errors.New("vault ciphertext invalid")

// argon2id parameters for deriving the vault key from the configured secret.
const (
	keyTime    = 1
	keyMemory  = 64 * 1024
	keyThreads = 4
)

type XChaChaCipher struct {
	key []byte
}

// NewXChaChaCipher derives a 256-bit key from secret and salt once at startup.
func NewXChaChaCipher(secret, salt string) (*XChaChaCipher, error) {
	if secret == "" {
		return nil, errors.New("vault secret is empty")
	}

	key := argon2.IDKey([]byte(secret), []byte(salt), keyTime, keyMemory, keyThreads, chacha20poly1305.KeySize)

	return &XChaChaCipher{key: key}, nil
}

// Seal returns nonce||ciphertext.
func (c *XChaChaCipher) Seal(ownerID, plain string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, []byte(plain), []byte(ownerID)), nil
}

func (c *XChaChaCipher) Open(ownerID string, sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertextInvalid
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, []byte(ownerID))
	if err != nil {
		return "", ErrCiphertextInvalid
	}

	return string(plain), nil
}
