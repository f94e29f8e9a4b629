package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const confirmTokenBytes = 32

// TokenCodec produces single-use confirmation tokens. Only Hash output is stored.
type TokenCodec struct {
	pepper []byte
}

func NewTokenCodec(pepper string) *TokenCodec {
	return &TokenCodec{pepper: []byte(pepper)}
}

func (c *TokenCodec) Generate() (plain string, hash string, err error) {
	buf := make([]byte, confirmTokenBytes)

	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	plain = hex.EncodeToString(buf)

	return plain, c.Hash(plain), nil
}

// Deterministic HMAC hash (server-side pepper).
func (c *TokenCodec) Hash(candidate string) string {
	h := hmac.New(sha256.New, c.pepper)
	h.Write([]byte(candidate))
	return hex.EncodeToString(h.Sum(nil))
}
