package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// Cipher seals auth tokens before they reach storage. The nonce is prepended
// to the ciphertext; output is base64 for TEXT columns.
type Cipher struct {
	key [32]byte
}

var ErrDecrypt = errors.New("accounts: token decryption failed")

// NewCipher expects a 64-char hex key (32 bytes decoded).
func NewCipher(hexKey string) (*Cipher, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("accounts: cipher key must be hex")
	}
	if len(raw) != 32 {
		return nil, errors.New("accounts: cipher key must be 32 bytes")
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *Cipher) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < 24 {
		return "", ErrDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
