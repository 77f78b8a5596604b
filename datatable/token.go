package datatable

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenVersion  byte = 1
	maxTokenBytes      = 4096
	keyInfo            = "stockly datatable state v1"
)

// Codec seals a table State into an opaque URL token with AES-256-GCM. The
// table name is bound as additional data, so a token only opens for the
// table it was minted for.
//
// Token layout before base64url: version(1) | nonce(12) | ciphertext+tag.
//
// A nil *Codec is valid: Encode returns "" and Decode always fails.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit key from secret. An empty secret returns a nil
// Codec, which disables tokens.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving table token key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating table token cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating table token aead: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Enabled reports whether tokens are issued.
func (c *Codec) Enabled() bool { return c != nil }

// Encode seals s for table t.
func (c *Codec) Encode(t *Table, s State) (string, error) {
	if c == nil {
		return "", nil
	}
	return c.seal(t, Values(s))
}

func (c *Codec) seal(t *Table, v url.Values) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating token nonce: %w", err)
	}
	out := make([]byte, 0, 1+len(nonce)+c.aead.Overhead()+64)
	out = append(out, tokenVersion)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, []byte(v.Encode()), []byte(t.Name))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode opens a token minted for t and returns the raw query parameters it
// carries. Callers must validate them; Parse does.
func (c *Codec) Decode(t *Table, token string) (url.Values, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: tokens are disabled", ErrInvalidToken)
	}
	if len(token) > maxTokenBytes {
		return nil, fmt.Errorf("%w: too long", ErrInvalidToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < 1+ns+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: truncated", ErrInvalidToken)
	}
	if raw[0] != tokenVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidToken, raw[0])
	}
	nonce, sealed := raw[1:1+ns], raw[1+ns:]
	plain, err := c.aead.Open(nil, nonce, sealed, []byte(t.Name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	v, err := url.ParseQuery(string(plain))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return v, nil
}
