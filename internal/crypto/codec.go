// Package crypto seals message bodies before they reach storage and opens them
// again on the way out.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryption is returned for any ciphertext that cannot be opened: bad
// envelope, unknown key id, or a failed authentication tag.
var ErrDecryption = errors.New("crypto: unable to decrypt message")

// DefaultKeyID is the key id used when a single MESSAGE_KEY is configured.
const DefaultKeyID = "default"

// Codec encrypts with the active key and decrypts with whichever key id the
// envelope names, so rows written before a key rotation stay readable.
//
// Envelope format: "<kid>.<base64url(nonce || ciphertext)>".
type Codec struct {
	aeads  map[string]cipher.AEAD
	active string
}

// NewCodec builds a Codec from raw 32-byte keys indexed by key id.
func NewCodec(keys map[string][]byte, activeKid string) (*Codec, error) {
	if len(keys) == 0 {
		return nil, errors.New("crypto: no message keys configured")
	}
	aeads := make(map[string]cipher.AEAD, len(keys))
	for kid, key := range keys {
		if kid == "" || strings.Contains(kid, ".") {
			return nil, fmt.Errorf("crypto: invalid key id %q", kid)
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: key %q: %w", kid, err)
		}
		aeads[kid] = aead
	}
	if _, ok := aeads[activeKid]; !ok {
		return nil, fmt.Errorf("crypto: active key id %q is not configured", activeKid)
	}
	return &Codec{aeads: aeads, active: activeKid}, nil
}

// NewCodecFromEncoded is NewCodec for base64 (std or url, padded or not) keys
// as they appear in configuration.
func NewCodecFromEncoded(keys map[string]string, activeKid string) (*Codec, error) {
	raw := make(map[string][]byte, len(keys))
	for kid, enc := range keys {
		key, err := decodeKey(enc)
		if err != nil {
			return nil, fmt.Errorf("crypto: key %q: %w", kid, err)
		}
		raw[kid] = key
	}
	return NewCodec(raw, activeKid)
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("key is not valid base64")
}

// Encode strips markup from plaintext and seals the remainder.
func (c *Codec) Encode(plaintext string) (string, error) {
	aead := c.aeads[c.active]
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(StripTags(plaintext)), []byte(c.active))
	return c.active + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens an envelope produced by Encode.
func (c *Codec) Decode(ciphertext string) (string, error) {
	kid, payload, ok := strings.Cut(ciphertext, ".")
	if !ok {
		return "", ErrDecryption
	}
	aead, ok := c.aeads[kid]
	if !ok {
		return "", fmt.Errorf("%w: unknown key id %q", ErrDecryption, kid)
	}
	sealed, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(sealed) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return "", ErrDecryption
	}
	nonce, body := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, body, []byte(kid))
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

// ActiveKeyID reports the key id new envelopes are sealed with.
func (c *Codec) ActiveKeyID() string { return c.active }
