// Package callbacktoken turns a generation id into an opaque, URL-safe token
// embedded in provider webhook URLs and back again.
package callbacktoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
)

const additionalData = "generation-callback:v1"

// Codec encodes generation ids into callback tokens. Decode must reject any
// token it did not produce.
type Codec interface {
	Encode(generationID string) (string, error)
	Decode(token string) (string, error)
}

// AEADCodec seals ids with XChaCha20-Poly1305. Tokens are
// base64url(nonce || ciphertext) without padding.
type AEADCodec struct {
	key [chacha20poly1305.KeySize]byte
}

// NewAEADCodec derives a 256-bit key from secret. Secrets shorter than 16
// bytes are rejected.
func NewAEADCodec(secret string) (*AEADCodec, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, fmt.Errorf("callback token secret must be at least 16 characters")
	}
	return &AEADCodec{key: sha256.Sum256([]byte(secret))}, nil
}

func (c *AEADCodec) Encode(generationID string) (string, error) {
	if generationID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "generation id is required")
	}
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "init callback cipher")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(generationID)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate nonce")
	}
	sealed := aead.Seal(nonce, nonce, []byte(generationID), []byte(additionalData))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *AEADCodec) Decode(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "malformed callback token")
	}
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "init callback cipher")
	}
	if len(raw) <= aead.NonceSize()+aead.Overhead() {
		return "", pkgerrors.New(pkgerrors.CodeInvalidToken, "callback token too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(additionalData))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "callback token rejected")
	}
	return string(plain), nil
}
