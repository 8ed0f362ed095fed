package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// nonceSize is the secretbox nonce length.
	nonceSize = 24

	// tagSize is the poly1305 authenticator length prepended by Seal.
	tagSize = secretbox.Overhead
)

// ErrIntegrity is returned when a ciphertext is malformed or fails
// authentication.
var ErrIntegrity = errors.New("vault: ciphertext integrity check failed")

// Vault encrypts and decrypts account passwords for the lifetime of a
// session. It is a stateless wrapper around an authenticated symmetric
// cipher; the key is derived from a shared secret by SHA-256.
type Vault struct {
	key [32]byte
}

// New derives a vault from the given shared secret.
func New(secret string) *Vault {
	return &Vault{key: sha256.Sum256([]byte(secret))}
}

// Encrypt seals plaintext with a random per-call nonce. The output is
// self-describing: "nonce:tag:cipher", each part base64.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nil, []byte(plaintext), &nonce, &v.key)

	enc := base64.StdEncoding
	return enc.EncodeToString(nonce[:]) + ":" +
		enc.EncodeToString(sealed[:tagSize]) + ":" +
		enc.EncodeToString(sealed[tagSize:]), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Inputs that do not
// match the three-part format are treated as legacy plain base64 with
// no authentication; the caller should log such values as suspect.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		// Legacy format: bare base64, pre-dating the sealed vault.
		plain, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			return "", ErrIntegrity
		}
		return string(plain), nil
	}

	enc := base64.StdEncoding
	rawNonce, err := enc.DecodeString(parts[0])
	if err != nil || len(rawNonce) != nonceSize {
		return "", ErrIntegrity
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrIntegrity
	}
	cipher, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", ErrIntegrity
	}

	var nonce [nonceSize]byte
	copy(nonce[:], rawNonce)

	sealed := make([]byte, 0, len(tag)+len(cipher))
	sealed = append(sealed, tag...)
	sealed = append(sealed, cipher...)

	plain, ok := secretbox.Open(nil, sealed, &nonce, &v.key)
	if !ok {
		return "", ErrIntegrity
	}

	return string(plain), nil
}
