package credstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24

	// sealVersion prefixes every sealed value.
	sealVersion = "v1."
	// accountKeyInfo is the HKDF info prefix; the account name follows it.
	accountKeyInfo = "bskykit credentials "
)

func checkKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("encryption key must be exactly %d bytes, got %d", keySize, len(key))
	}
	return nil
}

// accountKey derives the key that seals one account's tokens from the store key.
// Tokens only open under the account they were saved for.
func accountKey(key []byte, account string) (*[keySize]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}
	var derived [keySize]byte
	kdf := hkdf.New(sha256.New, key, nil, []byte(accountKeyInfo+account))
	if _, err := io.ReadFull(kdf, derived[:]); err != nil {
		return nil, fmt.Errorf("failed to derive account key: %w", err)
	}
	return &derived, nil
}

// sealTokens encrypts tokens for account. The result is sealVersion followed by
// the base64url encoded nonce and secretbox.
func sealTokens(key []byte, account string, tokens sealedTokens) (string, error) {
	boxKey, err := accountKey(key, account)
	if err != nil {
		return "", err
	}
	plain, err := cbor.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("failed to encode tokens: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, boxKey)
	return sealVersion + base64.RawURLEncoding.EncodeToString(box), nil
}

func openTokens(key []byte, account, sealed string) (sealedTokens, error) {
	var tokens sealedTokens
	boxKey, err := accountKey(key, account)
	if err != nil {
		return tokens, err
	}
	encoded, ok := strings.CutPrefix(sealed, sealVersion)
	if !ok {
		return tokens, fmt.Errorf("unsupported sealed tokens format")
	}
	box, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return tokens, fmt.Errorf("invalid sealed tokens: %w", err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return tokens, fmt.Errorf("invalid sealed tokens: data too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, boxKey)
	if !ok {
		return tokens, fmt.Errorf("cannot open tokens of %s: wrong key or not sealed for this account", account)
	}
	if err := cbor.Unmarshal(plain, &tokens); err != nil {
		return tokens, fmt.Errorf("failed to decode tokens: %w", err)
	}
	return tokens, nil
}

// ParseKey decodes a store key written by GenerateKey (standard base64, 32 bytes).
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
