// Package mootcrypto implements the symmetric token format protecting every
// artifact that leaves the process: a versioned token carrying a timestamp,
// an IV, AES-128-CBC ciphertext, and an HMAC-SHA256 trailer, urlsafe-base64
// encoded. Wrong keys and corrupted tokens fail decryption; they can never
// yield plaintext-shaped garbage.
package mootcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	tokenVersion = 0x80

	keyLen    = 32 // 16 signing + 16 encryption
	headerLen = 1 + 8 + aes.BlockSize
	macLen    = sha256.Size
)

var (
	// ErrInvalidKey marks a key that is not urlsafe-base64 of 32 bytes.
	ErrInvalidKey = errors.New("mootcrypto: invalid key")
	// ErrInvalidToken marks a token that failed structural or integrity
	// checks: truncation, tampering, or decryption with the wrong key.
	ErrInvalidToken = errors.New("mootcrypto: invalid token")
)

// Fernet encrypts and decrypts whole-buffer payloads under one shared key.
type Fernet struct {
	signKey []byte
	encKey  []byte
}

// New parses an encoded key into a ready codec.
func New(encodedKey string) (*Fernet, error) {
	raw, err := decodeLenient(encodedKey)
	if err != nil || len(raw) != keyLen {
		return nil, ErrInvalidKey
	}
	return &Fernet{signKey: raw[:16], encKey: raw[16:]}, nil
}

// GenerateKey returns a fresh random key in the encoded form New accepts.
func GenerateKey() (string, error) {
	raw := make([]byte, keyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mootcrypto: generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Encrypt seals the payload into a token stamped with the current time.
func (f *Fernet) Encrypt(plaintext []byte) ([]byte, error) {
	return f.encryptAt(plaintext, time.Now())
}

func (f *Fernet) encryptAt(plaintext []byte, now time.Time) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("mootcrypto: generate iv: %w", err)
	}

	block, err := aes.NewCipher(f.encKey)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext)
	msg := make([]byte, headerLen+len(padded)+macLen)
	msg[0] = tokenVersion
	binary.BigEndian.PutUint64(msg[1:9], uint64(now.Unix()))
	copy(msg[9:headerLen], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(msg[headerLen:headerLen+len(padded)], padded)

	mac := hmac.New(sha256.New, f.signKey)
	mac.Write(msg[:headerLen+len(padded)])
	copy(msg[headerLen+len(padded):], mac.Sum(nil))

	out := make([]byte, base64.URLEncoding.EncodedLen(len(msg)))
	base64.URLEncoding.Encode(out, msg)
	return out, nil
}

// Decrypt opens a token. Any structural defect, a bad signature, or invalid
// padding yields ErrInvalidToken.
func (f *Fernet) Decrypt(token []byte) ([]byte, error) {
	msg, err := decodeLenient(string(token))
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(msg) < headerLen+aes.BlockSize+macLen || msg[0] != tokenVersion {
		return nil, ErrInvalidToken
	}

	body, gotMAC := msg[:len(msg)-macLen], msg[len(msg)-macLen:]
	mac := hmac.New(sha256.New, f.signKey)
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), gotMAC) != 1 {
		return nil, ErrInvalidToken
	}

	ciphertext := body[headerLen:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidToken
	}
	block, err := aes.NewCipher(f.encKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, body[9:headerLen]).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

// Timestamp extracts the creation time a token was stamped with, without
// verifying it.
func Timestamp(token []byte) (time.Time, error) {
	msg, err := decodeLenient(string(token))
	if err != nil || len(msg) < headerLen {
		return time.Time{}, ErrInvalidToken
	}
	return time.Unix(int64(binary.BigEndian.Uint64(msg[1:9])), 0).UTC(), nil
}

// decodeLenient accepts urlsafe base64 with or without padding.
func decodeLenient(s string) ([]byte, error) {
	if len(s)%4 == 0 {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, ErrInvalidToken
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrInvalidToken
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrInvalidToken
		}
	}
	return b[:len(b)-n], nil
}
