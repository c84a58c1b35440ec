package mootcrypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations follows the OWASP minimum for HMAC-SHA256.
const pbkdf2Iterations = 480_000

// DeriveKey stretches a passphrase into an encoded key New accepts. The
// salt must be stable across runs or the derived key will not match
// previously encrypted artifacts.
func DeriveKey(passphrase string, salt []byte) (string, error) {
	if passphrase == "" {
		return "", errors.New("mootcrypto: empty passphrase")
	}
	if len(salt) < 8 {
		return "", errors.New("mootcrypto: salt too short")
	}
	raw := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)
	return base64.URLEncoding.EncodeToString(raw), nil
}
