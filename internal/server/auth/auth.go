// Package auth secures stream API connections with a shared password: a
// PBKDF2 derived key, an HMAC challenge and a chacha20poly1305 framed conn.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	AutoGenKeyLength = 16
	Base62Chars      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	PBKDF2Iterations = 100000
	PBKDF2Salt       = "ps2bridge-Key-v1"
	sessionContext   = "ps2bridge-Session-v1"
)

// GenerateKey creates a random base62 password of AutoGenKeyLength chars.
func GenerateKey() (string, error) {
	randomBytes := make([]byte, AutoGenKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	key := make([]byte, AutoGenKeyLength)
	for i, b := range randomBytes {
		key[i] = Base62Chars[int(b)%62]
	}
	return string(key), nil
}

// DeriveKey stretches a password to a 32 byte key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("Password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(PBKDF2Salt), PBKDF2Iterations, 32)
}

// DeriveSessionKey mixes the long-term key with both handshake nonces.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

// LoadOrCreatePassword returns the password stored at path, generating and
// saving a new one (mode 0600) when the file does not exist. created reports
// whether a new password was written.
func LoadOrCreatePassword(path string) (password string, created bool, err error) {
	if b, err := os.ReadFile(path); err == nil {
		pwd := strings.TrimSpace(string(b))
		if pwd == "" {
			return "", false, fmt.Errorf("password file %s is empty", path)
		}
		return pwd, false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("read password file: %w", err)
	}

	pwd, err := GenerateKey()
	if err != nil {
		return "", false, fmt.Errorf("generate password: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("create password dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(pwd), 0o600); err != nil {
		return "", false, fmt.Errorf("write password file: %w", err)
	}
	return pwd, true, nil
}
