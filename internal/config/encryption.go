package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"snowcraft/pkg/errors"
	"snowcraft/pkg/models"
)

// Passwords are stored at rest as ENC[<base64 nonce||ciphertext>] so a saved
// config file never carries a plaintext secret.
const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"
)

// encryptionKey returns the 32-byte AES key. SNOWCRAFT_ENCRYPTION_KEY takes
// precedence; otherwise the key is derived from the machine identity, which
// keeps the file decryptable only on the host that wrote it.
func encryptionKey() []byte {
	seed := os.Getenv("SNOWCRAFT_ENCRYPTION_KEY")
	if seed == "" {
		hostname, _ := os.Hostname()
		home, _ := os.UserHomeDir()
		seed = hostname + "-" + home + "-snowcraft"
	}
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(encryptionKey())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptPassword seals a plaintext password into the ENC[...] form.
// Empty and already-sealed values pass through unchanged.
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialize cipher")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to generate nonce")
	}

	sealed := gcm.Seal(nonce, nonce, []byte(password), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed) + encryptedSuffix, nil
}

// DecryptPassword opens an ENC[...] value. Values without the marker are
// returned as-is so hand-written plaintext configs keep working.
func DecryptPassword(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	encoded := strings.TrimSuffix(strings.TrimPrefix(value, encryptedPrefix), encryptedSuffix)
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Malformed encrypted password")
	}

	gcm, err := newGCM()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to initialize cipher")
	}

	if len(sealed) < gcm.NonceSize() {
		return "", errors.New(errors.ErrCodeEncryptionFailed, "Encrypted password too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "Failed to decrypt password").
			WithSuggestions("Set SNOWCRAFT_ENCRYPTION_KEY to the key the config was saved with")
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether a value carries the ENC[...] marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptConfigPasswords seals every connection password before the config
// is written out.
func EncryptConfigPasswords(config *models.Config) error {
	for i := range config.Connections {
		conn := &config.Connections[i]
		sealed, err := EncryptPassword(conn.Password)
		if err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		conn.Password = sealed
	}
	return nil
}

// DecryptConfigPasswords opens every sealed connection password after load.
func DecryptConfigPasswords(config *models.Config) error {
	for i := range config.Connections {
		conn := &config.Connections[i]
		plain, err := DecryptPassword(conn.Password)
		if err != nil {
			return fmt.Errorf("connection %q: %w", conn.Name, err)
		}
		conn.Password = plain
	}
	return nil
}
