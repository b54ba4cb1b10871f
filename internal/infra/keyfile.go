package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

// keySize is what the settings store feeds into the SQLCipher key pragma.
const keySize = 32

// KeyFile keeps the settings-store encryption key in a hex-encoded file
// inside the data directory, readable by the owner only. This is key
// *storage*, not key secrecy: anyone with access to the data directory can
// read it, which is fine for a self-imposed blocker.
type KeyFile struct {
	path string
}

// NewKeyFile creates a key provider rooted at dataDir.
func NewKeyFile(dataDir string) *KeyFile {
	return &KeyFile{path: filepath.Join(dataDir, "store.key")}
}

// GetKey reads and decodes the stored key.
func (k *KeyFile) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("key file %s is not valid hex: %w", k.path, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	return key, nil
}

// StoreKey writes the key, creating the data directory if needed.
func (k *KeyFile) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(k.path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// KeyExists reports whether a key file is present.
func (k *KeyFile) KeyExists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// GenerateKey draws a fresh random store key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate store key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating and storing one on first run.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*KeyFile)(nil)
