package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

const (
	// DefaultServerURL is the responder endpoint used until an operator
	// configures one.
	DefaultServerURL = "http://192.168.0.100:5000"
	// DefaultPassword unlocks kiosk exit on a freshly provisioned device.
	DefaultPassword = "1234"
)

// FileStore persists device settings as a small JSON file. Reads and
// writes go through an in-memory copy guarded by a mutex; every write
// is flushed to disk immediately.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	data fileData
}

var _ repositories.SettingsStore = (*FileStore)(nil)

type fileData struct {
	ServerURL    string `json:"server_url"`
	PasswordHash string `json:"password_hash"`
}

// NewFileStore opens or creates the settings file at path. Missing
// fields are populated with defaults.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	store := &FileStore{
		path:   path,
		logger: logger,
		data: fileData{
			ServerURL:    DefaultServerURL,
			PasswordHash: HashPassword(DefaultPassword),
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := store.flushLocked(); err != nil {
			return nil, err
		}
		logger.Info("Created settings file with defaults", zap.String("path", path))
		return store, nil
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if data.ServerURL != "" {
		store.data.ServerURL = data.ServerURL
	}
	if data.PasswordHash != "" {
		store.data.PasswordHash = data.PasswordHash
	}
	return store, nil
}

// ServerURL implements repositories.SettingsStore.
func (s *FileStore) ServerURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ServerURL, nil
}

// SetServerURL implements repositories.SettingsStore.
func (s *FileStore) SetServerURL(url string) error {
	if url == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ServerURL = url
	return s.flushLocked()
}

// PasswordHash implements repositories.SettingsStore.
func (s *FileStore) PasswordHash() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PasswordHash, nil
}

// SetPasswordHash implements repositories.SettingsStore.
func (s *FileStore) SetPasswordHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("password hash cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.PasswordHash = hash
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// HashPassword returns the hex-encoded SHA-256 digest of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return HashPassword(password) == hash
}
