package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crmcheck/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const apiKeyFileName = "apikey"

// KeyStore persists the API key credential in the config directory.
// The bearer token never goes through here; it lives only in memory.
type KeyStore struct {
	mu  sync.Mutex
	dir string
}

// NewKeyStore returns a key store rooted at dir.
func NewKeyStore(dir string) *KeyStore {
	return &KeyStore{dir: dir}
}

// Path returns the file backing the store.
func (k *KeyStore) Path() string {
	return filepath.Join(k.dir, apiKeyFileName)
}

// Load returns the persisted key, or "" when none is stored.
func (k *KeyStore) Load() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.readLocked()
}

func (k *KeyStore) readLocked() (string, error) {
	data, err := os.ReadFile(k.Path())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the key with owner-only permissions.
func (k *KeyStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", k.dir, err)
	}
	if err := os.WriteFile(k.Path(), []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write api key: %w", err)
	}
	logging.Info("KeyStore", "Stored api key %s", logging.Redact(key))
	return nil
}

// Clear removes the persisted key. Clearing an empty store is not an error.
func (k *KeyStore) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove api key: %w", err)
	}
	logging.Info("KeyStore", "Cleared api key")
	return nil
}

// Watch calls onChange with the current key whenever the key file is written,
// created or removed. It blocks until ctx is done.
func (k *KeyStore) Watch(ctx context.Context, onChange func(key string)) error {
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", k.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(k.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", k.dir, err)
	}
	logging.Debug("KeyStore", "Watching %s", k.Path())

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != apiKeyFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, err := k.Load()
			if err != nil {
				logging.Error("KeyStore", err, "reload after %s failed", event.Op)
				continue
			}
			logging.Debug("KeyStore", "api key changed on disk (%s)", event.Op)
			onChange(key)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("KeyStore", err, "fsnotify error")
		}
	}
}
