package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const fileExt = ".json"

// FileStore keeps each key in its own JSON file under a directory. Writes go
// through a temp file and rename so readers never see partial content.
type FileStore struct {
	dir    string
	logger *log.Logger

	mu      sync.Mutex
	written map[string][sha256.Size]byte

	debounceDelay time.Duration
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collections directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{
		dir:           dir,
		logger:        logger,
		written:       make(map[string][sha256.Size]byte),
		debounceDelay: 100 * time.Millisecond,
	}, nil
}

// Dir returns the backing directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}

	s.mu.Lock()
	s.written[key] = sha256.Sum256(value)
	s.mu.Unlock()

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.written, key)
	s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// Watch reports keys rewritten by another process. Changes whose content
// matches this store's own last write are ignored.
func (s *FileStore) Watch(ctx context.Context, onChange func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(s.debounceDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			key, ok := s.keyFor(event)
			if ok {
				pending[key] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Collection watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()
			for key, at := range pending {
				if now.Sub(at) < s.debounceDelay {
					continue
				}
				delete(pending, key)
				if s.isOwnWrite(key) {
					continue
				}
				s.logger.Debug("Collection changed externally", "key", key)
				onChange(key)
			}
		}
	}
}

func (s *FileStore) keyFor(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	return strings.TrimSuffix(base, fileExt), true
}

func (s *FileStore) isOwnWrite(key string) bool {
	data, err := os.ReadFile(s.path(key))
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.written[key]
	if err != nil {
		// removed by someone else unless we never wrote it
		return !ok
	}
	if !ok {
		return false
	}
	sum := sha256.Sum256(data)
	return bytes.Equal(sum[:], last[:])
}
