package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

const fileExt = ".json"

// File keeps one JSON document per key in a directory.
// Writes go to a temporary file that is synced and renamed over the target.
type File struct {
	mu     sync.Mutex
	dir    string
	logger *logger.Logger
}

// NewFile creates a File store rooted at dir. The directory is created on
// the first write.
//
// Parameters:
//   - dir: Directory holding the documents
//   - log: Logger instance for storage operations
//
// Returns:
//   - *File: A new store ready for use
func NewFile(dir string, log *logger.Logger) *File {
	return &File{dir: dir, logger: log}
}

func (f *File) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key+fileExt), nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		f.logger.Error("failed to read storage file", err,
			logger.Field{Key: "file", Value: p})
		return nil, err
	}
	return data, nil
}

// Set writes value under key using atomic write.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Ensure directory exists
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		f.logger.Error("failed to create storage directory", err,
			logger.Field{Key: "dir", Value: f.dir})
		return err
	}

	tmpPath := p + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		f.logger.Error("failed to create temporary storage file", err,
			logger.Field{Key: "file", Value: tmpPath})
		return err
	}

	if _, err := file.Write(value); err != nil {
		file.Close()
		f.logger.Error("failed to write temporary storage file", err,
			logger.Field{Key: "file", Value: tmpPath},
			logger.Field{Key: "key", Value: key})
		return err
	}

	// Ensure all data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		f.logger.Error("failed to sync temporary file", err,
			logger.Field{Key: "file", Value: tmpPath})
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, p); err != nil {
		f.logger.Error("failed to rename temporary file", err,
			logger.Field{Key: "from", Value: tmpPath},
			logger.Field{Key: "to", Value: p})
		return err
	}

	f.logger.Debug("storage key written",
		logger.Field{Key: "key", Value: key},
		logger.Field{Key: "bytes", Value: len(value)})
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Error("failed to remove storage file", err,
			logger.Field{Key: "file", Value: p})
		return err
	}
	return nil
}

func (f *File) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	slices.Sort(keys)
	return keys, nil
}

func (f *File) Close() error { return nil }
