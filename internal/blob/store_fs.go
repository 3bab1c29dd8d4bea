// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-progress writes; Walk never reports them.
const tempPrefix = ".upload-"

// FileStore keeps blobs under a root directory on local disk.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore prepares root (creating it if needed) and returns a store bound to it.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root %q: %w", root, err)
	}

	if err := os.MkdirAll(absoluteRoot, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root %q: %w", absoluteRoot, err)
	}

	return &FileStore{root: absoluteRoot, logger: logger}, nil
}

// Root returns the absolute directory the store is confined to.
func (store *FileStore) Root() string {
	return store.root
}

// resolve maps a relative path to its canonical form and absolute location.
func (store *FileStore) resolve(relativePath string) (string, string, error) {
	cleaned, err := CleanPath(relativePath)
	if err != nil {
		return "", "", err
	}

	absolute := filepath.Join(store.root, filepath.FromSlash(cleaned))

	// Lexical check already guarantees this; kept as a second fence against
	// platform specific separators.
	rel, err := filepath.Rel(store.root, absolute)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", ErrInvalidPath
	}

	return cleaned, absolute, nil
}

// Put writes content atomically: bytes land in a temporary file in the
// target directory and are renamed into place once fully synced.
func (store *FileStore) Put(ctx context.Context, relativePath string, content io.Reader) (string, error) {
	cleaned, absolute, err := store.resolve(relativePath)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	directory := filepath.Dir(absolute)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("blob: create directory for %s: %w", cleaned, err)
	}

	temp, err := os.CreateTemp(directory, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("blob: create temp file for %s: %w", cleaned, err)
	}
	tempName := temp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = temp.Close()
			_ = os.Remove(tempName)
		}
	}()

	if _, err := io.Copy(temp, content); err != nil {
		return "", fmt.Errorf("blob: write %s: %w", cleaned, err)
	}
	if err := temp.Sync(); err != nil {
		return "", fmt.Errorf("blob: sync %s: %w", cleaned, err)
	}
	if err := temp.Close(); err != nil {
		return "", fmt.Errorf("blob: close %s: %w", cleaned, err)
	}
	if err := os.Chmod(tempName, 0o644); err != nil {
		return "", fmt.Errorf("blob: chmod %s: %w", cleaned, err)
	}
	if err := os.Rename(tempName, absolute); err != nil {
		return "", fmt.Errorf("blob: rename into %s: %w", cleaned, err)
	}
	committed = true

	return cleaned, nil
}

// Delete removes the file. A missing file only produces a warning.
func (store *FileStore) Delete(ctx context.Context, relativePath string) error {
	cleaned, absolute, err := store.resolve(relativePath)
	if err != nil {
		return err
	}

	if err := os.Remove(absolute); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			store.logger.WarnContext(ctx, "blob_delete_missing", slog.String("path", cleaned))
			return nil
		}
		return fmt.Errorf("blob: delete %s: %w", cleaned, err)
	}

	return nil
}

// Exists reports whether a regular file is stored at relativePath.
func (store *FileStore) Exists(ctx context.Context, relativePath string) (bool, error) {
	_, absolute, err := store.resolve(relativePath)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(absolute)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// Walk visits every committed file below the root.
func (store *FileStore) Walk(ctx context.Context, fn func(Object) error) error {
	return filepath.WalkDir(store.root, func(absolute string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(store.root, absolute)
		if err != nil {
			return err
		}

		return fn(Object{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}
