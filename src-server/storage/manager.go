// Package storage keeps uploaded assets under one base directory, laid out as
// {YYYYMM}/{random16}/{random12}.{ext}. Paths are fresh per asset and the
// directories of a deleted asset are pruned once empty.
package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parish/src-server/apperr"
)

const (
	DIR_TOKEN_LENGTH  = 16
	FILE_TOKEN_LENGTH = 12
	tokenAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type Manager struct {
	baseDir string
	now     func() time.Time
}

// NewManager creates the base directory when missing.
func NewManager(baseDir string) (*Manager, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, &apperr.StorageError{Op: "abs", Path: baseDir, Err: err}
	}
	if err := os.MkdirAll(abs, 0o777); err != nil {
		return nil, &apperr.StorageError{Op: "mkdir", Path: abs, Err: err}
	}
	return &Manager{baseDir: abs, now: time.Now}, nil
}

// SetClock replaces the clock used for the {YYYYMM} directory.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) BaseDir() string {
	return m.baseDir
}

// FullPath resolves rel inside the base directory and refuses anything escaping it.
func (m *Manager) FullPath(rel string) (string, error) {
	rel = filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(rel) {
		return "", &apperr.ValidationError{Field: "path", Msg: "path is outside the storage"}
	}
	return filepath.Join(m.baseDir, rel), nil
}

// AllocatePath creates a fresh directory and returns the relative path of a
// not yet existing file with the given extension (".webp" or "webp").
func (m *Manager) AllocatePath(ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	dirToken, err := randomToken(DIR_TOKEN_LENGTH)
	if err != nil {
		return "", fmt.Errorf("AllocatePath: %w", err)
	}
	fileToken, err := randomToken(FILE_TOKEN_LENGTH)
	if err != nil {
		return "", fmt.Errorf("AllocatePath: %w", err)
	}

	relDir := filepath.Join(m.now().Format("200601"), dirToken)
	fullDir := filepath.Join(m.baseDir, relDir)
	if err := os.MkdirAll(fullDir, 0o777); err != nil {
		return "", &apperr.StorageError{Op: "mkdir", Path: fullDir, Err: err}
	}
	name := fileToken
	if ext != "" {
		name += "." + ext
	}
	return filepath.ToSlash(filepath.Join(relDir, name)), nil
}

// WriteFile streams write into rel through a temporary file in the same
// directory; rel only appears once write and the rename both succeed.
// Errors returned by write are passed through untouched.
func (m *Manager) WriteFile(rel string, write func(w io.Writer) error) error {
	full, err := m.FullPath(rel)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".partial-*")
	if err != nil {
		return &apperr.StorageError{Op: "create", Path: full, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return &apperr.StorageError{Op: "write", Path: full, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o666); err != nil {
		slog.Warn("can't chmod stored file", "path", tmp.Name(), "error", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return &apperr.StorageError{Op: "rename", Path: full, Err: err}
	}
	committed = true
	return nil
}

// Store copies a generic upload, keeping its extension.
func (m *Manager) Store(upload Upload) (string, error) {
	if !upload.OK() {
		return "", &apperr.UploadError{Reason: "upload not ok", Err: upload.Err()}
	}
	src, err := upload.Open()
	if err != nil {
		return "", &apperr.UploadError{Reason: "can't open upload", Err: err}
	}
	defer src.Close()

	rel, err := m.AllocatePath(CleanExtension(upload.Name()))
	if err != nil {
		return "", err
	}
	if err := m.WriteFile(rel, func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return &apperr.StorageError{Op: "copy", Path: rel, Err: err}
		}
		return nil
	}); err != nil {
		m.Discard(rel)
		return "", err
	}
	return rel, nil
}

func (m *Manager) Exists(rel string) bool {
	full, err := m.FullPath(rel)
	if err != nil {
		return false
	}
	stat, err := os.Stat(full)
	return err == nil && !stat.IsDir()
}

func (m *Manager) Open(rel string) (*os.File, error) {
	full, err := m.FullPath(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &apperr.NotFoundError{Entity: "file", ID: rel}
	case err != nil:
		return nil, &apperr.StorageError{Op: "open", Path: full, Err: err}
	}
	return file, nil
}

// Delete removes the file if present and then prunes its now empty parent
// directories up to, not including, the base directory. Pruning stops at the
// first directory that is missing, not empty, or can't be removed, silently.
// Deleting a missing file is a no-op and touches nothing.
func (m *Manager) Delete(rel string) error {
	full, err := m.FullPath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &apperr.StorageError{Op: "remove", Path: full, Err: err}
	}
	m.prune(filepath.Dir(full))
	return nil
}

// Discard drops a path from AllocatePath whose write failed, whether or not
// a file was left behind.
func (m *Manager) Discard(rel string) {
	full, err := m.FullPath(rel)
	if err != nil {
		return
	}
	os.Remove(full)
	m.prune(filepath.Dir(full))
}

func (m *Manager) prune(dir string) {
	for ; m.isBelowBase(dir); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		slog.Debug("pruned empty storage directory", "dir", dir)
	}
}

func (m *Manager) isBelowBase(dir string) bool {
	return dir != m.baseDir && strings.HasPrefix(dir, m.baseDir+string(filepath.Separator))
}

// CleanExtension keeps a short lowercase alphanumeric extension of name, "bin" otherwise.
func CleanExtension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || len(ext) > 10 {
		return "bin"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "bin"
		}
	}
	return ext
}

// randomToken draws n characters of tokenAlphabet. Bytes from the last,
// incomplete alphabet cycle are skipped so every character is equally likely.
func randomToken(n int) (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)
	token := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(token) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("randomToken: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == n {
				break
			}
		}
	}
	return string(token), nil
}
