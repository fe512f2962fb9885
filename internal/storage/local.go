package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// LocalFileStore writes uploads below a base directory on an afero filesystem.
type LocalFileStore struct {
	fs      afero.Fs
	baseDir string
	logger  zerolog.Logger
}

// NewLocalFileStore constructs a store rooted at baseDir. A nil fs uses the OS filesystem.
func NewLocalFileStore(fs afero.Fs, baseDir string, logger zerolog.Logger) *LocalFileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(baseDir) == "" {
		baseDir = "uploads"
	}
	return &LocalFileStore{
		fs:      fs,
		baseDir: filepath.Clean(baseDir),
		logger:  logger.With().Str("component", "local_file_store").Logger(),
	}
}

// Save writes reader to name relative to the base directory and returns the stored path.
func (s *LocalFileStore) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	file, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open upload file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = s.fs.Remove(target)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}

	s.logger.Debug().Str("path", target).Msg("file stored")
	return target, nil
}

// Delete removes a file previously returned by Save.
func (s *LocalFileStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Clean(location)
	if !s.within(target) {
		return fmt.Errorf("location %q is outside the upload directory", location)
	}
	if err := s.fs.Remove(target); err != nil {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

func (s *LocalFileStore) resolve(name string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), nil
}

func (s *LocalFileStore) within(target string) bool {
	rel, err := filepath.Rel(s.baseDir, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
