package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chalkpe/assetviewer/internal/pathutil"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// FileSink writes objects into a directory tree with atomic writes.
//
// Files are written to a temporary file in the same directory,
// then renamed to the final path on Commit. This ensures that
// partially written files are never visible at the final path,
// and that existing files are replaced whole.
type FileSink struct {
	destDir string
}

// NewFileSink creates a FileSink that writes to destDir.
//
// Parent directories are created automatically as needed.
func NewFileSink(destDir string) *FileSink {
	return &FileSink{destDir: destDir}
}

// Path returns the destination path for a job. Names that would escape
// the destination directory are rejected with pathutil.ErrUnsafe.
func (s *FileSink) Path(job *Job) (string, error) {
	return pathutil.Join(s.destDir, job.Name)
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *FileSink) Writer(job *Job) (Committer, error) {
	destPath, err := s.Path(job)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.Name, err)
	}

	// MkdirAll treats a directory created concurrently by another worker as success.
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".asset-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		destPath: destPath,
		tempFile: tempFile,
		perm:     defaultFilePerm,
	}, nil
}

// fileCommitter writes to a temp file and renames on Commit.
type fileCommitter struct {
	destPath string
	tempFile *os.File
	perm     os.FileMode
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file, applies permissions, and renames to final path.
func (c *fileCommitter) Commit() error {
	tempPath := c.tempFile.Name()

	if err := c.tempFile.Close(); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	// CreateTemp uses 0600.
	if err := os.Chmod(tempPath, c.perm); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tempPath, c.destPath); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}

	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	tempPath := c.tempFile.Name()
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return os.Remove(tempPath)
}
