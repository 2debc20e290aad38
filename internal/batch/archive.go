package batch

import (
	"archive/tar"
	"bytes"
	_ "crypto/sha256" // registers digest.Canonical
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// ErrArchiveClosed is returned when committing to a closed ArchiveSink.
var ErrArchiveClosed = errors.New("archive closed")

// ArchiveSink writes objects as regular files of a zstd-compressed tar stream.
//
// Each object is buffered in memory until Commit, then written as a single
// tar entry while holding the sink lock, so concurrent workers never
// interleave entry bytes.
type ArchiveSink struct {
	mu       sync.Mutex
	tw       *tar.Writer
	enc      *zstd.Encoder
	digester digest.Digester
	modTime  time.Time
	closed   bool
}

// ArchiveSinkOption configures an ArchiveSink.
type ArchiveSinkOption func(*archiveConfig)

type archiveConfig struct {
	level   zstd.EncoderLevel
	modTime time.Time
}

// WithLevel sets the zstd encoder level.
func WithLevel(level zstd.EncoderLevel) ArchiveSinkOption {
	return func(c *archiveConfig) {
		c.level = level
	}
}

// WithModTime sets the modification time recorded for every entry.
func WithModTime(t time.Time) ArchiveSinkOption {
	return func(c *archiveConfig) {
		c.modTime = t
	}
}

// NewArchiveSink creates an ArchiveSink writing to w.
// Close must be called to flush the archive.
func NewArchiveSink(w io.Writer, opts ...ArchiveSinkOption) (*ArchiveSink, error) {
	cfg := archiveConfig{
		level:   zstd.SpeedDefault,
		modTime: time.Now(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	digester := digest.Canonical.Digester()
	enc, err := zstd.NewWriter(io.MultiWriter(w, digester.Hash()), zstd.WithEncoderLevel(cfg.level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &ArchiveSink{
		tw:       tar.NewWriter(enc),
		enc:      enc,
		digester: digester,
		modTime:  cfg.modTime,
	}, nil
}

// Writer returns a Committer that buffers content and appends it to the
// archive on Commit.
func (s *ArchiveSink) Writer(job *Job) (Committer, error) {
	return &archiveCommitter{sink: s, name: job.Name}, nil
}

// Close finishes the tar stream and flushes the encoder.
// It does not close the underlying writer.
func (s *ArchiveSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tw.Close(); err != nil {
		_ = s.enc.Close() //nolint:errcheck // tar error takes precedence
		return fmt.Errorf("close tar: %w", err)
	}
	if err := s.enc.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return nil
}

// Digest returns the digest of the compressed archive bytes.
// It is only meaningful after Close.
func (s *ArchiveSink) Digest() digest.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digester.Digest()
}

func (s *ArchiveSink) append(name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrArchiveClosed
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     defaultFilePerm,
		Size:     int64(len(content)),
		ModTime:  s.modTime,
		Format:   tar.FormatPAX,
	}
	if err := s.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := s.tw.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

type archiveCommitter struct {
	sink *ArchiveSink
	name string
	buf  bytes.Buffer
}

// Write implements io.Writer.
func (c *archiveCommitter) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Commit appends the buffered content to the archive.
func (c *archiveCommitter) Commit() error {
	return c.sink.append(c.name, c.buf.Bytes())
}

// Discard drops the buffered content.
func (c *archiveCommitter) Discard() error {
	c.buf.Reset()
	return nil
}
