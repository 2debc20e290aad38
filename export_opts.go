package assetviewer

import (
	"io"
	"log/slog"
)

// ExportOption configures an Exporter.
type ExportOption func(*Exporter)

// WithWorkers sets the number of concurrent copies.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
// Values > 0 force a specific worker count.
func WithWorkers(n int) ExportOption {
	return func(e *Exporter) {
		e.workers = n
	}
}

// WithLogger sets the logger for export diagnostics.
// By default, logs are discarded.
func WithLogger(logger *slog.Logger) ExportOption {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) ExportOption {
	return func(e *Exporter) {
		e.progress = fn
	}
}

// WithVerify checks each copied object's size and SHA-1 against its entry.
// A mismatching copy is discarded and reported as a failure.
// By default, content is copied without verification.
func WithVerify(verify bool) ExportOption {
	return func(e *Exporter) {
		e.verify = verify
	}
}

// WithArchive writes the export as a zstd-compressed tar stream to w instead
// of a directory tree. The destination directory is ignored. w is not closed.
func WithArchive(w io.Writer) ExportOption {
	return func(e *Exporter) {
		e.archive = w
	}
}

// WithCompressionLevel sets the zstd level used by WithArchive, on the
// zstd 1-22 scale. Zero or less keeps the encoder default.
func WithCompressionLevel(level int) ExportOption {
	return func(e *Exporter) {
		e.level = level
	}
}

// WithPrefix restricts the export to logical names under prefix.
// An empty prefix exports everything.
func WithPrefix(prefix string) ExportOption {
	return func(e *Exporter) {
		e.prefix = prefix
	}
}
