package assetviewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"github.com/chalkpe/assetviewer/internal/batch"
	"github.com/chalkpe/assetviewer/internal/pathutil"
)

const defaultDestPerm = 0o755

// Result summarizes an export.
type Result struct {
	// Version is the exported manifest's identifier.
	Version string

	// ManifestDigest is the digest of the manifest bytes.
	ManifestDigest digest.Digest

	// ArchiveDigest is the digest of the compressed archive, when WithArchive is used.
	ArchiveDigest digest.Digest

	// Copied is the number of entries written.
	Copied int

	// Bytes is the total content written.
	Bytes int64

	// Skipped is the number of entries excluded by WithPrefix.
	Skipped int

	// Failures lists every entry not written, sorted by logical name.
	Failures []Failure
}

// Failed returns the number of failed entries.
func (r *Result) Failed() int { return len(r.Failures) }

// OK reports whether every selected entry was exported.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

// Exporter copies a version's objects out of a Store under their logical names.
// An Exporter is safe for concurrent use.
type Exporter struct {
	store    *Store
	workers  int
	logger   *slog.Logger
	progress ProgressFunc
	verify   bool
	archive  io.Writer
	level    int
	prefix   string
}

// NewExporter creates an Exporter reading from store.
func NewExporter(store *Store, opts ...ExportOption) *Exporter {
	e := &Exporter{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export opens storeRoot and exports version into destDir.
// See Exporter.Export.
func Export(ctx context.Context, storeRoot, version, destDir string, opts ...ExportOption) (*Result, error) {
	store, err := OpenStore(storeRoot)
	if err != nil {
		return nil, err
	}
	return NewExporter(store, opts...).Export(ctx, version, destDir)
}

// Export copies every object named by version's manifest to
// destDir/<logical name>, creating directories as needed and replacing
// existing files.
//
// A manifest that cannot be loaded is fatal: a *ManifestError is returned and
// nothing is copied. Per-entry problems (malformed records, unsafe names,
// missing objects, I/O errors) are recorded in Result.Failures and never stop
// the remaining entries.
//
// When ctx is cancelled, no new copies are started; the partial Result is
// returned together with ctx.Err().
func (e *Exporter) Export(ctx context.Context, version, destDir string) (*Result, error) {
	start := time.Now()
	log := e.logger.With(slog.String("version", version))
	e.report(ProgressEvent{Stage: StageLoading})

	m, err := e.store.LoadManifest(version)
	if err != nil {
		log.Error("load manifest", slog.Any("error", err))
		return nil, err
	}
	log.Debug("manifest loaded",
		slog.String("digest", m.Digest.String()),
		slog.Int("entries", m.Len()))

	res := &Result{Version: version, ManifestDigest: m.Digest}
	jobs, names := e.plan(m, res)
	total := len(jobs) + len(res.Failures)
	var done atomic.Int64
	for _, f := range res.Failures {
		log.Warn("skip entry", slog.String("name", f.LogicalName), slog.Any("error", f.Err))
		e.report(ProgressEvent{
			Stage:      StageCopying,
			Name:       f.LogicalName,
			Err:        f.Err,
			FilesDone:  int(done.Add(1)),
			FilesTotal: total,
		})
	}

	sink, finish, err := e.sink(destDir)
	if err != nil {
		log.Error("prepare destination", slog.Any("error", err))
		return nil, err
	}

	observer := func(job *batch.Job, written int64, err error) {
		name := names[job]
		if err != nil {
			log.Warn("copy failed", slog.String("name", name), slog.Any("error", err))
		} else {
			log.Debug("copied", slog.String("name", name), slog.Int64("bytes", written))
		}
		e.report(ProgressEvent{
			Stage:      StageCopying,
			Name:       name,
			Err:        err,
			FilesDone:  int(done.Add(1)),
			FilesTotal: total,
		})
	}
	proc := batch.NewProcessor(
		batch.WithWorkers(e.workers),
		batch.WithVerify(e.verify),
		batch.WithObserver(observer),
	)
	stats, procErr := proc.Process(ctx, jobs, sink)

	res.Copied = stats.Copied
	res.Bytes = stats.Bytes
	for _, f := range stats.Failures {
		res.Failures = append(res.Failures, Failure{LogicalName: names[f.Job], Kind: KindIO, Err: f.Err})
	}
	slices.SortFunc(res.Failures, func(a, b Failure) int {
		return strings.Compare(a.LogicalName, b.LogicalName)
	})

	finishErr := finish(res)
	e.report(ProgressEvent{Stage: StageDone, FilesDone: int(done.Load()), FilesTotal: total})
	log.Info("export finished",
		slog.Int("copied", res.Copied),
		slog.Int("failed", res.Failed()),
		slog.Int("skipped", res.Skipped),
		slog.Int64("bytes", res.Bytes),
		slog.Duration("elapsed", time.Since(start)))

	return res, errors.Join(procErr, finishErr)
}

// plan turns manifest records into copy jobs. Records that cannot be copied
// are added to res.Failures, as is every name after the first that cleans to
// an already planned destination. The returned map gives each job's logical name
// as written in the manifest.
func (e *Exporter) plan(m *Manifest, res *Result) ([]*batch.Job, map[*batch.Job]string) {
	prefix := pathutil.DirPrefix(e.prefix)
	jobs := make([]*batch.Job, 0, len(m.Entries))
	names := make(map[*batch.Job]string, len(m.Entries))
	seen := make(map[string]string, len(m.Entries))

	for _, name := range m.Names() {
		clean, cleanErr := pathutil.Clean(name)
		if !pathutil.HasPrefix(pathutil.Normalize(name), prefix) {
			res.Skipped++
			continue
		}
		if err, bad := m.Invalid[name]; bad {
			res.Failures = append(res.Failures, Failure{LogicalName: name, Kind: KindEntry, Err: err})
			continue
		}
		if cleanErr != nil {
			res.Failures = append(res.Failures, Failure{
				LogicalName: name,
				Kind:        KindEntry,
				Err:         fmt.Errorf("%w: %q", ErrUnsafeName, name),
			})
			continue
		}
		if first, dup := seen[clean]; dup {
			res.Failures = append(res.Failures, Failure{
				LogicalName: name,
				Kind:        KindEntry,
				Err:         fmt.Errorf("%w: %q is also written by %q", ErrDuplicateName, clean, first),
			})
			continue
		}
		entry := m.Entries[name]
		source, err := e.store.ObjectPath(entry.Hash)
		if err != nil {
			res.Failures = append(res.Failures, Failure{LogicalName: name, Kind: KindEntry, Err: err})
			continue
		}
		seen[clean] = name
		job := &batch.Job{Name: clean, Source: source, Hash: entry.Hash, Size: entry.Size}
		jobs = append(jobs, job)
		names[job] = name
	}
	return jobs, names
}

// sink builds the output sink and a finish func that flushes it into res.
func (e *Exporter) sink(destDir string) (batch.Sink, func(*Result) error, error) {
	if e.archive != nil {
		var opts []batch.ArchiveSinkOption
		if e.level > 0 {
			opts = append(opts, batch.WithLevel(zstd.EncoderLevelFromZstd(e.level)))
		}
		as, err := batch.NewArchiveSink(e.archive, opts...)
		if err != nil {
			return nil, nil, err
		}
		finish := func(res *Result) error {
			if err := as.Close(); err != nil {
				return fmt.Errorf("finish archive: %w", err)
			}
			res.ArchiveDigest = as.Digest()
			return nil
		}
		return as, finish, nil
	}

	if destDir == "" {
		return nil, nil, errors.New("assetviewer: empty destination directory")
	}
	if err := os.MkdirAll(destDir, defaultDestPerm); err != nil {
		return nil, nil, fmt.Errorf("create destination: %w", err)
	}
	return batch.NewFileSink(destDir), func(*Result) error { return nil }, nil
}

func (e *Exporter) report(ev ProgressEvent) {
	if e.progress != nil {
		e.progress(ev)
	}
}
