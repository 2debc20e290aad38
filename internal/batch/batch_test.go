package batch

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chalkpe/assetviewer/internal/pathutil"
	"github.com/chalkpe/assetviewer/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newJobs(t *testing.T, store *testutil.Store, assets map[string][]byte) []*Job {
	t.Helper()
	jobs := make([]*Job, 0, len(assets))
	for name, content := range assets {
		hash := store.PutObject(content)
		jobs = append(jobs, &Job{
			Name:   name,
			Source: store.ObjectPath(hash),
			Hash:   hash,
			Size:   int64(len(content)),
		})
	}
	return jobs
}

func TestProcessCopiesAll(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{-1, 0, 1, 4, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			store := testutil.NewStore(t)
			assets := map[string][]byte{
				"icons/icon_16x16.png":           []byte("icon16"),
				"icons/icon_32x32.png":           []byte("icon32"),
				"minecraft/lang/en_us.json":      []byte(`{"a":"b"}`),
				"minecraft/sounds/ambient/1.ogg": bytes.Repeat([]byte{1}, 4096),
				"pack.mcmeta":                    []byte("{}"),
			}
			jobs := newJobs(t, store, assets)
			dest := t.TempDir()

			stats, err := NewProcessor(WithWorkers(workers)).Process(context.Background(), jobs, NewFileSink(dest))
			require.NoError(t, err)
			assert.Equal(t, len(assets), stats.Copied)
			assert.Empty(t, stats.Failures)

			var total int64
			for _, content := range assets {
				total += int64(len(content))
			}
			assert.Equal(t, total, stats.Bytes)
			assert.Equal(t, assets, testutil.ReadTree(t, dest))
		})
	}
}

func TestProcessIsolatesFailures(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	jobs := newJobs(t, store, map[string][]byte{
		"a.txt": []byte("a"),
		"b.txt": []byte("b"),
		"c.txt": []byte("c"),
	})
	jobs = append(jobs, &Job{
		Name:   "missing.txt",
		Source: store.ObjectPath("ffffffffff"),
		Hash:   "ffffffffff",
		Size:   -1,
	})
	dest := t.TempDir()

	stats, err := NewProcessor(WithWorkers(2)).Process(context.Background(), jobs, NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Copied)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "missing.txt", stats.Failures[0].Job.Name)
	assert.ErrorIs(t, stats.Failures[0].Err, ErrSourceMissing)
	assert.ErrorIs(t, stats.Failures[0].Err, fs.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dest, "missing.txt"))
}

func TestProcessFailuresSorted(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	var jobs []*Job
	for _, name := range []string{"z", "m", "a", "q"} {
		jobs = append(jobs, &Job{Name: name, Source: store.ObjectPath("00" + name), Size: -1})
	}

	stats, err := NewProcessor(WithWorkers(4)).Process(context.Background(), jobs, NewFileSink(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, stats.Failures, 4)
	var names []string
	for _, f := range stats.Failures {
		names = append(names, f.Job.Name)
	}
	assert.Equal(t, []string{"a", "m", "q", "z"}, names)
}

func TestProcessOverwrites(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	jobs := newJobs(t, store, map[string][]byte{"lang/en_us.json": []byte("fresh")})
	dest := t.TempDir()
	existing := filepath.Join(dest, "lang", "en_us.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("stale content that is longer"), 0o644))

	stats, err := NewProcessor().Process(context.Background(), jobs, NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)

	info, err := os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(defaultFilePerm), info.Mode().Perm())
}

func TestProcessVerify(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	good := []byte("good content")
	goodHash := store.PutObject(good)

	corruptHash := testutil.Hash([]byte("expected content"))
	store.PutObjectAs(corruptHash, []byte("tampered content"))

	jobs := []*Job{
		{Name: "good.txt", Source: store.ObjectPath(goodHash), Hash: goodHash, Size: int64(len(good))},
		{Name: "corrupt.txt", Source: store.ObjectPath(corruptHash), Hash: corruptHash, Size: 16},
		{Name: "short.txt", Source: store.ObjectPath(goodHash), Hash: goodHash, Size: 3},
	}
	dest := t.TempDir()

	stats, err := NewProcessor(WithVerify(true), WithWorkers(-1)).Process(context.Background(), jobs, NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	require.Len(t, stats.Failures, 2)
	assert.Equal(t, "corrupt.txt", stats.Failures[0].Job.Name)
	assert.ErrorIs(t, stats.Failures[0].Err, ErrHashMismatch)
	assert.Equal(t, "short.txt", stats.Failures[1].Job.Name)
	assert.ErrorIs(t, stats.Failures[1].Err, ErrSizeMismatch)

	// Failed verification must not leave files or temp files behind.
	assert.Equal(t, map[string][]byte{"good.txt": good}, testutil.ReadTree(t, dest))
}

func TestProcessWithoutVerifyIgnoresSize(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	content := []byte("content")
	hash := store.PutObject(content)
	jobs := []*Job{{Name: "a", Source: store.ObjectPath(hash), Hash: hash, Size: 999}}

	stats, err := NewProcessor().Process(context.Background(), jobs, NewFileSink(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	assert.Empty(t, stats.Failures)
}

func TestProcessObserver(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	jobs := newJobs(t, store, map[string][]byte{"a": []byte("a"), "b": []byte("bb")})
	jobs = append(jobs, &Job{Name: "c", Source: store.ObjectPath("cccc"), Size: -1})

	var mu sync.Mutex
	seen := map[string]error{}
	observer := func(job *Job, _ int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Name] = err
	}

	_, err := NewProcessor(WithWorkers(3), WithObserver(observer)).Process(context.Background(), jobs, NewFileSink(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.NoError(t, seen["a"])
	assert.NoError(t, seen["b"])
	assert.ErrorIs(t, seen["c"], ErrSourceMissing)
}

func TestProcessCancelled(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	assets := make(map[string][]byte)
	for i := range 50 {
		assets[fmt.Sprintf("f/%02d", i)] = []byte(fmt.Sprintf("content %d", i))
	}
	jobs := newJobs(t, store, assets)

	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	sink := &slowSink{inner: NewFileSink(t.TempDir()), delay: 5 * time.Millisecond, onWrite: func() {
		if started.Add(1) == 3 {
			cancel()
		}
	}}

	stats, err := NewProcessor(WithWorkers(2)).Process(ctx, jobs, sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, stats.Copied, len(jobs))
	assert.Empty(t, stats.Failures)
}

func TestProcessCancelledSerial(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	jobs := newJobs(t, store, map[string][]byte{"a": []byte("a"), "b": []byte("b")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := NewProcessor(WithWorkers(-1)).Process(ctx, jobs, NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Copied)
}

func TestProcessEmpty(t *testing.T) {
	t.Parallel()

	stats, err := NewProcessor().Process(context.Background(), nil, NewFileSink(t.TempDir()))
	require.NoError(t, err)
	assert.Zero(t, stats.Copied)
	assert.Empty(t, stats.Failures)
}

func TestWorkerCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, NewProcessor(WithWorkers(-1)).workerCount(10))
	assert.Equal(t, 1, NewProcessor(WithWorkers(8)).workerCount(1))
	assert.Equal(t, 3, NewProcessor(WithWorkers(8)).workerCount(3))
	assert.Equal(t, 8, NewProcessor(WithWorkers(8)).workerCount(100))
	assert.GreaterOrEqual(t, NewProcessor().workerCount(100), 1)
}

func TestArchiveSink(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	assets := map[string][]byte{
		"icons/icon.png":            []byte("png bytes"),
		"minecraft/lang/en_us.json": []byte(`{"k":"v"}`),
		"pack.mcmeta":               []byte("{}"),
	}
	jobs := newJobs(t, store, assets)

	var out bytes.Buffer
	sink, err := NewArchiveSink(&out, WithModTime(time.Unix(0, 0)), WithLevel(zstd.SpeedBestCompression))
	require.NoError(t, err)

	stats, err := NewProcessor(WithWorkers(3)).Process(context.Background(), jobs, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, 3, stats.Copied)
	assert.Equal(t, "sha256", sink.Digest().Algorithm().String())
	require.NoError(t, sink.Digest().Validate())

	dec, err := zstd.NewReader(&out)
	require.NoError(t, err)
	defer dec.Close()

	got := map[string][]byte{}
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		got[hdr.Name] = data
	}
	assert.Equal(t, assets, got)
}

func TestFileSinkRejectsEscapingNames(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore(t)
	hash := store.PutObject([]byte("x"))
	root := t.TempDir()
	dest := filepath.Join(root, "dest")
	jobs := []*Job{
		{Name: "../outside.txt", Source: store.ObjectPath(hash), Hash: hash, Size: 1},
		{Name: "inside.txt", Source: store.ObjectPath(hash), Hash: hash, Size: 1},
	}

	sink := NewFileSink(dest)
	p, err := sink.Path(jobs[1])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "inside.txt"), p)

	stats, err := NewProcessor(WithWorkers(-1)).Process(context.Background(), jobs, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Copied)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "../outside.txt", stats.Failures[0].Job.Name)
	assert.ErrorIs(t, stats.Failures[0].Err, pathutil.ErrUnsafe)
	assert.NoFileExists(t, filepath.Join(root, "outside.txt"))
}

func TestArchiveSinkClosed(t *testing.T) {
	t.Parallel()

	sink, err := NewArchiveSink(io.Discard)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	w, err := sink.Writer(&Job{Name: "late"})
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Commit(), ErrArchiveClosed)
}

// slowSink delays each writer so cancellation lands mid-run.
type slowSink struct {
	inner   Sink
	delay   time.Duration
	onWrite func()
}

func (s *slowSink) Writer(job *Job) (Committer, error) {
	s.onWrite()
	time.Sleep(s.delay)
	return s.inner.Writer(job)
}
