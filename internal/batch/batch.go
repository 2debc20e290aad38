// Package batch copies content-addressed objects into a sink using a bounded
// pool of workers.
package batch

import (
	"context"
	"crypto/sha1" //nolint:gosec // object names are SHA-1 content addresses
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for copy jobs.
var (
	// ErrSourceMissing is returned when a job's object file does not exist.
	ErrSourceMissing = errors.New("object not found")

	// ErrHashMismatch is returned when copied content does not match its hash.
	ErrHashMismatch = errors.New("hash verification failed")

	// ErrSizeMismatch is returned when copied content does not match its declared size.
	ErrSizeMismatch = errors.New("size verification failed")
)

// Job describes a single object-to-name copy.
type Job struct {
	// Name is the cleaned, slash-separated destination name.
	Name string

	// Source is the filesystem path of the object.
	Source string

	// Hash is the object's lowercase hex content address.
	Hash string

	// Size is the declared content size, or -1 when unknown.
	Size int64
}

// Failure records a job that could not be completed.
type Failure struct {
	Job *Job
	Err error
}

// Stats summarizes a Process call.
type Stats struct {
	Copied   int
	Bytes    int64
	Failures []Failure
}

// Observer is called once per finished job with the number of bytes written
// and the job's error, if any. It must be safe for concurrent calls.
type Observer func(job *Job, written int64, err error)

// Processor runs copy jobs against a Sink.
type Processor struct {
	workers  int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	verify   bool
	observer Observer
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers for parallel processing.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
// Values > 0 force a specific worker count.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithVerify enables size and hash verification of copied content.
func WithVerify(verify bool) ProcessorOption {
	return func(p *Processor) {
		p.verify = verify
	}
}

// WithObserver registers a callback for finished jobs.
func WithObserver(fn Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = fn
	}
}

// NewProcessor creates a new batch processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process copies every job into sink.
//
// A failing job never stops the others; failures are collected in the
// returned Stats sorted by name. Once ctx is done no new jobs are started,
// jobs already running are allowed to finish, and ctx.Err() is returned
// alongside the partial Stats.
func (p *Processor) Process(ctx context.Context, jobs []*Job, sink Sink) (Stats, error) {
	acc := &accumulator{}
	if len(jobs) == 0 {
		return acc.stats(), nil
	}

	workers := p.workerCount(len(jobs))
	if workers < 2 {
		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			p.run(job, sink, acc)
		}
		return acc.stats(), ctx.Err()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, job := range jobs {
		// Go blocks while the pool is full, so this is checked once per slot.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.run(job, sink, acc)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
	return acc.stats(), ctx.Err()
}

// run copies one job and records the outcome.
func (p *Processor) run(job *Job, sink Sink, acc *accumulator) {
	n, err := p.copyJob(job, sink)
	acc.add(job, n, err)
	if p.observer != nil {
		p.observer(job, n, err)
	}
}

// copyJob streams the object into a sink writer, verifying if requested.
func (p *Processor) copyJob(job *Job, sink Sink) (int64, error) {
	src, err := os.Open(job.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s: %w", ErrSourceMissing, job.Source, err)
		}
		return 0, fmt.Errorf("open object: %w", err)
	}
	defer src.Close()

	w, err := sink.Writer(job)
	if err != nil {
		return 0, err
	}

	var r io.Reader = src
	var hasher hash.Hash
	if p.verify && len(job.Hash) == hex.EncodedLen(sha1.Size) {
		hasher = sha1.New() //nolint:gosec // content address, not a security boundary
		r = io.TeeReader(src, hasher)
	}

	n, err := io.Copy(w, r)
	if err == nil && p.verify {
		err = verify(job, n, hasher)
	}
	if err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("copy %s: %w", job.Source, err)
	}

	if err := w.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func verify(job *Job, n int64, hasher hash.Hash) error {
	if job.Size >= 0 && n != job.Size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, job.Size)
	}
	if hasher != nil {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(sum, job.Hash) {
			return fmt.Errorf("%w: got %s", ErrHashMismatch, sum)
		}
	}
	return nil
}

// workerCount determines the number of workers to use for n jobs.
func (p *Processor) workerCount(n int) int {
	if n < 2 || p.workers < 0 {
		return 1
	}
	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return min(workers, n)
}

// accumulator collects job outcomes from concurrent workers.
type accumulator struct {
	mu       sync.Mutex
	copied   int
	bytes    int64
	failures []Failure
}

func (a *accumulator) add(job *Job, n int64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.failures = append(a.failures, Failure{Job: job, Err: err})
		return
	}
	a.copied++
	a.bytes += n
}

func (a *accumulator) stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	failures := slices.Clone(a.failures)
	slices.SortFunc(failures, func(x, y Failure) int {
		return strings.Compare(x.Job.Name, y.Job.Name)
	})
	return Stats{Copied: a.copied, Bytes: a.bytes, Failures: failures}
}
