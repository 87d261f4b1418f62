package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/nexus-downloader/internal/merge"
	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/platform"
	"github.com/ytget/nexus-downloader/internal/transport"
)

// Downloader defaults
const (
	DefaultWorkers = 6
	tempDirPattern = "nexus-segments-*"
)

// JobState is the state of one segmented download run
type JobState int

const (
	StateResolving JobState = iota
	StateFetching
	StateMerging
	StateDone
	StateFailed
)

// String returns string representation of the state
func (s JobState) String() string {
	switch s {
	case StateResolving:
		return "Resolving"
	case StateFetching:
		return "Fetching"
	case StateMerging:
		return "Merging"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Progress is a snapshot reported while a job runs
type Progress struct {
	State         JobState
	SegmentsDone  int
	SegmentsTotal int
	BytesDone     int64
}

// Options configures a Downloader
type Options struct {
	Workers           int
	TempDir           string // parent for per-job temp dirs; "" = os.TempDir()
	Retries           int
	RetryDelay        time.Duration
	RequestsPerSecond int
	ManifestTimeout   time.Duration
	Throttle          *transport.Throttle
}

// Downloader orchestrates manifest resolution, the segment worker pool and the muxer
type Downloader struct {
	source     *Source
	fetcher    *Fetcher
	clients    ClientFactory
	identities IdentitySource
	muxer      merge.Muxer
	workers    int
	tempRoot   string
	logger     *log.Entry
}

// NewDownloader creates a downloader
func NewDownloader(clients ClientFactory, identities IdentitySource, muxer merge.Muxer, opts Options) *Downloader {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Downloader{
		source: NewSource(clients, identities, opts.ManifestTimeout),
		fetcher: NewFetcher(FetcherOptions{
			Retries:           opts.Retries,
			RetryDelay:        opts.RetryDelay,
			RequestsPerSecond: opts.RequestsPerSecond,
			Throttle:          opts.Throttle,
		}),
		clients:    clients,
		identities: identities,
		muxer:      muxer,
		workers:    workers,
		tempRoot:   opts.TempDir,
		logger:     log.WithField("component", "hls"),
	}
}

// Workers returns the per-job worker pool size
func (d *Downloader) Workers() int {
	return d.workers
}

// NewJob prepares a download of manifestURL into output. Nothing happens
// until Run is called.
func (d *Downloader) NewJob(manifestURL, output string) *Job {
	return &Job{
		d:      d,
		url:    manifestURL,
		output: output,
		state:  StateResolving,
		logger: d.logger.WithField("url", manifestURL),
	}
}

// Download runs a job to completion
func (d *Downloader) Download(ctx context.Context, manifestURL, output string) error {
	job := d.NewJob(manifestURL, output)
	if err := job.Run(ctx, nil); err != nil {
		if ctx.Err() != nil {
			_ = job.Cleanup()
		}
		return err
	}
	return nil
}

// Job is one resumable segmented download. Cancelling the context passed to
// Run pauses it: fetched segments are kept and a later Run fetches only the rest.
type Job struct {
	d      *Downloader
	url    string
	output string
	logger *log.Entry

	mu       sync.Mutex
	state    JobState
	running  bool
	tempDir  string
	segments []*model.SegmentDescriptor

	fetched   atomic.Int64
	bytesDone atomic.Int64
	fetches   atomic.Int64
	reportMu  sync.Mutex
}

// State returns the current job state
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Output returns the output file path
func (j *Job) Output() string {
	return j.output
}

// FetchCount returns the number of segment fetches started so far
func (j *Job) FetchCount() int64 {
	return j.fetches.Load()
}

// Segments returns a copy of the segment descriptors. Not safe while Run is active.
func (j *Job) Segments() []model.SegmentDescriptor {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]model.SegmentDescriptor, len(j.segments))
	for i, seg := range j.segments {
		out[i] = *seg
	}
	return out
}

// TempDir returns the job's temporary segment directory ("" before resolution)
func (j *Job) TempDir() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.tempDir
}

// Run executes the job until it is done, fails, or ctx is cancelled.
// report may be nil; calls to it are serialized.
func (j *Job) Run(ctx context.Context, report func(Progress)) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return model.ErrJobBusy
	}
	switch j.state {
	case StateDone:
		j.mu.Unlock()
		return nil
	case StateFailed:
		j.resetLocked()
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	if report == nil {
		report = func(Progress) {}
	}
	emit := func() {
		j.reportMu.Lock()
		defer j.reportMu.Unlock()
		report(j.progress())
	}

	if err := j.resolve(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return j.fail(err)
	}
	emit()

	if err := j.fetchPending(ctx, emit); err != nil {
		if ctx.Err() != nil {
			j.logger.Debug("job paused")
			return ctx.Err()
		}
		return j.fail(err)
	}

	j.setState(StateMerging)
	emit()
	if err := j.merge(ctx); err != nil {
		if ctx.Err() != nil {
			j.setState(StateFetching)
			return ctx.Err()
		}
		return j.fail(err)
	}

	j.setState(StateDone)
	if err := j.Cleanup(); err != nil {
		j.logger.WithError(err).Warn("failed to remove temporary files")
	}
	emit()
	j.logger.WithField("output", j.output).Info("stream downloaded")
	return nil
}

// Cleanup removes the temporary segment files and the concat list
func (j *Job) Cleanup() error {
	j.mu.Lock()
	dir := j.tempDir
	j.tempDir = ""
	for _, seg := range j.segments {
		if seg.Status == model.SegmentFetched {
			seg.Status = model.SegmentPending
		}
	}
	j.mu.Unlock()

	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

func (j *Job) resolve(ctx context.Context) error {
	j.mu.Lock()
	resolved := j.segments != nil && j.tempDir != ""
	j.mu.Unlock()
	if resolved {
		j.setState(StateFetching)
		return nil
	}

	j.setState(StateResolving)
	segments, err := j.d.source.Fetch(ctx, j.url)
	if err != nil {
		return err
	}

	root := j.d.tempRoot
	if root != "" {
		if err := platform.CreateDirectoryIfNotExists(root); err != nil {
			return fmt.Errorf("failed to create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, tempDirPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	for _, seg := range segments {
		seg.LocalPath = filepath.Join(dir, SegmentFileName(seg.Index))
	}

	j.mu.Lock()
	j.segments = segments
	j.tempDir = dir
	j.state = StateFetching
	j.mu.Unlock()
	j.fetched.Store(0)
	j.bytesDone.Store(0)
	return nil
}

func (j *Job) fetchPending(ctx context.Context, emit func()) error {
	j.mu.Lock()
	pending := model.PendingSegments(j.segments)
	j.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.d.workers)

	for _, seg := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			client := j.d.clients.NewClient(j.d.identities.SampleNext())
			defer client.CloseIdleConnections()

			j.fetches.Inc()
			if _, err := j.d.fetcher.fetch(gctx, seg, client, func(n int64) { j.bytesDone.Add(n) }); err != nil {
				return err
			}
			j.fetched.Inc()
			emit()
			return nil
		})
	}
	return g.Wait()
}

func (j *Job) merge(ctx context.Context) error {
	j.mu.Lock()
	dir := j.tempDir
	files := make([]string, len(j.segments))
	for _, seg := range j.segments {
		files[seg.Index] = seg.LocalPath
	}
	j.mu.Unlock()

	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(j.output)); err != nil {
		return &model.MergeError{Output: j.output, Err: err}
	}
	listFile := filepath.Join(dir, merge.ConcatListName)
	if err := merge.WriteConcatList(listFile, files); err != nil {
		return &model.MergeError{Output: j.output, Err: err}
	}

	if err := j.d.muxer.Merge(ctx, listFile, j.output); err != nil {
		var mergeErr *model.MergeError
		if !errors.As(err, &mergeErr) {
			err = &model.MergeError{Output: j.output, Err: err}
		}
		return err
	}
	if _, err := os.Stat(j.output); err != nil {
		return &model.MergeError{Output: j.output, Err: fmt.Errorf("output file missing: %w", err)}
	}
	return nil
}

func (j *Job) fail(err error) error {
	j.setState(StateFailed)
	if cerr := j.Cleanup(); cerr != nil {
		j.logger.WithError(cerr).Warn("failed to remove temporary files")
	}
	j.logger.WithError(err).Error("stream download failed")
	return err
}

func (j *Job) setState(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) resetLocked() {
	j.segments = nil
	j.state = StateResolving
	j.fetched.Store(0)
	j.bytesDone.Store(0)
}

func (j *Job) progress() Progress {
	j.mu.Lock()
	state := j.state
	total := len(j.segments)
	j.mu.Unlock()
	return Progress{
		State:         state,
		SegmentsDone:  int(j.fetched.Load()),
		SegmentsTotal: total,
		BytesDone:     j.bytesDone.Load(),
	}
}
