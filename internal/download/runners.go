package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/hls"
	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/platform"
	"github.com/ytget/nexus-downloader/internal/transport"
)

// Runner defaults
const (
	StreamOutputExt     = ".mp4"
	RawStreamOutputExt  = ".ts"
	directRetries       = 1
	directRetryDelay    = 2 * time.Second
	reportInterval      = 200 * time.Millisecond
	maxCatalogSize      = 64 << 20
	partialOutputSuffix = ".part"
)

// outputClaims keeps derived output paths unique across all running tasks
// until their files exist
var outputClaims = platform.NewPathClaims()

// outputPath returns the task's output path or claims a derived one inside
// dir. claimed is empty when the task carried its own path.
func outputPath(task model.DownloadTask, dir, ext string, now time.Time) (output, claimed string) {
	if task.OutputPath != "" {
		return task.OutputPath, ""
	}
	name := platform.DeriveOutputName(task.Source, now)
	if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	output = outputClaims.Claim(filepath.Join(dir, name))
	return output, output
}

// pathClaim releases a claimed output path once
type pathClaim string

func (c *pathClaim) release() {
	if *c != "" {
		outputClaims.Release(string(*c))
		*c = ""
	}
}

// StreamRunner runs segmented-stream tasks through an hls.Downloader
type StreamRunner struct {
	downloader *hls.Downloader
	outputDir  string
	ext        string
	now        func() time.Time
}

// NewStreamRunner creates a runner writing merged streams into outputDir
func NewStreamRunner(d *hls.Downloader, outputDir string) *StreamRunner {
	return &StreamRunner{downloader: d, outputDir: outputDir, ext: StreamOutputExt, now: time.Now}
}

// SetOutputExt sets the extension of derived output names, e.g. RawStreamOutputExt
// when segments are joined without remuxing
func (r *StreamRunner) SetOutputExt(ext string) {
	r.ext = ext
}

// Prepare implements Runner
func (r *StreamRunner) Prepare(task model.DownloadTask) (Job, error) {
	output, claimed := outputPath(task, r.outputDir, r.ext, r.now())
	return &streamJob{job: r.downloader.NewJob(task.Source, output), claim: pathClaim(claimed)}, nil
}

type streamJob struct {
	job   *hls.Job
	claim pathClaim
}

func (j *streamJob) Run(ctx context.Context, report func(Update)) (Result, error) {
	err := j.job.Run(ctx, func(p hls.Progress) {
		u := Update{
			BytesDone:     p.BytesDone,
			SegmentsDone:  p.SegmentsDone,
			SegmentsTotal: p.SegmentsTotal,
		}
		// Extrapolate the total from the mean size of fetched segments
		if p.SegmentsDone > 0 && p.SegmentsTotal > 0 {
			total := p.BytesDone * int64(p.SegmentsTotal) / int64(p.SegmentsDone)
			u.BytesTotal = &total
		}
		report(u)
	})
	if err != nil {
		return Result{}, err
	}
	j.claim.release()
	return Result{OutputPath: j.job.Output()}, nil
}

func (j *streamJob) Cleanup() error {
	defer j.claim.release()
	return j.job.Cleanup()
}

// DirectRunner runs direct tasks: one URL streamed to one file
type DirectRunner struct {
	clients    hls.ClientFactory
	identities hls.IdentitySource
	throttle   *transport.Throttle
	outputDir  string
	retryDelay time.Duration
	now        func() time.Time
}

// NewDirectRunner creates a direct transfer runner sharing throttle
func NewDirectRunner(clients hls.ClientFactory, identities hls.IdentitySource, throttle *transport.Throttle, outputDir string) *DirectRunner {
	return &DirectRunner{
		clients:    clients,
		identities: identities,
		throttle:   throttle,
		outputDir:  outputDir,
		retryDelay: directRetryDelay,
		now:        time.Now,
	}
}

// Prepare implements Runner
func (r *DirectRunner) Prepare(task model.DownloadTask) (Job, error) {
	output, claimed := outputPath(task, r.outputDir, "", r.now())
	return &directJob{
		r:      r,
		source: task.Source,
		output: output,
		claim:  pathClaim(claimed),
		logger: log.WithFields(log.Fields{"task": task.ID, "url": task.Source}),
	}, nil
}

type directJob struct {
	r      *DirectRunner
	source string
	output string
	claim  pathClaim
	logger *log.Entry
}

// Run downloads with retry logic
func (j *directJob) Run(ctx context.Context, report func(Update)) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= directRetries; attempt++ {
		if attempt > 0 {
			// Backoff delay
			select {
			case <-time.After(j.r.retryDelay):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
			j.logger.WithField("attempt", attempt+1).Info("retrying download")
		}

		err := j.fetch(ctx, report)
		if err == nil {
			j.claim.release()
			return Result{OutputPath: j.output}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		j.logger.WithError(err).WithField("attempt", attempt+1).Warn("download attempt failed")
	}
	return Result{}, lastErr
}

func (j *directJob) fetch(ctx context.Context, report func(Update)) error {
	u, err := hls.SourceURL(j.source)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	client := j.r.clients.NewClient(j.r.identities.SampleNext())
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var total *int64
	if resp.ContentLength > 0 {
		n := resp.ContentLength
		total = &n
	}

	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(j.output)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	partPath := j.output + partialOutputSuffix
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	pw := &progressWriter{w: out, total: total, report: report}
	_, err = io.Copy(pw, j.r.throttle.Reader(ctx, resp.Body))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return err
	}
	pw.flush()

	if err := os.Rename(partPath, j.output); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to finalize output file: %w", err)
	}
	return nil
}

func (j *directJob) Cleanup() error {
	defer j.claim.release()
	err := os.Remove(j.output + partialOutputSuffix)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// progressWriter reports written bytes at most every reportInterval
type progressWriter struct {
	w        io.Writer
	done     int64
	total    *int64
	report   func(Update)
	reported time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if time.Since(p.reported) >= reportInterval {
		p.flush()
	}
	return n, err
}

func (p *progressWriter) flush() {
	p.reported = time.Now()
	p.report(Update{BytesDone: p.done, BytesTotal: p.total})
}

// CatalogRunner runs catalog-import tasks: M3U catalogs or xtream:// sources
type CatalogRunner struct {
	clients    hls.ClientFactory
	identities hls.IdentitySource
}

// NewCatalogRunner creates a catalog import runner
func NewCatalogRunner(clients hls.ClientFactory, identities hls.IdentitySource) *CatalogRunner {
	return &CatalogRunner{clients: clients, identities: identities}
}

// Prepare implements Runner
func (r *CatalogRunner) Prepare(task model.DownloadTask) (Job, error) {
	return &catalogJob{r: r, source: task.Source}, nil
}

// ImportCatalog fetches and parses a catalog source synchronously
func (r *CatalogRunner) ImportCatalog(ctx context.Context, source string) ([]model.ChannelEntry, error) {
	client := r.clients.NewClient(r.identities.SampleNext())
	defer client.CloseIdleConnections()

	if platform.IsXtreamSource(source) {
		src, err := platform.ParseXtreamSource(source)
		if err != nil {
			return nil, err
		}
		return platform.NewXtreamClient(src, client).Channels(ctx)
	}

	u, err := hls.SourceURL(source)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: source, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.ManifestFetchError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}
	content := string(body)
	channels := platform.ParseM3U(content, u.String())
	if len(channels) == 0 && !strings.Contains(content, platform.M3UHeader) {
		return nil, &model.ManifestParseError{URL: u.String(), Reason: "not an M3U catalog"}
	}
	return channels, nil
}

type catalogJob struct {
	r      *CatalogRunner
	source string
}

func (j *catalogJob) Run(ctx context.Context, report func(Update)) (Result, error) {
	channels, err := j.r.ImportCatalog(ctx, j.source)
	if err != nil {
		return Result{}, err
	}
	report(Update{SegmentsDone: len(channels), SegmentsTotal: len(channels)})
	return Result{Channels: channels}, nil
}

func (j *catalogJob) Cleanup() error {
	return nil
}
