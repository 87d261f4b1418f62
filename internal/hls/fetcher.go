package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/transport"
)

// Segment fetch defaults
const (
	DefaultRetries    = 1
	DefaultRetryDelay = 500 * time.Millisecond
	SegmentNameFormat = "segment_%06d.ts"
	partSuffix        = ".part"
)

// SegmentFileName returns the temporary file name for a segment index
func SegmentFileName(index int) string {
	return fmt.Sprintf(SegmentNameFormat, index)
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Retries           int // attempts beyond the first; 0 = DefaultRetries, negative = none
	RetryDelay        time.Duration
	RequestsPerSecond int // 0 = unpaced
	Throttle          *transport.Throttle
}

// Fetcher downloads single segments with bounded retry
type Fetcher struct {
	retries    int
	retryDelay time.Duration
	pacer      ratelimit.Limiter
	throttle   *transport.Throttle
	logger     *log.Entry
}

// NewFetcher creates a segment fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	retries := opts.Retries
	switch {
	case retries == 0:
		retries = DefaultRetries
	case retries < 0:
		retries = 0
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	pacer := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		pacer = ratelimit.New(opts.RequestsPerSecond)
	}
	return &Fetcher{
		retries:    retries,
		retryDelay: delay,
		pacer:      pacer,
		throttle:   opts.Throttle,
		logger:     log.WithField("component", "fetcher"),
	}
}

// Fetch downloads seg to seg.LocalPath and returns that path. Failures after
// the retry budget is spent are *model.SegmentFetchError. Cancellation is
// returned as the context error and leaves the segment Pending.
func (f *Fetcher) Fetch(ctx context.Context, seg *model.SegmentDescriptor, client *http.Client) (string, error) {
	return f.fetch(ctx, seg, client, nil)
}

func (f *Fetcher) fetch(ctx context.Context, seg *model.SegmentDescriptor, client *http.Client, onBytes func(int64)) (string, error) {
	if seg.LocalPath == "" {
		return "", fmt.Errorf("segment %d has no local path", seg.Index)
	}
	seg.Status = model.SegmentFetching
	logger := f.logger.WithField("segment", seg.Index)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				seg.Status = model.SegmentPending
				return "", ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}

		attempts++
		seg.Attempts++
		size, err := f.fetchOnce(ctx, seg, client, onBytes)
		if err == nil {
			seg.Size = size
			seg.Status = model.SegmentFetched
			return seg.LocalPath, nil
		}
		if ctx.Err() != nil {
			seg.Status = model.SegmentPending
			return "", ctx.Err()
		}

		lastErr = err
		logger.WithError(err).WithField("attempt", attempts).Warn("segment fetch failed")
	}

	seg.Status = model.SegmentFailed
	return "", &model.SegmentFetchError{Index: seg.Index, URI: seg.URI, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, seg *model.SegmentDescriptor, client *http.Client, onBytes func(int64)) (int64, error) {
	f.pacer.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seg.URI, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	partPath := seg.LocalPath + partSuffix
	out, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create segment file: %w", err)
	}

	counter := &countingReader{r: f.throttle.Reader(ctx, resp.Body), onBytes: onBytes}
	size, err := io.Copy(out, counter)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		counter.rollback()
		return 0, err
	}

	if err := os.Rename(partPath, seg.LocalPath); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to finalize segment file: %w", err)
	}
	return size, nil
}

// countingReader reports bytes as they arrive; rollback retracts them when
// the attempt is discarded.
type countingReader struct {
	r       io.Reader
	onBytes func(int64)
	total   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.onBytes != nil {
		c.total += int64(n)
		c.onBytes(int64(n))
	}
	return n, err
}

func (c *countingReader) rollback() {
	if c.onBytes != nil && c.total > 0 {
		c.onBytes(-c.total)
		c.total = 0
	}
}
