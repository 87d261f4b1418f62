package transport

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Throttle is a token bucket shared by every reader it wraps. A limit of zero
// means unlimited. The underlying limiter serializes all mutation.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle capped at bytesPerSec (0 = unlimited)
func NewThrottle(bytesPerSec int64) *Throttle {
	t := &Throttle{limiter: rate.NewLimiter(rate.Inf, 0)}
	t.SetLimit(bytesPerSec)
	return t
}

// SetLimit changes the cap for all current and future readers
func (t *Throttle) SetLimit(bytesPerSec int64) {
	if bytesPerSec <= 0 {
		t.limiter.SetLimit(rate.Inf)
		return
	}
	t.limiter.SetBurst(int(bytesPerSec))
	t.limiter.SetLimit(rate.Limit(bytesPerSec))
}

// Limit returns the cap in bytes per second, 0 when unlimited
func (t *Throttle) Limit() int64 {
	if t == nil || t.limiter.Limit() == rate.Inf {
		return 0
	}
	return int64(t.limiter.Limit())
}

// Reader wraps r so that reads wait for tokens from the shared bucket
func (t *Throttle) Reader(ctx context.Context, r io.Reader) io.Reader {
	if t == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, limiter: t.limiter}
}

type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if tr.limiter.Limit() != rate.Inf {
		if burst := tr.limiter.Burst(); burst > 0 && len(p) > burst {
			p = p[:burst]
		}
	}

	n, err := tr.r.Read(p)
	if n > 0 {
		if werr := tr.wait(n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// wait takes n tokens, in chunks no larger than the current burst
func (tr *throttledReader) wait(n int) error {
	for n > 0 {
		if tr.limiter.Limit() == rate.Inf {
			return nil
		}
		chunk := n
		if burst := tr.limiter.Burst(); burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := tr.limiter.WaitN(tr.ctx, chunk); err != nil {
			if tr.ctx.Err() != nil {
				return tr.ctx.Err()
			}
			// Retry only when SetLimit shrank the burst under this chunk
			if burst := tr.limiter.Burst(); burst > 0 && chunk > burst {
				continue
			}
			return err
		}
		n -= chunk
	}
	return nil
}
