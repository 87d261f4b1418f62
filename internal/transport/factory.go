package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/ytget/nexus-downloader/internal/identity"
)

// Default timeouts
const (
	DefaultConnectTimeout  = 30 * time.Second
	DefaultReadIdleTimeout = 60 * time.Second
	DefaultDNSCacheTTL     = 300 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Connection pool tuning
const (
	maxIdleConnsPerHost = 32
	keepAlive           = 30 * time.Second
)

// Options configures a Factory
type Options struct {
	ConnectTimeout     time.Duration
	ReadIdleTimeout    time.Duration
	DNSCacheTTL        time.Duration
	InsecureSkipVerify bool

	lookup lookupFunc
}

// Factory builds independent HTTP clients, one per spoofed identity
type Factory struct {
	opts   Options
	dialer *net.Dialer
	dns    *dnsCache
	logger *log.Entry
}

// NewFactory creates a factory; zero option values take the defaults
func NewFactory(opts Options) *Factory {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadIdleTimeout <= 0 {
		opts.ReadIdleTimeout = DefaultReadIdleTimeout
	}
	if opts.DNSCacheTTL <= 0 {
		opts.DNSCacheTTL = DefaultDNSCacheTTL
	}

	return &Factory{
		opts: opts,
		dialer: &net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: keepAlive,
		},
		dns:    newDNSCache(opts.DNSCacheTTL, opts.lookup),
		logger: log.WithField("component", "transport"),
	}
}

// NewClient returns a client that sends the identity's headers by default.
// Clients never share a transport, so identities cannot bleed between tasks.
func (f *Factory) NewClient(id identity.Spoofed) *http.Client {
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           f.dialContext,
		MaxConnsPerHost:       0,
		MaxIdleConns:          0,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   f.opts.ConnectTimeout,
		ResponseHeaderTimeout: f.opts.ReadIdleTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: f.opts.InsecureSkipVerify,
		},
	}
	if err := http2.ConfigureTransport(t); err != nil {
		f.logger.WithError(err).Debug("http2 not enabled")
	}
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	return &http.Client{
		Transport: &HeaderTransport{
			Headers: id.Header(),
			Base:    t,
		},
	}
}

func (f *Factory) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	targets := []string{host}
	if net.ParseIP(host) == nil {
		targets, err = f.dns.resolve(ctx, host)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for _, ip := range targets {
		conn, err := f.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return &idleConn{Conn: conn, idle: f.opts.ReadIdleTimeout}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
