package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/identity"
	"github.com/ytget/nexus-downloader/internal/model"
)

// Manifest fetch limits
const (
	DefaultManifestTimeout = 15 * time.Second
	MaxManifestSize        = 16 << 20
)

// ClientFactory builds one HTTP client per spoofed identity
type ClientFactory interface {
	NewClient(id identity.Spoofed) *http.Client
}

// IdentitySource issues spoofed identities
type IdentitySource interface {
	SampleNext() identity.Spoofed
}

// Source fetches and parses manifests
type Source struct {
	clients    ClientFactory
	identities IdentitySource
	timeout    time.Duration
	logger     *log.Entry
}

// NewSource creates a manifest source. timeout <= 0 uses DefaultManifestTimeout.
func NewSource(clients ClientFactory, identities IdentitySource, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = DefaultManifestTimeout
	}
	return &Source{
		clients:    clients,
		identities: identities,
		timeout:    timeout,
		logger:     log.WithField("component", "manifest"),
	}
}

// SourceURL turns a manifest reference into a URL. Local paths become file:// URLs.
func SourceURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty manifest source")
	}
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "file") {
		return u, nil
	}

	// Anything else, including Windows drive paths, is a local file
	abs, err := filepath.Abs(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest path %q: %w", raw, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return &url.URL{Scheme: "file", Path: p}, nil
}

// Fetch downloads the manifest at manifestURL and returns its segments in
// manifest order. A master playlist is followed to its first variant once.
func (s *Source) Fetch(ctx context.Context, manifestURL string) ([]*model.SegmentDescriptor, error) {
	u, err := SourceURL(manifestURL)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: manifestURL, Err: err}
	}

	manifest, err := s.fetchOne(ctx, u)
	if err != nil {
		return nil, err
	}
	if manifest.IsMaster() {
		s.logger.WithField("variant", manifest.Variant).Debug("following first variant")
		variant, err := url.Parse(manifest.Variant)
		if err != nil {
			return nil, &model.ManifestParseError{URL: u.String(), Reason: "invalid variant URI", Err: err}
		}
		u = variant
		manifest, err = s.fetchOne(ctx, u)
		if err != nil {
			return nil, err
		}
		if manifest.IsMaster() {
			return nil, &model.ManifestParseError{URL: u.String(), Reason: "nested master playlist"}
		}
	}

	if u.Scheme != "file" {
		for _, seg := range manifest.Segments {
			if !strings.HasPrefix(seg.URI, "http://") && !strings.HasPrefix(seg.URI, "https://") {
				return nil, &model.ManifestParseError{
					URL:    u.String(),
					Reason: fmt.Sprintf("segment %d has unsupported URI %q", seg.Index, seg.URI),
				}
			}
		}
	}

	s.logger.WithFields(log.Fields{"url": u.String(), "segments": len(manifest.Segments)}).Info("manifest resolved")
	return manifest.Segments, nil
}

func (s *Source) fetchOne(ctx context.Context, u *url.URL) (*Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}

	client := s.clients.NewClient(s.identities.SampleNext())
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.ManifestFetchError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxManifestSize))
	if err != nil {
		return nil, &model.ManifestFetchError{URL: u.String(), Err: err}
	}

	// Redirects move the base for relative URIs
	base := u
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	return ParseManifest(string(body), base)
}
