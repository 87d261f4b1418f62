package hls

import (
	"net/url"
	"strings"

	"github.com/etherlabsio/go-m3u8/m3u8"

	"github.com/ytget/nexus-downloader/internal/model"
)

// ManifestHeader must open every manifest
const ManifestHeader = "#EXTM3U"

// Manifest is the parsed form of one playlist. A master playlist has no
// segments and names its first variant instead.
type Manifest struct {
	Segments []*model.SegmentDescriptor
	Variant  string
	Live     bool
}

// IsMaster reports whether the manifest only references other playlists
func (m *Manifest) IsMaster() bool {
	return m.Variant != ""
}

// ParseManifest parses manifest text. Relative URIs are resolved against base,
// and segment indexes follow manifest order.
func ParseManifest(text string, base *url.URL) (*Manifest, error) {
	source := ""
	if base != nil {
		source = base.String()
	}

	trimmed := strings.TrimPrefix(strings.TrimSpace(text), "\ufeff")
	if !strings.HasPrefix(trimmed, ManifestHeader) {
		return nil, &model.ManifestParseError{URL: source, Reason: "missing " + ManifestHeader + " header"}
	}

	playlist, err := m3u8.ReadString(trimmed)
	if err != nil {
		return nil, &model.ManifestParseError{URL: source, Reason: "invalid playlist", Err: err}
	}

	manifest := &Manifest{Live: playlist.IsLive()}
	for _, item := range playlist.Items {
		switch it := item.(type) {
		case *m3u8.PlaylistItem:
			if manifest.Variant == "" && len(manifest.Segments) == 0 {
				manifest.Variant = resolve(base, it.URI)
			}
		case *m3u8.SegmentItem:
			manifest.Segments = append(manifest.Segments, &model.SegmentDescriptor{
				Index:    len(manifest.Segments),
				URI:      resolve(base, it.Segment),
				Duration: it.Duration,
				Status:   model.SegmentPending,
			})
		}
	}

	if len(manifest.Segments) > 0 {
		manifest.Variant = ""
	}
	if len(manifest.Segments) == 0 && manifest.Variant == "" {
		return nil, &model.ManifestParseError{URL: source, Reason: "no segments"}
	}
	return manifest, nil
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
