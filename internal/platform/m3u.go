package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ytget/nexus-downloader/internal/model"
)

// M3U tags and attribute keys
const (
	M3UHeader       = "#EXTM3U"
	M3UEntryTag     = "#EXTINF:"
	AttrTvgName     = "tvg-name"
	AttrTvgLogo     = "tvg-logo"
	AttrGroupTitle  = "group-title"
	MetaDuration    = "duration"
	MetaDisplayName = "display-name"
)

var extinfAttrPattern = regexp.MustCompile(`([A-Za-z0-9_-]+)="([^"]*)"`)

// ParseM3U parses catalog text into channel entries. Each #EXTINF line is paired
// with the next non-comment line. Relative URLs are completed against baseURL
// when it is non-empty; an entry whose URL line is missing is skipped.
func ParseM3U(content string, baseURL string) []model.ChannelEntry {
	var base *url.URL
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			base = u
		}
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var channels []model.ChannelEntry

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, M3UEntryTag) {
			continue
		}
		if i+1 >= len(lines) {
			break
		}
		urlLine := strings.TrimSpace(lines[i+1])
		if urlLine == "" || strings.HasPrefix(urlLine, "#") {
			continue
		}
		i++

		entry := parseExtinf(line)
		entry.URL = completeURL(urlLine, base)
		channels = append(channels, entry)
	}
	return channels
}

func parseExtinf(line string) model.ChannelEntry {
	body := strings.TrimPrefix(line, M3UEntryTag)
	meta := make(map[string]string)

	attrs, title, hasTitle := splitExtinfTitle(body)
	if fields := strings.Fields(attrs); len(fields) > 0 && !strings.Contains(fields[0], "=") {
		meta[MetaDuration] = fields[0]
	}
	for _, m := range extinfAttrPattern.FindAllStringSubmatch(attrs, -1) {
		meta[m[1]] = m[2]
	}
	if hasTitle {
		meta[MetaDisplayName] = title
	}

	entry := model.ChannelEntry{
		Name:     model.DefaultChannelName,
		Group:    model.DefaultChannelGroup,
		Logo:     meta[AttrTvgLogo],
		Metadata: meta,
	}
	if name, ok := meta[AttrTvgName]; ok {
		entry.Name = name
	} else if hasTitle && title != "" {
		entry.Name = title
	}
	if group, ok := meta[AttrGroupTitle]; ok {
		entry.Group = group
	}
	return entry
}

// splitExtinfTitle splits at the first comma outside a quoted attribute value.
func splitExtinfTitle(body string) (attrs, title string, ok bool) {
	inQuote := false
	for i, r := range body {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return body[:i], strings.TrimSpace(body[i+1:]), true
			}
		}
	}
	return body, "", false
}

func completeURL(raw string, base *url.URL) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	return base.ResolveReference(ref).String()
}
