package platform

import (
	"net/url"
	"path"
	"strings"

	"github.com/ytget/nexus-downloader/internal/model"
)

// GuessTaskKind picks a task kind from the shape of a source: xtream sources and
// .m3u files are catalogs, .m3u8 manifests are streams, anything else is a plain file.
func GuessTaskKind(source string) model.TaskKind {
	if IsXtreamSource(source) {
		return model.KindCatalogImport
	}
	p := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".m3u8":
		return model.KindSegmented
	case ".m3u":
		return model.KindCatalogImport
	}
	return model.KindDirect
}
