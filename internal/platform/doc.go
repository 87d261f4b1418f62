package platform

// Package platform contains OS/platform integration and input glue: filesystem
// helpers, output filename derivation, and the catalog parsers (M3U playlists
// and Xtream-style remote catalogs) that produce channel URLs.
