package merge

// Package merge wraps the external muxer used to concatenate fetched segments
// into one output container. The default implementation drives ffmpeg's
// concat demuxer with stream copy.
