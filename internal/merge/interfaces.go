package merge

import "context"

// Muxer concatenates the files named in an ffmpeg concat list into output.
// Failures are reported as *model.MergeError.
type Muxer interface {
	Merge(ctx context.Context, listFile, output string) error
}
