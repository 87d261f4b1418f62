package merge

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ytget/nexus-downloader/internal/model"
)

// BinaryMuxer joins segment files byte by byte. It suits MPEG-TS segments
// when ffmpeg is unavailable; the output keeps the segment container format.
type BinaryMuxer struct{}

// NewBinaryMuxer creates a byte-concatenating muxer
func NewBinaryMuxer() *BinaryMuxer {
	return &BinaryMuxer{}
}

// Merge concatenates the listed files into output in list order
func (BinaryMuxer) Merge(ctx context.Context, listFile, output string) error {
	files, err := ReadConcatList(listFile)
	if err != nil {
		return &model.MergeError{Output: output, Err: err}
	}

	out, err := os.Create(output)
	if err != nil {
		return &model.MergeError{Output: output, Err: err}
	}

	if err := appendFiles(ctx, out, files); err != nil {
		out.Close()
		os.Remove(output)
		return &model.MergeError{Output: output, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(output)
		return &model.MergeError{Output: output, Err: err}
	}
	return nil
}

func appendFiles(ctx context.Context, w io.Writer, files []string) error {
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open segment: %w", err)
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("failed to append segment %s: %w", name, err)
		}
	}
	return nil
}
