package merge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/model"
)

// FFmpeg constants for concatenation
const (
	FFmpegCommand     = "ffmpeg"
	ConcatFormat      = "concat"
	StreamCopy        = "copy"
	FastStartFlag     = "+faststart"
	ConcatListName    = "segments.txt"
	concatLinePrefix  = "file '"
	concatQuoteEscape = `'\''`
)

// FFmpegMuxer merges segments with ffmpeg's concat demuxer
type FFmpegMuxer struct {
	path   string
	logger *log.Entry
}

// NewFFmpegMuxer creates a muxer using the ffmpeg binary at path ("" = ffmpeg from PATH)
func NewFFmpegMuxer(path string) *FFmpegMuxer {
	if path == "" {
		path = FFmpegCommand
	}
	return &FFmpegMuxer{
		path:   path,
		logger: log.WithField("component", "muxer"),
	}
}

// CheckAvailable reports whether the ffmpeg binary can be found
func (m *FFmpegMuxer) CheckAvailable() error {
	if _, err := exec.LookPath(m.path); err != nil {
		return fmt.Errorf("ffmpeg not found (%s). Please install ffmpeg to merge video segments: %w", m.path, err)
	}
	return nil
}

// BuildFFmpegArgs builds the ffmpeg command arguments
func (m *FFmpegMuxer) BuildFFmpegArgs(listFile, output string) []string {
	return []string{
		"-f", ConcatFormat, // Concat demuxer
		"-safe", "0", // Allow absolute paths in the list
		"-i", listFile, // Input list
		"-c", StreamCopy, // No re-encoding
		"-movflags", FastStartFlag, // MP4 optimization
		"-y",   // Overwrite output file
		output, // Output file
	}
}

// Merge runs ffmpeg. A non-zero exit or a missing output file is a
// *model.MergeError carrying ffmpeg's stderr verbatim.
func (m *FFmpegMuxer) Merge(ctx context.Context, listFile, output string) error {
	cmd := exec.CommandContext(ctx, m.path, m.BuildFFmpegArgs(listFile, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	m.logger.WithField("output", output).Debug("merging segments")
	if err := cmd.Run(); err != nil {
		// Remove partial output file
		os.Remove(output)

		mergeErr := &model.MergeError{Output: output, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			mergeErr.ExitCode = exitErr.ExitCode()
		}
		return mergeErr
	}

	if _, err := os.Stat(output); err != nil {
		return &model.MergeError{
			Output: output,
			Stderr: stderr.String(),
			Err:    fmt.Errorf("output file missing: %w", err),
		}
	}
	return nil
}

// WriteConcatList writes an ffmpeg concat list naming files in the given order
func WriteConcatList(listFile string, files []string) error {
	f, err := os.Create(listFile)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			absPath = file
		}
		escaped := strings.ReplaceAll(absPath, "'", concatQuoteEscape)
		if _, err := w.WriteString(concatLinePrefix + escaped + "'\n"); err != nil {
			return fmt.Errorf("failed to write concat list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return f.Close()
}

// ReadConcatList returns the file paths named in a concat list, in order
func ReadConcatList(listFile string) ([]string, error) {
	data, err := os.ReadFile(listFile)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, concatLinePrefix) || !strings.HasSuffix(line, "'") {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(line, concatLinePrefix), "'")
		files = append(files, strings.ReplaceAll(path, concatQuoteEscape, "'"))
	}
	return files, nil
}
