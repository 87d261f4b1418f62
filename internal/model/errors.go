package model

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task state transition")
	ErrJobBusy           = errors.New("job already running")
	ErrUnknownKind       = errors.New("unknown task kind")
)

// ManifestFetchError reports a manifest request that did not succeed
type ManifestFetchError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *ManifestFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("manifest fetch %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("manifest fetch %s: %v", e.URL, e.Err)
}

func (e *ManifestFetchError) Unwrap() error { return e.Err }

// ManifestParseError reports structurally invalid manifest content
type ManifestParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ManifestParseError) Error() string {
	msg := fmt.Sprintf("manifest parse %s: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestParseError) Unwrap() error { return e.Err }

// SegmentFetchError reports a segment that could not be fetched
type SegmentFetchError struct {
	Index    int
	URI      string
	Attempts int
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("segment %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

func (e *SegmentFetchError) Unwrap() error { return e.Err }

// MergeError reports an external muxer failure. Stderr is kept verbatim.
type MergeError struct {
	Output   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("merge into %s failed", e.Output)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *MergeError) Unwrap() error { return e.Err }

// ConfigWriteError reports a failure persisting configuration. It is never fatal.
type ConfigWriteError struct {
	Path string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("failed to write config %s: %v", e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }
