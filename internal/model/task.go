package model

import (
	"fmt"
	"strings"
	"time"
)

// DownloadTask represents a single unit of work owned by the download service.
// Values handed out by the service are snapshots; mutate only through the service.
type DownloadTask struct {
	ID            string
	Source        string // URL or local manifest path
	Kind          TaskKind
	Status        TaskStatus
	OutputPath    string
	BytesTotal    *int64 // nil until known
	BytesDone     int64
	SegmentsTotal int
	SegmentsDone  int
	Speed         string // human readable speed (e.g., "1.2MB/s")
	ETASec        int    // ETA in seconds, -1 if unknown
	Err           error  // originating error of a failed task
	LastError     string // last error message if any
	Channels      []ChannelEntry
	CreatedAt     time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Progress returns completion as a fraction from 0.0 to 1.0
func (dt *DownloadTask) Progress() float64 {
	if dt.Status == TaskStatusCompleted {
		return 1.0
	}
	if dt.SegmentsTotal > 0 {
		return float64(dt.SegmentsDone) / float64(dt.SegmentsTotal)
	}
	if dt.BytesTotal != nil && *dt.BytesTotal > 0 {
		p := float64(dt.BytesDone) / float64(*dt.BytesTotal)
		if p > 1.0 {
			p = 1.0
		}
		return p
	}
	return 0
}

// Percent returns completion as an integer percentage
func (dt *DownloadTask) Percent() int {
	return int(dt.Progress() * 100)
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (dt *DownloadTask) GetETAString() string {
	if dt.ETASec <= 0 {
		return "—"
	}

	hours := dt.ETASec / 3600
	minutes := (dt.ETASec % 3600) / 60
	seconds := dt.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns the output filename or the source, in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.OutputPath != "" {
		// Support both / and \ separators
		parts := strings.FieldsFunc(dt.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}
	return dt.Source
}

// Clone returns a deep copy safe to hand to other goroutines
func (dt *DownloadTask) Clone() DownloadTask {
	c := *dt
	if dt.BytesTotal != nil {
		total := *dt.BytesTotal
		c.BytesTotal = &total
	}
	if dt.Channels != nil {
		c.Channels = make([]ChannelEntry, len(dt.Channels))
		copy(c.Channels, dt.Channels)
	}
	return c
}

// FormatSpeed renders a bytes-per-second rate the way the UI displays it
func FormatSpeed(bytesPerSecond float64) string {
	switch {
	case bytesPerSecond >= 1024*1024:
		return fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
	case bytesPerSecond >= 1024:
		return fmt.Sprintf("%.1fKB/s", bytesPerSecond/1024)
	default:
		return fmt.Sprintf("%.0fB/s", bytesPerSecond)
	}
}
