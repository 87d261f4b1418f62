package model

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	// TaskStatusQueued means the task is registered and waiting for a slot
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusActive means the task holds a slot and is transferring
	TaskStatusActive TaskStatus = "Active"

	// TaskStatusPaused means the task was paused by user and keeps its progress
	TaskStatusPaused TaskStatus = "Paused"

	// TaskStatusCompleted means the task finished successfully
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusFailed means the task failed with an error
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCancelled means the task was cancelled by user
	TaskStatusCancelled TaskStatus = "Cancelled"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task currently holds a download slot
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusActive
}

// IsFinished returns true if the task is in a terminal state (completed, failed, or cancelled)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed || ts == TaskStatusCancelled
}

// TaskKind selects how a task source is processed
type TaskKind string

const (
	// KindDirect downloads a single URL as-is
	KindDirect TaskKind = "direct"

	// KindSegmented downloads a segmented stream described by a manifest
	KindSegmented TaskKind = "segmented-stream"

	// KindCatalogImport fetches and parses a channel catalog
	KindCatalogImport TaskKind = "catalog-import"
)

// String returns the string representation of TaskKind
func (k TaskKind) String() string {
	return string(k)
}

// ParseTaskKind maps a user supplied kind name to a TaskKind
func ParseTaskKind(s string) (TaskKind, error) {
	switch TaskKind(s) {
	case KindDirect, KindSegmented, KindCatalogImport:
		return TaskKind(s), nil
	case "hls", "stream", "segmented":
		return KindSegmented, nil
	case "catalog", "m3u", "xtream":
		return KindCatalogImport, nil
	}
	return "", ErrUnknownKind
}
