package download

import (
	"context"

	"github.com/ytget/nexus-downloader/internal/model"
)

// Manager defines the interface of the download service used by presentation layers.
type Manager interface {
	Enqueue(source string, kind model.TaskKind) (string, error)
	Start(id string) error
	AddTask(source string, kind model.TaskKind) (model.DownloadTask, error)
	GetTask(id string) (model.DownloadTask, bool)
	GetAllTasks() []model.DownloadTask
	Pause(id string) error
	Resume(id string) error
	Cancel(id string) error
	Restart(id string) error
	Remove(id string) error
	PauseAll()
	ResumeAll()
	Subscribe() (<-chan model.DownloadTask, func())
	SetUpdateCallback(func(model.DownloadTask))

	// SetMaxParallelDownloads sets the global concurrency limit
	SetMaxParallelDownloads(max int)

	// SetSpeedLimit sets the shared bandwidth cap in bytes per second, 0 = unlimited
	SetSpeedLimit(bytesPerSec int64)

	// SetNightWindow sets the window during which admissions are held
	SetNightWindow(w model.NightWindow)
}

// Settings is the subset of persisted preferences the manager consumes
type Settings interface {
	GetMaxParallelDownloads() int
	GetSpeedLimitBytes() int64
	GetNightWindow() model.NightWindow
}

// Runner prepares executable jobs for one task kind. Prepare must not block.
type Runner interface {
	Prepare(task model.DownloadTask) (Job, error)
}

// Job is one resumable unit of work. Run returns the context error when the
// manager pauses or cancels it; a later Run continues where it stopped.
type Job interface {
	Run(ctx context.Context, report func(Update)) (Result, error)
	Cleanup() error
}

// Update is a progress report from a running job
type Update struct {
	BytesDone     int64
	BytesTotal    *int64
	SegmentsDone  int
	SegmentsTotal int
}

// Result describes a completed job
type Result struct {
	OutputPath string
	Channels   []model.ChannelEntry
}
