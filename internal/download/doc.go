package download

// Package download implements the download manager: it owns the task registry,
// admits tasks under a global concurrency limit and the night-mode window,
// shares one bandwidth cap across all transfers, and drives pause/resume/cancel.
// Each task kind is executed by a Runner; progress is published to subscribers
// as task snapshots.
