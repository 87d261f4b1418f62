package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/transport"
)

// Service defaults
const (
	DefaultMaxParallel = 2
	subscriberBuffer   = 256
	speedSampleWindow  = 500 * time.Millisecond
	taskIDPrefix       = "task-"
)

var (
	ErrDuplicateTask = errors.New("task already exists for source")
	ErrServiceClosed = errors.New("download service closed")
)

// Options configures a Service
type Options struct {
	MaxParallel int
	Throttle    *transport.Throttle // shared bandwidth cap; created unlimited if nil
	NightWindow model.NightWindow
	Now         func() time.Time
}

// entry is the registry record of one task and its running job
type entry struct {
	task     *model.DownloadTask
	seq      uint64
	job      Job
	eligible bool // start requested and waiting for admission
	cancel   context.CancelFunc
	done     chan struct{}
	stopAs   model.TaskStatus

	sampleAt    time.Time
	sampleBytes int64
}

// Service handles download operations
type Service struct {
	tasks       map[string]*entry
	tasksMutex  sync.Mutex
	seq         uint64
	runners     map[model.TaskKind]Runner
	maxParallel int
	activeCount int
	throttle    *transport.Throttle
	night       model.NightWindow
	nightTimer  *time.Timer
	now         func() time.Time
	subscribers map[int]chan model.DownloadTask
	nextSub     int
	closed      bool
	wg          sync.WaitGroup
	logger      *log.Entry
}

// NewService creates a new download service
func NewService(opts Options) *Service {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Throttle == nil {
		opts.Throttle = transport.NewThrottle(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		tasks:       make(map[string]*entry),
		runners:     make(map[model.TaskKind]Runner),
		maxParallel: opts.MaxParallel,
		throttle:    opts.Throttle,
		night:       opts.NightWindow,
		now:         opts.Now,
		subscribers: make(map[int]chan model.DownloadTask),
		logger:      log.WithField("component", "download"),
	}
}

// RegisterRunner sets the runner executing tasks of kind
func (s *Service) RegisterRunner(kind model.TaskKind, r Runner) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.runners[kind] = r
}

// Throttle returns the shared bandwidth cap
func (s *Service) Throttle() *transport.Throttle {
	return s.throttle
}

// Enqueue registers a new Queued task. It is not started until Start is called.
func (s *Service) Enqueue(source string, kind model.TaskKind) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("empty source")
	}

	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	if s.closed {
		return "", ErrServiceClosed
	}
	if _, ok := s.runners[kind]; !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownKind, kind)
	}

	// Check for duplicate sources
	for _, e := range s.tasks {
		if e.task.Source == source && e.task.Kind == kind && !e.task.Status.IsFinished() {
			return "", fmt.Errorf("%w: %s", ErrDuplicateTask, source)
		}
	}

	s.seq++
	e := &entry{
		task: &model.DownloadTask{
			ID:        generateTaskID(),
			Source:    source,
			Kind:      kind,
			Status:    model.TaskStatusQueued,
			ETASec:    -1,
			CreatedAt: s.now(),
		},
		seq: s.seq,
	}
	s.tasks[e.task.ID] = e
	s.logger.WithFields(log.Fields{"task": e.task.ID, "kind": kind, "url": source}).Debug("task enqueued")
	s.notifyLocked(e)
	return e.task.ID, nil
}

// Start requests a Queued task to run. It becomes Active at once when a slot
// is free and night mode allows it, otherwise it waits its FIFO turn.
func (s *Service) Start(id string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	switch e.task.Status {
	case model.TaskStatusQueued:
		e.eligible = true
		s.admitLocked()
		return nil
	case model.TaskStatusActive:
		return nil
	default:
		return fmt.Errorf("%w: start from %s", model.ErrInvalidTransition, e.task.Status)
	}
}

// AddTask enqueues and starts a task, returning its snapshot
func (s *Service) AddTask(source string, kind model.TaskKind) (model.DownloadTask, error) {
	id, err := s.Enqueue(source, kind)
	if err != nil {
		return model.DownloadTask{}, err
	}
	if err := s.Start(id); err != nil {
		return model.DownloadTask{}, err
	}
	task, _ := s.GetTask(id)
	return task, nil
}

// GetTask returns a snapshot of a task by ID
func (s *Service) GetTask(id string) (model.DownloadTask, bool) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	e, exists := s.tasks[id]
	if !exists {
		return model.DownloadTask{}, false
	}
	return e.task.Clone(), true
}

// GetAllTasks returns snapshots of all tasks in enqueue order
func (s *Service) GetAllTasks() []model.DownloadTask {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	entries := s.sortedLocked()
	tasks := make([]model.DownloadTask, 0, len(entries))
	for _, e := range entries {
		tasks = append(tasks, e.task.Clone())
	}
	return tasks
}

// Pause stops an Active task keeping its progress. A Queued task is held back.
// Pause returns once the task's job has stopped.
func (s *Service) Pause(id string) error {
	s.tasksMutex.Lock()
	e, err := s.lookupLocked(id)
	if err != nil {
		s.tasksMutex.Unlock()
		return err
	}

	switch e.task.Status {
	case model.TaskStatusActive:
		e.stopAs = model.TaskStatusPaused
		e.cancel()
		done := e.done
		s.tasksMutex.Unlock()
		<-done
		return nil
	case model.TaskStatusQueued:
		e.eligible = false
		e.task.Status = model.TaskStatusPaused
		s.notifyLocked(e)
		s.tasksMutex.Unlock()
		return nil
	case model.TaskStatusPaused:
		s.tasksMutex.Unlock()
		return nil
	default:
		s.tasksMutex.Unlock()
		return fmt.Errorf("%w: pause from %s", model.ErrInvalidTransition, e.task.Status)
	}
}

// Resume re-admits a Paused task. Without a free slot it waits as Queued.
func (s *Service) Resume(id string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	switch e.task.Status {
	case model.TaskStatusPaused:
		e.task.Status = model.TaskStatusQueued
		e.eligible = true
		s.notifyLocked(e)
		s.admitLocked()
		return nil
	case model.TaskStatusQueued, model.TaskStatusActive:
		return nil
	default:
		return fmt.Errorf("%w: resume from %s", model.ErrInvalidTransition, e.task.Status)
	}
}

// Cancel moves a non-terminal task to Cancelled and removes its temporary files.
// Cancel returns once the task's job has stopped and cleaned up.
func (s *Service) Cancel(id string) error {
	s.tasksMutex.Lock()
	e, err := s.lookupLocked(id)
	if err != nil {
		s.tasksMutex.Unlock()
		return err
	}

	switch e.task.Status {
	case model.TaskStatusActive:
		e.stopAs = model.TaskStatusCancelled
		e.cancel()
		done := e.done
		s.tasksMutex.Unlock()
		<-done
		return nil
	case model.TaskStatusQueued, model.TaskStatusPaused:
		job := e.job
		e.job = nil
		e.eligible = false
		e.task.Status = model.TaskStatusCancelled
		e.task.FinishedAt = s.now()
		s.notifyLocked(e)
		s.tasksMutex.Unlock()
		s.cleanupJob(id, job)
		return nil
	default:
		s.tasksMutex.Unlock()
		return fmt.Errorf("%w: cancel from %s", model.ErrInvalidTransition, e.task.Status)
	}
}

// Restart requeues a Failed or Cancelled task from scratch
func (s *Service) Restart(id string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	e, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if e.task.Status != model.TaskStatusFailed && e.task.Status != model.TaskStatusCancelled {
		return fmt.Errorf("%w: restart from %s", model.ErrInvalidTransition, e.task.Status)
	}

	t := e.task
	t.Status = model.TaskStatusQueued
	t.BytesDone = 0
	t.BytesTotal = nil
	t.SegmentsDone = 0
	t.SegmentsTotal = 0
	t.Speed = ""
	t.ETASec = -1
	t.Err = nil
	t.LastError = ""
	t.Channels = nil
	t.StartedAt = time.Time{}
	t.FinishedAt = time.Time{}
	e.job = nil
	s.seq++
	e.seq = s.seq
	e.eligible = true

	s.notifyLocked(e)
	s.admitLocked()
	return nil
}

// Remove deletes a task from the registry, cancelling it first if needed
func (s *Service) Remove(id string) error {
	task, ok := s.GetTask(id)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrTaskNotFound, id)
	}
	if !task.Status.IsFinished() {
		if err := s.Cancel(id); err != nil && !errors.Is(err, model.ErrInvalidTransition) {
			return err
		}
	}

	s.tasksMutex.Lock()
	e, exists := s.tasks[id]
	var job Job
	if exists {
		job = e.job
		delete(s.tasks, id)
	}
	s.tasksMutex.Unlock()

	s.cleanupJob(id, job)
	return nil
}

// PauseAll pauses every Active task and holds every waiting one
func (s *Service) PauseAll() {
	for _, id := range s.idsWhere(func(e *entry) bool {
		return e.task.Status == model.TaskStatusActive || (e.task.Status == model.TaskStatusQueued && e.eligible)
	}) {
		if err := s.Pause(id); err != nil {
			s.logger.WithError(err).WithField("task", id).Debug("pause skipped")
		}
	}
}

// ResumeAll resumes every Paused task in enqueue order
func (s *Service) ResumeAll() {
	for _, id := range s.idsWhere(func(e *entry) bool {
		return e.task.Status == model.TaskStatusPaused
	}) {
		if err := s.Resume(id); err != nil {
			s.logger.WithError(err).WithField("task", id).Debug("resume skipped")
		}
	}
}

// Subscribe returns a channel of task snapshots and a function releasing it.
// Delivery is best effort: a subscriber that falls behind misses snapshots.
func (s *Service) Subscribe() (<-chan model.DownloadTask, func()) {
	ch := make(chan model.DownloadTask, subscriberBuffer)

	s.tasksMutex.Lock()
	id := s.nextSub
	s.nextSub++
	if s.closed {
		close(ch)
	} else {
		s.subscribers[id] = ch
	}
	s.tasksMutex.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.tasksMutex.Lock()
			defer s.tasksMutex.Unlock()
			if c, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(c)
			}
		})
	}
}

// SetUpdateCallback calls callback with every published snapshot, from its own goroutine
func (s *Service) SetUpdateCallback(callback func(model.DownloadTask)) {
	ch, _ := s.Subscribe()
	go func() {
		for task := range ch {
			callback(task)
		}
	}()
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads.
// Lowering it never interrupts Active tasks.
func (s *Service) SetMaxParallelDownloads(max int) {
	if max < 1 {
		max = 1
	}
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.maxParallel = max
	s.admitLocked()
}

// SetSpeedLimit sets the shared bandwidth cap in bytes per second, 0 = unlimited
func (s *Service) SetSpeedLimit(bytesPerSec int64) {
	s.throttle.SetLimit(bytesPerSec)
}

// SetNightWindow sets the window during which admissions are held
func (s *Service) SetNightWindow(w model.NightWindow) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	if s.nightTimer != nil {
		s.nightTimer.Stop()
		s.nightTimer = nil
	}
	s.night = w
	s.admitLocked()
}

// ApplySettings applies persisted preferences
func (s *Service) ApplySettings(cfg Settings) {
	s.SetSpeedLimit(cfg.GetSpeedLimitBytes())
	s.SetNightWindow(cfg.GetNightWindow())
	s.SetMaxParallelDownloads(cfg.GetMaxParallelDownloads())
}

// Close stops all running jobs, releases temporary files and closes subscriptions
func (s *Service) Close() {
	s.tasksMutex.Lock()
	if s.closed {
		s.tasksMutex.Unlock()
		return
	}
	s.closed = true
	if s.nightTimer != nil {
		s.nightTimer.Stop()
		s.nightTimer = nil
	}
	for _, e := range s.tasks {
		if e.task.Status == model.TaskStatusActive {
			e.stopAs = model.TaskStatusPaused
			e.cancel()
		}
	}
	s.tasksMutex.Unlock()

	s.wg.Wait()

	s.tasksMutex.Lock()
	jobs := make(map[string]Job)
	for id, e := range s.tasks {
		if e.job != nil {
			jobs[id] = e.job
			e.job = nil
		}
	}
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.tasksMutex.Unlock()

	for id, job := range jobs {
		s.cleanupJob(id, job)
	}
}

// admitLocked starts eligible Queued tasks in FIFO order while slots are free
func (s *Service) admitLocked() {
	if s.closed {
		return
	}
	now := s.now()
	if s.night.Contains(now) {
		s.scheduleNightEndLocked(now)
		return
	}

	for s.activeCount < s.maxParallel {
		next := s.nextEligibleLocked()
		if next == nil {
			return
		}
		s.launchLocked(next)
	}
}

func (s *Service) scheduleNightEndLocked(now time.Time) {
	if s.nightTimer != nil || s.nextEligibleLocked() == nil {
		return
	}
	delay := s.night.NextEnd(now).Sub(now)
	s.logger.WithField("resume_in", delay.Round(time.Second)).Info("night mode: admissions held")
	s.nightTimer = time.AfterFunc(delay, s.onNightEnd)
}

func (s *Service) onNightEnd() {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.nightTimer = nil
	s.admitLocked()
}

func (s *Service) nextEligibleLocked() *entry {
	var next *entry
	for _, e := range s.tasks {
		if e.task.Status != model.TaskStatusQueued || !e.eligible {
			continue
		}
		if next == nil || e.seq < next.seq {
			next = e
		}
	}
	return next
}

func (s *Service) launchLocked(e *entry) {
	logger := s.logger.WithField("task", e.task.ID)
	e.eligible = false

	if e.job == nil {
		job, err := s.runners[e.task.Kind].Prepare(e.task.Clone())
		if err != nil {
			logger.WithError(err).Error("task preparation failed")
			e.task.Status = model.TaskStatusFailed
			e.task.Err = err
			e.task.LastError = err.Error()
			e.task.FinishedAt = s.now()
			s.notifyLocked(e)
			return
		}
		e.job = job
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := s.now()
	e.cancel = cancel
	e.done = make(chan struct{})
	e.stopAs = ""
	e.sampleAt = now
	e.sampleBytes = e.task.BytesDone

	s.activeCount++
	e.task.Status = model.TaskStatusActive
	if e.task.StartedAt.IsZero() {
		e.task.StartedAt = now
	}
	s.notifyLocked(e)

	logger.Info("task started")
	s.wg.Add(1)
	go s.runTask(ctx, e, e.job)
}

// runTask drives one job run and records its outcome
func (s *Service) runTask(ctx context.Context, e *entry, job Job) {
	defer s.wg.Done()
	logger := s.logger.WithField("task", e.task.ID)

	result, err := job.Run(ctx, func(u Update) { s.updateProgress(e, u) })
	stopped := ctx.Err() != nil
	e.cancel()

	s.tasksMutex.Lock()
	s.activeCount--
	t := e.task
	t.Speed = ""
	cleanup := false

	switch {
	case err == nil:
		t.Status = model.TaskStatusCompleted
		if result.OutputPath != "" {
			t.OutputPath = result.OutputPath
		}
		t.Channels = result.Channels
		if t.BytesTotal == nil {
			total := t.BytesDone
			t.BytesTotal = &total
		}
		t.ETASec = 0
		t.FinishedAt = s.now()
		e.job = nil
		logger.Info("task completed")
	case stopped && e.stopAs == model.TaskStatusCancelled:
		t.Status = model.TaskStatusCancelled
		t.FinishedAt = s.now()
		e.job = nil
		cleanup = true
		logger.Info("task cancelled")
	case stopped:
		t.Status = model.TaskStatusPaused
		logger.Info("task paused")
	default:
		t.Status = model.TaskStatusFailed
		t.Err = err
		t.LastError = err.Error()
		t.FinishedAt = s.now()
		e.job = nil
		cleanup = true
		logger.WithError(err).Error("task failed")
	}

	done := e.done
	s.notifyLocked(e)
	s.admitLocked()
	s.tasksMutex.Unlock()

	if cleanup {
		s.cleanupJob(t.ID, job)
	}
	close(done)
}

// updateProgress records a job report and refreshes speed and ETA
func (s *Service) updateProgress(e *entry, u Update) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	t := e.task
	if t.Status != model.TaskStatusActive {
		return
	}
	t.BytesDone = u.BytesDone
	if u.BytesTotal != nil {
		total := *u.BytesTotal
		t.BytesTotal = &total
	}
	t.SegmentsDone = u.SegmentsDone
	t.SegmentsTotal = u.SegmentsTotal

	now := s.now()
	if elapsed := now.Sub(e.sampleAt); elapsed >= speedSampleWindow {
		rate := float64(t.BytesDone-e.sampleBytes) / elapsed.Seconds()
		if rate < 0 {
			rate = 0
		}
		t.Speed = model.FormatSpeed(rate)
		t.ETASec = estimateETA(t, rate, now)
		e.sampleAt = now
		e.sampleBytes = t.BytesDone
	}
	s.notifyLocked(e)
}

func estimateETA(t *model.DownloadTask, rate float64, now time.Time) int {
	if t.BytesTotal != nil && *t.BytesTotal > 0 && rate > 0 {
		remaining := *t.BytesTotal - t.BytesDone
		if remaining < 0 {
			remaining = 0
		}
		return int(float64(remaining) / rate)
	}
	if t.SegmentsTotal > 0 && t.SegmentsDone > 0 {
		perSegment := now.Sub(t.StartedAt) / time.Duration(t.SegmentsDone)
		return int((perSegment * time.Duration(t.SegmentsTotal-t.SegmentsDone)).Seconds())
	}
	return -1
}

func (s *Service) cleanupJob(id string, job Job) {
	if job == nil {
		return
	}
	if err := job.Cleanup(); err != nil {
		s.logger.WithError(err).WithField("task", id).Warn("failed to remove temporary files")
	}
}

func (s *Service) lookupLocked(id string) (*entry, error) {
	e, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrTaskNotFound, id)
	}
	return e, nil
}

func (s *Service) sortedLocked() []*entry {
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

func (s *Service) idsWhere(match func(*entry) bool) []string {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	var ids []string
	for _, e := range s.sortedLocked() {
		if match(e) {
			ids = append(ids, e.task.ID)
		}
	}
	return ids
}

// notifyLocked publishes a snapshot without blocking on slow subscribers
func (s *Service) notifyLocked(e *entry) {
	if len(s.subscribers) == 0 {
		return
	}
	snapshot := e.task.Clone()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s%d", taskIDPrefix, time.Now().UnixNano())
	}
	return taskIDPrefix + id.String()
}
