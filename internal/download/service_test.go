package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/ytget/nexus-downloader/internal/model"
)

// fakeJob blocks until released or cancelled
type fakeJob struct {
	release  chan struct{}
	err      error
	runs     atomic.Int32
	cleanups atomic.Int32
}

func newFakeJob() *fakeJob {
	return &fakeJob{release: make(chan struct{})}
}

func (j *fakeJob) Run(ctx context.Context, report func(Update)) (Result, error) {
	j.runs.Inc()
	report(Update{SegmentsDone: 1, SegmentsTotal: 2, BytesDone: 10})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-j.release:
	}
	if j.err != nil {
		return Result{}, j.err
	}
	report(Update{SegmentsDone: 2, SegmentsTotal: 2, BytesDone: 20})
	return Result{OutputPath: "/downloads/out.mp4"}, nil
}

func (j *fakeJob) Cleanup() error {
	j.cleanups.Inc()
	return nil
}

// fakeRunner hands out one fakeJob per Prepare call, recorded by source
type fakeRunner struct {
	mu         sync.Mutex
	jobs       map[string][]*fakeJob
	failWith   map[string]error
	prepareErr error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: make(map[string][]*fakeJob), failWith: make(map[string]error)}
}

func (r *fakeRunner) Prepare(task model.DownloadTask) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prepareErr != nil {
		return nil, r.prepareErr
	}
	job := newFakeJob()
	job.err = r.failWith[task.Source]
	r.jobs[task.Source] = append(r.jobs[task.Source], job)
	return job, nil
}

func (r *fakeRunner) job(t *testing.T, source string, n int) *fakeJob {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := r.jobs[source]
	if len(jobs) <= n {
		t.Fatalf("job %d for %s not prepared (have %d)", n, source, len(jobs))
	}
	return jobs[n]
}

func (r *fakeRunner) prepared(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs[source])
}

func newTestService(t *testing.T, maxParallel int) (*Service, *fakeRunner) {
	t.Helper()
	s := NewService(Options{MaxParallel: maxParallel})
	runner := newFakeRunner()
	s.RegisterRunner(model.KindSegmented, runner)
	t.Cleanup(s.Close)
	return s, runner
}

func waitForStatus(t *testing.T, s *Service, id string, want model.TaskStatus) model.DownloadTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		task, ok := s.GetTask(id)
		if ok && task.Status == want {
			return task
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s: status %s, want %s", id, task.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func statusCounts(s *Service) map[model.TaskStatus]int {
	counts := make(map[model.TaskStatus]int)
	for _, task := range s.GetAllTasks() {
		counts[task.Status]++
	}
	return counts
}

func source(i int) string {
	return fmt.Sprintf("https://cdn.example.com/stream%d.m3u8", i)
}

func TestNewService(t *testing.T) {
	service := NewService(Options{})
	defer service.Close()

	if service.maxParallel != DefaultMaxParallel {
		t.Errorf("Expected maxParallel to be %d, got %d", DefaultMaxParallel, service.maxParallel)
	}
	if len(service.tasks) != 0 {
		t.Errorf("Expected empty tasks map, got %d items", len(service.tasks))
	}
	if service.Throttle().Limit() != 0 {
		t.Errorf("Expected unlimited throttle, got %d", service.Throttle().Limit())
	}
}

func TestEnqueue(t *testing.T) {
	s, runner := newTestService(t, 2)

	id, err := s.Enqueue(source(1), model.KindSegmented)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	task, ok := s.GetTask(id)
	if !ok {
		t.Fatal("Expected task to exist")
	}
	if task.Status != model.TaskStatusQueued {
		t.Errorf("Expected Queued, got %s", task.Status)
	}
	if task.CreatedAt.IsZero() || task.ETASec != -1 || task.BytesTotal != nil {
		t.Errorf("Unexpected initial task fields: %+v", task)
	}
	if runner.prepared(source(1)) != 0 {
		t.Error("Enqueue must not start the task")
	}

	// Try to add duplicate task (should fail)
	if _, err := s.Enqueue(source(1), model.KindSegmented); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("Expected ErrDuplicateTask, got %v", err)
	}
	if _, err := s.Enqueue(source(2), model.KindDirect); !errors.Is(err, model.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if _, err := s.Enqueue("   ", model.KindSegmented); err == nil {
		t.Error("Expected error for empty source")
	}
	if err := s.Start("missing"); !errors.Is(err, model.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	s, runner := newTestService(t, 2)

	ids := make([]string, 5)
	for i := range ids {
		task, err := s.AddTask(source(i), model.KindSegmented)
		if err != nil {
			t.Fatalf("AddTask %d failed: %v", i, err)
		}
		ids[i] = task.ID
	}

	counts := statusCounts(s)
	if counts[model.TaskStatusActive] != 2 || counts[model.TaskStatusQueued] != 3 {
		t.Fatalf("Expected 2 Active and 3 Queued, got %v", counts)
	}
	for i := 0; i < 2; i++ {
		if task, _ := s.GetTask(ids[i]); task.Status != model.TaskStatusActive {
			t.Errorf("task %d should be Active, got %s", i, task.Status)
		}
	}

	close(runner.job(t, source(0), 0).release)
	done := waitForStatus(t, s, ids[0], model.TaskStatusCompleted)
	if done.OutputPath != "/downloads/out.mp4" || done.Progress() != 1.0 {
		t.Errorf("Unexpected completed task: %+v", done)
	}

	// FIFO: the oldest queued task takes the freed slot
	waitForStatus(t, s, ids[2], model.TaskStatusActive)
	counts = statusCounts(s)
	if counts[model.TaskStatusActive] != 2 || counts[model.TaskStatusQueued] != 2 {
		t.Errorf("Expected 2 Active and 2 Queued after a slot freed, got %v", counts)
	}
}

func TestPauseResume(t *testing.T) {
	s, runner := newTestService(t, 1)

	task, err := s.AddTask(source(1), model.KindSegmented)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Pause(task.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	paused, _ := s.GetTask(task.ID)
	if paused.Status != model.TaskStatusPaused {
		t.Fatalf("Expected Paused, got %s", paused.Status)
	}
	if paused.SegmentsDone != 1 {
		t.Errorf("Expected progress to be kept, got %d segments", paused.SegmentsDone)
	}

	job := runner.job(t, source(1), 0)
	if job.cleanups.Load() != 0 {
		t.Error("Pause must not clean up the job")
	}

	if err := s.Resume(task.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitForStatus(t, s, task.ID, model.TaskStatusActive)
	if runner.prepared(source(1)) != 1 {
		t.Errorf("Resume must reuse the paused job, prepared %d", runner.prepared(source(1)))
	}

	close(job.release)
	waitForStatus(t, s, task.ID, model.TaskStatusCompleted)
	if job.runs.Load() != 2 {
		t.Errorf("Expected 2 runs of the same job, got %d", job.runs.Load())
	}

	if err := s.Pause(task.ID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition pausing a completed task, got %v", err)
	}
}

func TestResumeWaitsForSlot(t *testing.T) {
	s, runner := newTestService(t, 1)

	a, _ := s.AddTask(source(1), model.KindSegmented)
	if err := s.Pause(a.ID); err != nil {
		t.Fatal(err)
	}
	b, _ := s.AddTask(source(2), model.KindSegmented)
	waitForStatus(t, s, b.ID, model.TaskStatusActive)

	if err := s.Resume(a.ID); err != nil {
		t.Fatal(err)
	}
	if task, _ := s.GetTask(a.ID); task.Status != model.TaskStatusQueued {
		t.Fatalf("Expected resumed task to wait as Queued, got %s", task.Status)
	}

	close(runner.job(t, source(2), 0).release)
	waitForStatus(t, s, a.ID, model.TaskStatusActive)
}

func TestCancel(t *testing.T) {
	s, runner := newTestService(t, 1)

	active, _ := s.AddTask(source(1), model.KindSegmented)
	queued, _ := s.AddTask(source(2), model.KindSegmented)

	if err := s.Cancel(active.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	task, _ := s.GetTask(active.ID)
	if task.Status != model.TaskStatusCancelled || task.FinishedAt.IsZero() {
		t.Errorf("Expected Cancelled with finish time, got %+v", task)
	}
	if n := runner.job(t, source(1), 0).cleanups.Load(); n != 1 {
		t.Errorf("Expected cleanup once, got %d", n)
	}

	// the freed slot goes to the queued task; cancelling it stops that run too
	waitForStatus(t, s, queued.ID, model.TaskStatusActive)
	if err := s.Cancel(queued.ID); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, s, queued.ID, model.TaskStatusCancelled)

	if err := s.Cancel(active.ID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	id, _ := s.Enqueue(source(3), model.KindSegmented)
	if err := s.Cancel(id); err != nil {
		t.Fatalf("Cancel of a queued task failed: %v", err)
	}
	waitForStatus(t, s, id, model.TaskStatusCancelled)
}

func TestFailureIsIsolated(t *testing.T) {
	s, runner := newTestService(t, 2)
	segErr := &model.SegmentFetchError{Index: 3, URI: "https://cdn.example.com/seg3.ts", Attempts: 2, Err: errors.New("unexpected status code: 500")}
	runner.failWith[source(1)] = segErr

	failing, _ := s.AddTask(source(1), model.KindSegmented)
	healthy, _ := s.AddTask(source(2), model.KindSegmented)

	close(runner.job(t, source(1), 0).release)
	task := waitForStatus(t, s, failing.ID, model.TaskStatusFailed)

	var got *model.SegmentFetchError
	if !errors.As(task.Err, &got) || got.Index != 3 {
		t.Errorf("Expected SegmentFetchError for index 3, got %v", task.Err)
	}
	if task.LastError == "" {
		t.Error("Expected LastError to be set")
	}
	if n := runner.job(t, source(1), 0).cleanups.Load(); n != 1 {
		t.Errorf("Expected cleanup after failure, got %d", n)
	}
	if other, _ := s.GetTask(healthy.ID); other.Status != model.TaskStatusActive {
		t.Errorf("Sibling task should stay Active, got %s", other.Status)
	}
}

func TestRestartAndRemove(t *testing.T) {
	s, runner := newTestService(t, 1)
	runner.failWith[source(1)] = errors.New("boom")

	task, _ := s.AddTask(source(1), model.KindSegmented)
	close(runner.job(t, source(1), 0).release)
	waitForStatus(t, s, task.ID, model.TaskStatusFailed)

	runner.mu.Lock()
	delete(runner.failWith, source(1))
	runner.mu.Unlock()

	if err := s.Restart(task.ID); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	restarted := waitForStatus(t, s, task.ID, model.TaskStatusActive)
	if restarted.Err != nil || restarted.LastError != "" {
		t.Errorf("Expected error state to be reset, got %+v", restarted)
	}
	if runner.prepared(source(1)) != 2 {
		t.Errorf("Restart should prepare a fresh job, prepared %d", runner.prepared(source(1)))
	}

	if err := s.Restart(task.ID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition restarting an active task, got %v", err)
	}

	if err := s.Remove(task.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := s.GetTask(task.ID); ok {
		t.Error("Expected task to be removed")
	}
	if n := runner.job(t, source(1), 1).cleanups.Load(); n != 1 {
		t.Errorf("Expected removed active task to be cleaned up, got %d", n)
	}
	if err := s.Remove(task.ID); !errors.Is(err, model.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestPrepareFailure(t *testing.T) {
	s, runner := newTestService(t, 1)
	runner.prepareErr = errors.New("no muxer")

	task, err := s.AddTask(source(1), model.KindSegmented)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != model.TaskStatusFailed {
		t.Errorf("Expected Failed, got %s", task.Status)
	}
	if s.activeCount != 0 {
		t.Errorf("Expected no active slot to be held, got %d", s.activeCount)
	}
}

func TestPauseAllResumeAll(t *testing.T) {
	s, _ := newTestService(t, 2)
	for i := 0; i < 3; i++ {
		if _, err := s.AddTask(source(i), model.KindSegmented); err != nil {
			t.Fatal(err)
		}
	}

	s.PauseAll()
	if counts := statusCounts(s); counts[model.TaskStatusPaused] != 3 {
		t.Fatalf("Expected all tasks paused, got %v", counts)
	}

	s.ResumeAll()
	counts := statusCounts(s)
	if counts[model.TaskStatusActive] != 2 || counts[model.TaskStatusQueued] != 1 {
		t.Errorf("Expected 2 Active and 1 Queued after resume, got %v", counts)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestNightModeDefersAdmission(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local)
	clock := &fakeClock{t: day.Add(30 * time.Minute)}
	window := model.NightWindow{Enabled: true, Start: time.Hour, End: 7 * time.Hour}

	s := NewService(Options{MaxParallel: 3, NightWindow: window, Now: clock.Now})
	runner := newFakeRunner()
	s.RegisterRunner(model.KindSegmented, runner)
	defer s.Close()

	early, _ := s.AddTask(source(1), model.KindSegmented)
	if early.Status != model.TaskStatusActive {
		t.Fatalf("Expected admission outside the window, got %s", early.Status)
	}

	clock.Set(day.Add(2 * time.Hour))
	late, _ := s.AddTask(source(2), model.KindSegmented)
	if late.Status != model.TaskStatusQueued {
		t.Fatalf("Expected admission to be held during night mode, got %s", late.Status)
	}
	if task, _ := s.GetTask(early.ID); task.Status != model.TaskStatusActive {
		t.Errorf("Night mode must not interrupt active tasks, got %s", task.Status)
	}

	s.tasksMutex.Lock()
	scheduled := s.nightTimer != nil
	s.tasksMutex.Unlock()
	if !scheduled {
		t.Error("Expected a timer for the end of the window")
	}

	clock.Set(day.Add(7*time.Hour + time.Minute))
	s.onNightEnd()
	waitForStatus(t, s, late.ID, model.TaskStatusActive)
}

func TestSetNightWindowReleasesHeldTasks(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 23, 0, 0, 0, time.Local)}
	s := NewService(Options{
		NightWindow: model.NightWindow{Enabled: true, Start: 22 * time.Hour, End: 6 * time.Hour},
		Now:         clock.Now,
	})
	s.RegisterRunner(model.KindSegmented, newFakeRunner())
	defer s.Close()

	task, _ := s.AddTask(source(1), model.KindSegmented)
	if task.Status != model.TaskStatusQueued {
		t.Fatalf("Expected Queued inside a wrapping window, got %s", task.Status)
	}

	s.SetNightWindow(model.NightWindow{})
	waitForStatus(t, s, task.ID, model.TaskStatusActive)
}

type staticSettings struct {
	parallel int
	speed    int64
	night    model.NightWindow
}

func (c staticSettings) GetMaxParallelDownloads() int      { return c.parallel }
func (c staticSettings) GetSpeedLimitBytes() int64         { return c.speed }
func (c staticSettings) GetNightWindow() model.NightWindow { return c.night }

func TestApplySettings(t *testing.T) {
	s, _ := newTestService(t, 1)
	s.ApplySettings(staticSettings{parallel: 4, speed: 512 * 1024})

	if s.maxParallel != 4 {
		t.Errorf("Expected maxParallel 4, got %d", s.maxParallel)
	}
	if s.Throttle().Limit() != 512*1024 {
		t.Errorf("Expected speed limit 524288, got %d", s.Throttle().Limit())
	}

	s.SetSpeedLimit(0)
	if s.Throttle().Limit() != 0 {
		t.Errorf("Expected unlimited after reset, got %d", s.Throttle().Limit())
	}

	s.SetMaxParallelDownloads(0)
	if s.maxParallel != 1 {
		t.Errorf("Expected limit to be clamped to 1, got %d", s.maxParallel)
	}
}

func TestSubscribe(t *testing.T) {
	s, runner := newTestService(t, 1)
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	task, _ := s.AddTask(source(1), model.KindSegmented)
	close(runner.job(t, source(1), 0).release)

	seen := make(map[model.TaskStatus]bool)
	timeout := time.After(5 * time.Second)
	for !seen[model.TaskStatusCompleted] {
		select {
		case ev := <-events:
			if ev.ID != task.ID {
				t.Fatalf("Unexpected task id %s", ev.ID)
			}
			seen[ev.Status] = true
		case <-timeout:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	if !seen[model.TaskStatusQueued] || !seen[model.TaskStatusActive] {
		t.Errorf("Expected Queued and Active snapshots, saw %v", seen)
	}
}

func TestCloseStopsRunningJobs(t *testing.T) {
	s := NewService(Options{MaxParallel: 2})
	runner := newFakeRunner()
	s.RegisterRunner(model.KindSegmented, runner)
	events, _ := s.Subscribe()

	task, _ := s.AddTask(source(1), model.KindSegmented)
	s.Close()

	if got, _ := s.GetTask(task.ID); got.Status != model.TaskStatusPaused {
		t.Errorf("Expected Paused after close, got %s", got.Status)
	}
	if n := runner.job(t, source(1), 0).cleanups.Load(); n != 1 {
		t.Errorf("Expected temporary files released on close, got %d cleanups", n)
	}
	for range events {
	}
	if _, err := s.Enqueue(source(2), model.KindSegmented); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
}
