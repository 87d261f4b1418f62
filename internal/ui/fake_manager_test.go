package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/ytget/nexus-downloader/internal/model"
)

// fakeManager records calls made by the UI
type fakeManager struct {
	mu       sync.Mutex
	added    []model.DownloadTask
	callback func(model.DownloadTask)
}

func newFakeManager() *fakeManager {
	return &fakeManager{}
}

func (m *fakeManager) Enqueue(source string, kind model.TaskKind) (string, error) {
	t, err := m.AddTask(source, kind)
	return t.ID, err
}

func (m *fakeManager) Start(string) error { return nil }

func (m *fakeManager) AddTask(source string, kind model.TaskKind) (model.DownloadTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := model.DownloadTask{
		ID:        fmt.Sprintf("task-%d", len(m.added)+1),
		Source:    source,
		Kind:      kind,
		Status:    model.TaskStatusQueued,
		ETASec:    -1,
		CreatedAt: time.Now(),
	}
	m.added = append(m.added, t)
	return t, nil
}

func (m *fakeManager) GetTask(id string) (model.DownloadTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.added {
		if t.ID == id {
			return t, true
		}
	}
	return model.DownloadTask{}, false
}

func (m *fakeManager) GetAllTasks() []model.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DownloadTask(nil), m.added...)
}

func (m *fakeManager) Pause(string) error   { return nil }
func (m *fakeManager) Resume(string) error  { return nil }
func (m *fakeManager) Cancel(string) error  { return nil }
func (m *fakeManager) Restart(string) error { return nil }
func (m *fakeManager) Remove(string) error  { return nil }
func (m *fakeManager) PauseAll()            {}
func (m *fakeManager) ResumeAll()           {}

func (m *fakeManager) Subscribe() (<-chan model.DownloadTask, func()) {
	ch := make(chan model.DownloadTask)
	return ch, func() {}
}

func (m *fakeManager) SetUpdateCallback(cb func(model.DownloadTask)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

func (m *fakeManager) SetMaxParallelDownloads(int)      {}
func (m *fakeManager) SetSpeedLimit(int64)              {}
func (m *fakeManager) SetNightWindow(model.NightWindow) {}
