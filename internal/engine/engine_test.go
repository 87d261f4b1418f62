package engine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ytget/nexus-downloader/internal/model"
)

func newStreamServer(t *testing.T, segments int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/live/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n")
		for i := 0; i < segments; i++ {
			fmt.Fprintf(&b, "#EXTINF:4.0,\nseg%d.ts\n", i)
		}
		b.WriteString("#EXT-X-ENDLIST\n")
		w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/live/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/live/"), ".ts")
		w.Write([]byte("<" + name + ">"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		OutputDir:      filepath.Join(dir, "out"),
		TempDir:        filepath.Join(dir, "tmp"),
		ProfilesPath:   filepath.Join(dir, "profiles.json"),
		FFmpegPath:     "nexus-missing-ffmpeg-binary",
		SegmentWorkers: 3,
		MaxParallel:    2,
	}
}

func waitFor(t *testing.T, ch <-chan model.DownloadTask, id string, status model.TaskStatus) model.DownloadTask {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case task, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed")
			}
			if task.ID == id && task.Status == status {
				return task
			}
			if task.ID == id && task.Status == model.TaskStatusFailed && status != model.TaskStatusFailed {
				t.Fatalf("task failed: %s", task.LastError)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", status)
		}
	}
}

func TestEngineStreamWithoutFFmpeg(t *testing.T) {
	srv := newStreamServer(t, 5)
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		t.Fatal(err)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if !e.RawMux {
		t.Fatal("expected byte concatenation fallback without ffmpeg")
	}
	if e.Identities.Len() == 0 {
		t.Fatal("rotator has no profiles")
	}

	updates, unsubscribe := e.Service.Subscribe()
	defer unsubscribe()

	task, err := e.Service.AddTask(srv.URL+"/live/index.m3u8", model.KindSegmented)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	done := waitFor(t, updates, task.ID, model.TaskStatusCompleted)

	if filepath.Base(done.OutputPath) != "index.ts" {
		t.Errorf("unexpected output name %s", done.OutputPath)
	}
	data, err := os.ReadFile(done.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "<seg0><seg1><seg2><seg3><seg4>" {
		t.Errorf("segments out of order: %q", data)
	}
	if done.SegmentsDone != 5 || done.SegmentsTotal != 5 {
		t.Errorf("segments %d/%d", done.SegmentsDone, done.SegmentsTotal)
	}

	leftovers, err := os.ReadDir(cfg.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temporary segments left behind: %d entries", len(leftovers))
	}
}

func TestEngineCatalogImport(t *testing.T) {
	catalog := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-name=\"News\" group-title=\"Info\",News HD\n" +
		"news/index.m3u8\n" +
		"#EXTINF:-1,Movies\n" +
		"http://other.example/movies.ts\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(catalog))
	}))
	defer srv.Close()

	e, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	updates, unsubscribe := e.Service.Subscribe()
	defer unsubscribe()

	task, err := e.Service.AddTask(srv.URL+"/lists/all.m3u", model.KindCatalogImport)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	done := waitFor(t, updates, task.ID, model.TaskStatusCompleted)

	if len(done.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(done.Channels))
	}
	if done.Channels[0].URL != srv.URL+"/lists/news/index.m3u8" {
		t.Errorf("relative channel URL not resolved: %s", done.Channels[0].URL)
	}
	if done.Channels[1].Group != model.DefaultChannelGroup {
		t.Errorf("expected default group, got %q", done.Channels[1].Group)
	}
}
