package config

import (
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"

	"github.com/ytget/nexus-downloader/internal/model"
)

func TestNewSettings(t *testing.T) {
	app := test.NewApp()
	settings := NewSettings(app)

	if settings.app != app {
		t.Error("Settings app reference should match provided app")
	}
}

func TestDownloadDirectory(t *testing.T) {
	settings := NewSettings(test.NewApp())

	// Test default value
	if dir := settings.GetDownloadDirectory(); dir == "" {
		t.Error("Download directory should not be empty")
	}

	customDir := "/custom/downloads"
	settings.SetDownloadDirectory(customDir)
	if got := settings.GetDownloadDirectory(); got != customDir {
		t.Errorf("Expected download directory %s, got %s", customDir, got)
	}
}

func TestMaxParallelDownloads(t *testing.T) {
	settings := NewSettings(test.NewApp())

	if got := settings.GetMaxParallelDownloads(); got != DefaultMaxParallel {
		t.Errorf("Expected default max parallel %d, got %d", DefaultMaxParallel, got)
	}

	tests := []struct {
		input    int
		expected int
	}{
		{5, 5},
		{0, 1},
		{15, MaxParallelLimit},
	}
	for _, tt := range tests {
		settings.SetMaxParallelDownloads(tt.input)
		if got := settings.GetMaxParallelDownloads(); got != tt.expected {
			t.Errorf("SetMaxParallelDownloads(%d): got %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestSpeedLimit(t *testing.T) {
	settings := NewSettings(test.NewApp())

	if settings.GetSpeedLimitKB() != 0 || settings.GetSpeedLimitBytes() != 0 {
		t.Error("Expected unlimited speed by default")
	}

	settings.SetSpeedLimitKB(512)
	if got := settings.GetSpeedLimitBytes(); got != 512*1024 {
		t.Errorf("Expected 524288 bytes/s, got %d", got)
	}

	settings.SetSpeedLimitKB(-3)
	if got := settings.GetSpeedLimitKB(); got != 0 {
		t.Errorf("Negative limit should be stored as 0, got %d", got)
	}
}

func TestNightWindow(t *testing.T) {
	app := test.NewApp()
	settings := NewSettings(app)

	w := settings.GetNightWindow()
	if w.Enabled || w.Start != time.Hour || w.End != 7*time.Hour {
		t.Errorf("Unexpected default window %+v", w)
	}

	custom := model.NightWindow{Enabled: true, Start: 23*time.Hour + 30*time.Minute, End: 6 * time.Hour}
	settings.SetNightWindow(custom)
	if got := settings.GetNightWindow(); got != custom {
		t.Errorf("Expected %+v, got %+v", custom, got)
	}

	// Corrupt values fall back to defaults
	app.Preferences().SetString(KeyNightStart, "25:99")
	if got := settings.GetNightWindow(); got.Start != time.Hour {
		t.Errorf("Expected fallback start 01:00, got %s", model.FormatClock(got.Start))
	}
}

func TestSegmentWorkers(t *testing.T) {
	settings := NewSettings(test.NewApp())

	if got := settings.GetSegmentWorkers(); got != DefaultSegmentWorkers {
		t.Errorf("Expected default %d workers, got %d", DefaultSegmentWorkers, got)
	}
	settings.SetSegmentWorkers(100)
	if got := settings.GetSegmentWorkers(); got != MaxSegmentWorkers {
		t.Errorf("Expected clamp to %d, got %d", MaxSegmentWorkers, got)
	}
}

func TestPathsAndFlags(t *testing.T) {
	settings := NewSettings(test.NewApp())

	if got := settings.GetFFmpegPath(); got != DefaultFFmpegPath {
		t.Errorf("Expected default ffmpeg path, got %s", got)
	}
	settings.SetFFmpegPath("/opt/bin/ffmpeg")
	if got := settings.GetFFmpegPath(); got != "/opt/bin/ffmpeg" {
		t.Errorf("Unexpected ffmpeg path %s", got)
	}
	settings.SetFFmpegPath("")
	if got := settings.GetFFmpegPath(); got != DefaultFFmpegPath {
		t.Errorf("Empty path should reset to default, got %s", got)
	}

	if filepath.Base(settings.GetProfilesPath()) != ProfilesFileName {
		t.Errorf("Unexpected default profiles path %s", settings.GetProfilesPath())
	}

	if settings.GetInsecureTLS() {
		t.Error("TLS verification must be on by default")
	}
	settings.SetInsecureTLS(true)
	if !settings.GetInsecureTLS() {
		t.Error("Expected insecure TLS to be stored")
	}
}

func TestLanguage(t *testing.T) {
	settings := NewSettings(test.NewApp())

	if got := settings.GetLanguage(); got != DefaultLanguage {
		t.Errorf("Expected default language %s, got %s", DefaultLanguage, got)
	}
	settings.SetLanguage("tr")
	if got := settings.GetLanguage(); got != "tr" {
		t.Errorf("Expected tr, got %s", got)
	}
}
