package config

import (
	"os"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/platform"
)

// Settings keys for Fyne preferences
const (
	KeyDownloadDir     = "download_directory"
	KeyMaxParallel     = "max_parallel_downloads"
	KeySpeedLimitKB    = "speed_limit_kb"
	KeyNightEnabled    = "night_mode_enabled"
	KeyNightStart      = "night_mode_start"
	KeyNightEnd        = "night_mode_end"
	KeySegmentWorkers  = "segment_workers"
	KeyFFmpegPath      = "ffmpeg_path"
	KeyProfilesPath    = "profiles_path"
	KeyLanguage        = "app_language"
	KeyInsecureTLS     = "insecure_tls"
	KeyAutoRevealFiles = "auto_reveal_on_complete"
)

// Default values
const (
	DefaultMaxParallel     = 2
	MaxParallelLimit       = 10
	DefaultSegmentWorkers  = 6
	MaxSegmentWorkers      = 32
	DefaultSpeedLimitKB    = 0
	DefaultNightStart      = "01:00"
	DefaultNightEnd        = "07:00"
	DefaultFFmpegPath      = "ffmpeg"
	DefaultLanguage        = "system"
	DefaultAutoRevealFiles = false
	ProfilesFileName       = "profiles.json"
	appConfigDirName       = "nexus-downloader"
)

// Settings manages application configuration
type Settings struct {
	app fyne.App
}

// NewSettings creates a new settings manager
func NewSettings(app fyne.App) *Settings {
	return &Settings{app: app}
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	dir := s.app.Preferences().String(KeyDownloadDir)
	if dir == "" {
		// Use system default Downloads directory
		defaultDir, err := platform.GetHomeDownloadsDir()
		if err != nil {
			defaultDir = filepath.Join(os.TempDir(), "downloads")
		}
		s.SetDownloadDirectory(defaultDir)
		return defaultDir
	}
	return dir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.app.Preferences().SetString(KeyDownloadDir, dir)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.app.Preferences().Int(KeyMaxParallel)
	if value <= 0 {
		s.SetMaxParallelDownloads(DefaultMaxParallel)
		return DefaultMaxParallel
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	s.app.Preferences().SetInt(KeyMaxParallel, clamp(count, 1, MaxParallelLimit))
}

// GetSpeedLimitKB returns the global speed limit in KB/s, 0 = unlimited
func (s *Settings) GetSpeedLimitKB() int {
	value := s.app.Preferences().IntWithFallback(KeySpeedLimitKB, DefaultSpeedLimitKB)
	if value < 0 {
		return 0
	}
	return value
}

// SetSpeedLimitKB sets the global speed limit in KB/s
func (s *Settings) SetSpeedLimitKB(kb int) {
	if kb < 0 {
		kb = 0
	}
	s.app.Preferences().SetInt(KeySpeedLimitKB, kb)
}

// GetSpeedLimitBytes returns the global speed limit in bytes per second
func (s *Settings) GetSpeedLimitBytes() int64 {
	return int64(s.GetSpeedLimitKB()) * 1024
}

// GetNightWindow returns the night mode window. Invalid stored clock values
// fall back to the defaults.
func (s *Settings) GetNightWindow() model.NightWindow {
	prefs := s.app.Preferences()
	return model.NightWindow{
		Enabled: prefs.BoolWithFallback(KeyNightEnabled, false),
		Start:   parseClockOr(prefs.StringWithFallback(KeyNightStart, DefaultNightStart), DefaultNightStart),
		End:     parseClockOr(prefs.StringWithFallback(KeyNightEnd, DefaultNightEnd), DefaultNightEnd),
	}
}

// SetNightWindow stores the night mode window
func (s *Settings) SetNightWindow(w model.NightWindow) {
	prefs := s.app.Preferences()
	prefs.SetBool(KeyNightEnabled, w.Enabled)
	prefs.SetString(KeyNightStart, model.FormatClock(w.Start))
	prefs.SetString(KeyNightEnd, model.FormatClock(w.End))
}

// GetSegmentWorkers returns the per-stream segment worker count
func (s *Settings) GetSegmentWorkers() int {
	value := s.app.Preferences().Int(KeySegmentWorkers)
	if value <= 0 {
		s.SetSegmentWorkers(DefaultSegmentWorkers)
		return DefaultSegmentWorkers
	}
	return value
}

// SetSegmentWorkers sets the per-stream segment worker count
func (s *Settings) SetSegmentWorkers(count int) {
	s.app.Preferences().SetInt(KeySegmentWorkers, clamp(count, 1, MaxSegmentWorkers))
}

// GetFFmpegPath returns the ffmpeg binary used to merge segments
func (s *Settings) GetFFmpegPath() string {
	return s.app.Preferences().StringWithFallback(KeyFFmpegPath, DefaultFFmpegPath)
}

// SetFFmpegPath sets the ffmpeg binary path
func (s *Settings) SetFFmpegPath(path string) {
	if path == "" {
		path = DefaultFFmpegPath
	}
	s.app.Preferences().SetString(KeyFFmpegPath, path)
}

// GetProfilesPath returns the custom identity profile file
func (s *Settings) GetProfilesPath() string {
	if p := s.app.Preferences().String(KeyProfilesPath); p != "" {
		return p
	}
	return DefaultProfilesPath()
}

// SetProfilesPath sets the custom identity profile file
func (s *Settings) SetProfilesPath(path string) {
	s.app.Preferences().SetString(KeyProfilesPath, path)
}

// GetInsecureTLS returns whether TLS certificate verification is disabled
func (s *Settings) GetInsecureTLS() bool {
	return s.app.Preferences().BoolWithFallback(KeyInsecureTLS, false)
}

// SetInsecureTLS sets whether TLS certificate verification is disabled
func (s *Settings) SetInsecureTLS(insecure bool) {
	s.app.Preferences().SetBool(KeyInsecureTLS, insecure)
}

// GetLanguage returns the configured language
func (s *Settings) GetLanguage() string {
	lang := s.app.Preferences().String(KeyLanguage)
	if lang == "" {
		s.SetLanguage(DefaultLanguage)
		return DefaultLanguage
	}
	return lang
}

// SetLanguage sets the application language
func (s *Settings) SetLanguage(lang string) {
	s.app.Preferences().SetString(KeyLanguage, lang)
}

// GetAutoRevealOnComplete returns whether to auto-reveal completed downloads
func (s *Settings) GetAutoRevealOnComplete() bool {
	return s.app.Preferences().BoolWithFallback(KeyAutoRevealFiles, DefaultAutoRevealFiles)
}

// SetAutoRevealOnComplete sets whether to auto-reveal completed downloads
func (s *Settings) SetAutoRevealOnComplete(autoReveal bool) {
	s.app.Preferences().SetBool(KeyAutoRevealFiles, autoReveal)
}

// DefaultProfilesPath returns profiles.json inside the user config directory
func DefaultProfilesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appConfigDirName, ProfilesFileName)
}

func parseClockOr(value, fallback string) time.Duration {
	d, err := model.ParseClock(value)
	if err != nil {
		log.WithError(err).Warn("invalid night mode clock, using default")
		d, _ = model.ParseClock(fallback)
	}
	return d
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
