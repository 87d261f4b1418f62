// Package engine assembles the download stack shared by the desktop app and
// the command line tool: identity rotation, HTTP clients, the segmented stream
// downloader, the muxer and the download manager with its runners.
package engine

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/config"
	"github.com/ytget/nexus-downloader/internal/download"
	"github.com/ytget/nexus-downloader/internal/hls"
	"github.com/ytget/nexus-downloader/internal/identity"
	"github.com/ytget/nexus-downloader/internal/merge"
	"github.com/ytget/nexus-downloader/internal/model"
	"github.com/ytget/nexus-downloader/internal/platform"
	"github.com/ytget/nexus-downloader/internal/transport"
)

// Config holds everything needed to build an Engine
type Config struct {
	OutputDir         string
	TempDir           string
	FFmpegPath        string
	ProfilesPath      string
	SegmentWorkers    int
	RequestsPerSecond int
	MaxParallel       int
	SpeedLimit        int64
	NightWindow       model.NightWindow
	InsecureTLS       bool
}

// FromSettings builds a Config from persisted preferences
func FromSettings(s *config.Settings) Config {
	return Config{
		OutputDir:      s.GetDownloadDirectory(),
		FFmpegPath:     s.GetFFmpegPath(),
		ProfilesPath:   s.GetProfilesPath(),
		SegmentWorkers: s.GetSegmentWorkers(),
		MaxParallel:    s.GetMaxParallelDownloads(),
		SpeedLimit:     s.GetSpeedLimitBytes(),
		NightWindow:    s.GetNightWindow(),
		InsecureTLS:    s.GetInsecureTLS(),
	}
}

// Engine is a wired download stack
type Engine struct {
	Service    *download.Service
	Identities *identity.Rotator
	Clients    *transport.Factory
	Catalog    *download.CatalogRunner

	// RawMux is true when ffmpeg is unavailable and segments are joined as-is
	RawMux bool
}

// New wires the stack; tasks are written into cfg.OutputDir
func New(cfg Config) (*Engine, error) {
	logger := log.WithField("component", "engine")

	if cfg.OutputDir == "" {
		dir, err := platform.GetHomeDownloadsDir()
		if err != nil {
			return nil, fmt.Errorf("resolve output directory: %w", err)
		}
		cfg.OutputDir = dir
	}
	if err := platform.CreateDirectoryIfNotExists(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if cfg.ProfilesPath == "" {
		cfg.ProfilesPath = config.DefaultProfilesPath()
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = config.DefaultFFmpegPath
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	rotator := identity.NewRotator(identity.NewFileStore(cfg.ProfilesPath))
	clients := transport.NewFactory(transport.Options{InsecureSkipVerify: cfg.InsecureTLS})
	throttle := transport.NewThrottle(cfg.SpeedLimit)

	var muxer merge.Muxer
	rawMux := false
	ffmpeg := merge.NewFFmpegMuxer(cfg.FFmpegPath)
	if err := ffmpeg.CheckAvailable(); err != nil {
		logger.WithError(err).Warn("ffmpeg not found, segments will be joined without remuxing")
		muxer = merge.NewBinaryMuxer()
		rawMux = true
	} else {
		muxer = ffmpeg
	}

	downloader := hls.NewDownloader(clients, rotator, muxer, hls.Options{
		Workers:           cfg.SegmentWorkers,
		TempDir:           cfg.TempDir,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Throttle:          throttle,
	})

	svc := download.NewService(download.Options{
		MaxParallel: cfg.MaxParallel,
		Throttle:    throttle,
		NightWindow: cfg.NightWindow,
	})

	stream := download.NewStreamRunner(downloader, cfg.OutputDir)
	if rawMux {
		stream.SetOutputExt(download.RawStreamOutputExt)
	}
	catalog := download.NewCatalogRunner(clients, rotator)
	svc.RegisterRunner(model.KindSegmented, stream)
	svc.RegisterRunner(model.KindDirect, download.NewDirectRunner(clients, rotator, throttle, cfg.OutputDir))
	svc.RegisterRunner(model.KindCatalogImport, catalog)

	logger.WithFields(log.Fields{
		"output":   cfg.OutputDir,
		"workers":  downloader.Workers(),
		"parallel": cfg.MaxParallel,
		"profiles": rotator.Len(),
	}).Info("download engine ready")

	return &Engine{
		Service:    svc,
		Identities: rotator,
		Clients:    clients,
		Catalog:    catalog,
		RawMux:     rawMux,
	}, nil
}

// Close stops running tasks and removes their temporary files
func (e *Engine) Close() {
	e.Service.Close()
}
