package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ytget/nexus-downloader/internal/config"
	"github.com/ytget/nexus-downloader/internal/engine"
)

// Environment variables read as flag defaults, also from a .env file
const (
	EnvFFmpeg    = "NEXUS_FFMPEG"
	EnvOutputDir = "NEXUS_OUTPUT_DIR"
	EnvProfiles  = "NEXUS_PROFILES"
	EnvWorkers   = "NEXUS_WORKERS"
)

var version = "dev"

var (
	outputDir    string
	ffmpegPath   string
	profilesPath string
	workers      int
	parallel     int
	speedKB      int
	rps          int
	insecure     bool
	verbose      bool
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// engineConfig builds the engine configuration from flags
func engineConfig() engine.Config {
	return engine.Config{
		OutputDir:         outputDir,
		FFmpegPath:        ffmpegPath,
		ProfilesPath:      profilesPath,
		SegmentWorkers:    workers,
		RequestsPerSecond: rps,
		MaxParallel:       parallel,
		SpeedLimit:        int64(speedKB) * 1024,
		InsecureTLS:       insecure,
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nexus-dl",
		Short:         "Download HLS streams, files and IPTV catalogs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			log.SetOutput(os.Stderr)
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&outputDir, "output-dir", "o", envOr(EnvOutputDir, ""), "Directory for finished downloads (default ~/Downloads)")
	flags.StringVar(&ffmpegPath, "ffmpeg", envOr(EnvFFmpeg, config.DefaultFFmpegPath), "Path to ffmpeg executable")
	flags.StringVar(&profilesPath, "profiles", envOr(EnvProfiles, config.DefaultProfilesPath()), "Path to custom identity profiles JSON")
	flags.IntVarP(&workers, "workers", "w", envIntOr(EnvWorkers, config.DefaultSegmentWorkers), "Concurrent segment downloads per stream")
	flags.IntVarP(&parallel, "parallel", "p", config.DefaultMaxParallel, "Concurrent tasks")
	flags.IntVar(&speedKB, "speed-kb", 0, "Global speed limit in KB/s, 0 = unlimited")
	flags.IntVar(&rps, "rps", 0, "Segment requests per second per stream, 0 = unlimited")
	flags.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd(), newCatalogCmd(), newProfilesCmd())
	return rootCmd
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
