package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/edward-ap/traywave/internal/config"
	"github.com/edward-ap/traywave/internal/metadata"
	"github.com/edward-ap/traywave/internal/player"
	"github.com/edward-ap/traywave/internal/stations"
	"github.com/edward-ap/traywave/internal/tray"
)

func main() {
	var (
		trace        bool
		level        string
		logFile      string
		stationsPath string
		resume       bool
	)
	flag.BoolVar(&trace, "traceLog", false, "enable verbose libVLC logging to vlc.log and debug output")
	flag.StringVar(&level, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&logFile, "log-file", "", "write JSON logs to file instead of stderr")
	flag.StringVar(&stationsPath, "stations", "", "stations file (default: next to config.json)")
	flag.BoolVar(&resume, "resume", false, "start playing the last station")
	flag.Parse()

	closeLog, err := setupLogging(level, logFile, trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "traywave:", err)
		os.Exit(2)
	}
	defer closeLog()
	player.SetTraceLoggingEnabled(trace)

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("config load, using defaults")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.SetLogger(log.Logger)

	catalog := stations.New(resolveStationsPath(stationsPath))
	if err := catalog.Load(); err != nil {
		log.Warn().Err(err).Str("path", catalog.Path()).Msg("stations load, using defaults")
	}
	log.Info().Str("config", cfg.Path()).Str("stations", catalog.Path()).
		Int("categories", len(catalog.Categories())).Msg("starting")

	set := cfg.Snapshot()
	charset, err := metadata.CharsetEncoding(set.MetadataCharset)
	if err != nil {
		log.Warn().Err(err).Msg("metadata charset ignored")
	}
	metaLog := log.Logger.With().Str("component", "metadata").Logger()
	provider := metadata.NewProvider(nil, &metaLog, metadata.ProviderOptions{
		Reader:    metadata.ReaderOptions{Charset: charset},
		Fallbacks: true,
	})

	ctl := player.New(
		player.NewVLCBackend(log.Logger.With().Str("component", "vlc").Logger()),
		provider,
		cfg,
		log.Logger.With().Str("component", "player").Logger(),
		player.WithMetadataMode(player.ParseMetadataMode(set.MetadataMode)),
	)
	if err := ctl.Init(set.Volume, set.Muted); err != nil {
		log.Fatal().Err(err).Msg("player init")
	}

	app, err := tray.New(ctl, catalog, cfg, log.Logger.With().Str("component", "tray").Logger())
	if err != nil {
		ctl.Close()
		log.Fatal().Err(err).Msg("tray")
	}
	if resume {
		app.Resume()
	}
	app.Run()
}

// setupLogging configures the global zerolog logger and returns a closer for
// the log file, if any.
func setupLogging(level, file string, trace bool) (func(), error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if trace && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	closer := func() {}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
		closer = func() { _ = f.Close() }
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func resolveStationsPath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	p, err := config.StationsPath()
	if err != nil {
		log.Warn().Err(err).Msg("stations path")
		return config.StationsFileName
	}
	return p
}
