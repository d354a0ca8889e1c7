// Package config defines the TrayWave settings file and helpers for loading
// or saving it to disk.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// AppID is the stable application identifier used by fyne.
	AppID = "io.github.edward-ap.traywave"
	// AppConfigSubdir is the directory under os.UserConfigDir.
	AppConfigSubdir = "traywave"
	// AppConfigName is the settings file.
	AppConfigName = "config.json"
	// StationsFileName sits next to the settings file.
	StationsFileName = "stations.json"

	// DefaultVolume is the initial playback level.
	DefaultVolume = 50
	// DefaultBitrate is recorded when a station is played without one.
	DefaultBitrate = "128 kbps"
)

// Metadata modes select how now-playing information is obtained.
const (
	MetadataAuto     = "auto"
	MetadataReader   = "reader"
	MetadataPlatform = "platform"
)

// LastStation is the station played most recently.
type LastStation struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Bitrate string `json:"bitrate"`
}

// Settings are the values persisted between sessions.
type Settings struct {
	ShowSongInfo    bool         `json:"show_song_info"`
	Volume          int          `json:"volume"`
	Muted           bool         `json:"muted"`
	LastStation     *LastStation `json:"last_station"`
	MetadataMode    string       `json:"metadata_mode"`
	MetadataCharset string       `json:"metadata_charset"`
	SleepQuit       bool         `json:"sleep_quit"`
}

// Config is the settings file. Its Remember* methods save on every change.
type Config struct {
	Settings

	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// ConfigDir resolves the writable directory that holds the settings file.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, AppConfigSubdir), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, AppConfigName), nil
}

// StationsPath returns the default location of stations.json.
func StationsPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, StationsFileName), nil
}

// Load reads the settings from the default location.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the settings at path. Missing keys keep their defaults. A
// missing file yields defaults and an attempt to write them; a broken file
// yields defaults together with the parse error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Still return defaults when the first save fails.
			_ = cfg.Save()
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, &cfg.Settings); err != nil {
		fresh := Default()
		fresh.path = path
		return fresh, errors.Wrap(err, "config parse error")
	}
	cfg.applyRuntimeDefaults()
	return cfg, nil
}

// Default builds an in-memory config populated with defaults. It is not bound
// to a file until loaded.
func Default() *Config {
	return &Config{
		Settings: Settings{
			ShowSongInfo: true,
			Volume:       DefaultVolume,
			MetadataMode: MetadataAuto,
		},
		log: zerolog.Nop(),
	}
}

// SetLogger sets the logger used for failed background saves.
func (c *Config) SetLogger(l zerolog.Logger) {
	c.mu.Lock()
	c.log = l
	c.mu.Unlock()
}

// Path reports where Save writes.
func (c *Config) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Save persists the configuration, creating directories as needed. Configs
// that were never loaded from a file are kept in memory only.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Config) saveLocked() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	b, err := json.MarshalIndent(c.Settings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrapf(os.WriteFile(c.path, b, 0o644), "write %s", c.path)
}

// update applies fn and saves, logging failures.
func (c *Config) update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	if err := c.saveLocked(); err != nil {
		c.log.Warn().Err(err).Msg("save settings")
	}
}

// RememberVolume stores the playback volume.
func (c *Config) RememberVolume(v int) {
	c.update(func() { c.Volume = clampVolume(v) })
}

// RememberMuted stores the mute flag.
func (c *Config) RememberMuted(m bool) {
	c.update(func() { c.Muted = m })
}

// RememberStation stores the station that started playing.
func (c *Config) RememberStation(name, url, bitrate string) {
	c.update(func() { c.LastStation = &LastStation{Name: name, URL: url, Bitrate: bitrate} })
}

// SetShowSongInfo toggles the song line in the tray header.
func (c *Config) SetShowSongInfo(show bool) {
	c.update(func() { c.ShowSongInfo = show })
}

// SetSleepQuit stores whether the sleep timer quits the application.
func (c *Config) SetSleepQuit(quit bool) {
	c.update(func() { c.SleepQuit = quit })
}

// Snapshot returns a copy of the persisted values.
func (c *Config) Snapshot() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.Settings
	if c.LastStation != nil {
		ls := *c.LastStation
		out.LastStation = &ls
	}
	return out
}

// applyRuntimeDefaults normalizes values after a load.
func (c *Config) applyRuntimeDefaults() {
	c.Volume = clampVolume(c.Volume)
	switch strings.ToLower(strings.TrimSpace(c.MetadataMode)) {
	case MetadataReader:
		c.MetadataMode = MetadataReader
	case MetadataPlatform:
		c.MetadataMode = MetadataPlatform
	default:
		c.MetadataMode = MetadataAuto
	}
	c.MetadataCharset = strings.TrimSpace(c.MetadataCharset)
	if c.LastStation != nil {
		if strings.TrimSpace(c.LastStation.URL) == "" {
			c.LastStation = nil
		} else if c.LastStation.Bitrate == "" {
			c.LastStation.Bitrate = DefaultBitrate
		}
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
