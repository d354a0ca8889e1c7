// Package player drives a media backend for the tray: play/stop, volume and
// mute, the current station, now-playing metadata and the sleep timer.
package player

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/edward-ap/traywave/internal/metadata"
)

// DefaultBitrate is assumed when Play gets no bitrate.
const DefaultBitrate = "128 kbps"

const defaultPollInterval = 5 * time.Second

// MetadataMode selects where now-playing information comes from.
type MetadataMode int

const (
	// ModeAuto uses the ICY reader for FLAC/Ogg streams, whose metadata the
	// backend does not surface, and the backend's own metadata otherwise.
	ModeAuto MetadataMode = iota
	ModeReader
	ModePlatform
)

// ParseMetadataMode maps "auto", "reader" and "platform"; anything else is auto.
func ParseMetadataMode(s string) MetadataMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reader":
		return ModeReader
	case "platform":
		return ModePlatform
	}
	return ModeAuto
}

// Settings receives values that should survive a restart.
type Settings interface {
	RememberVolume(v int)
	RememberMuted(muted bool)
	RememberStation(name, url, bitrate string)
}

type nopSettings struct{}

func (nopSettings) RememberVolume(int)                     {}
func (nopSettings) RememberMuted(bool)                     {}
func (nopSettings) RememberStation(string, string, string) {}

// Option customises a Controller.
type Option func(*Controller)

// WithMetadataMode overrides the metadata source selection.
func WithMetadataMode(m MetadataMode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithPollInterval sets how often backend metadata is read.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSleepUnit sets the length of one sleep-timer "minute".
func WithSleepUnit(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.sleepUnit = d
		}
	}
}

// Controller is the playback state machine. All methods are safe for
// concurrent use; listeners run on the calling goroutine or on a worker
// goroutine and must not block.
type Controller struct {
	backend  Backend
	provider metadata.Provider
	settings Settings
	log      zerolog.Logger

	mode         MetadataMode
	pollInterval time.Duration
	sleepUnit    time.Duration

	// mu guards the fields below; never held while calling the backend or
	// listeners.
	mu               sync.Mutex
	playing          bool
	muted            bool
	volume           int
	volumeBeforeMute int
	station          string
	url              string
	bitrate          string
	artist           string
	track            string
	useReader        bool
	generation       uint64
	sleep            sleepState

	// playMu serialises Play, Stop, Close and sleep expiry so that only one
	// metadata worker exists at a time.
	playMu sync.Mutex

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup

	lmu       sync.Mutex
	listeners listeners
}

type listeners struct {
	volume   []func(int)
	state    []func()
	station  []func()
	metadata []func(artist, track string)
	sleep    []func(active bool, minutesLeft int)
	quit     []func()
}

// New builds a Controller. provider may be nil when only backend metadata is
// wanted; settings may be nil.
func New(backend Backend, provider metadata.Provider, settings Settings, log zerolog.Logger, opts ...Option) *Controller {
	if settings == nil {
		settings = nopSettings{}
	}
	c := &Controller{
		backend:      backend,
		provider:     provider,
		settings:     settings,
		log:          log,
		pollInterval: defaultPollInterval,
		sleepUnit:    time.Minute,
		volume:       50,
	}
	c.volumeBeforeMute = c.volume
	for _, opt := range opts {
		opt(c)
	}
	return c
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

// Init initialises the backend with the persisted volume and mute state.
func (c *Controller) Init(volume int, muted bool) error {
	volume = clamp(volume, 0, 100)
	if err := c.backend.Init(volume, muted); err != nil {
		return errors.Wrap(err, "init backend")
	}
	c.mu.Lock()
	c.volume, c.volumeBeforeMute, c.muted = volume, volume, muted
	c.mu.Unlock()
	return nil
}

// Close stops every worker and releases the backend.
func (c *Controller) Close() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.stopSleep()
	c.stopWatcher()
	c.backend.Release()
}

// Play switches to url. An empty bitrate means DefaultBitrate. Playing always
// unmutes.
func (c *Controller) Play(url, station, bitrate string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("play: empty url")
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = DefaultBitrate
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.stopWatcher()
	useReader := c.wantsReader(url, bitrate)

	if err := c.backend.Load(url); err != nil {
		c.stopPlayback()
		return errors.Wrapf(err, "load %s", url)
	}
	if err := c.backend.Play(); err != nil {
		c.stopPlayback()
		return errors.Wrapf(err, "play %s", url)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.playing = true
	c.station, c.url, c.bitrate = station, url, bitrate
	c.artist, c.track = "", ""
	c.useReader = useReader
	wasMuted := c.muted
	c.mu.Unlock()

	c.log.Info().Str("station", station).Str("url", url).Str("bitrate", bitrate).
		Bool("icy_reader", useReader).Msg("play")
	c.settings.RememberStation(station, url, bitrate)
	if wasMuted {
		c.ToggleMute()
	}
	c.startWatcher(gen, url, useReader)

	c.emitState()
	c.emitStation()
	return nil
}

// wantsReader decides whether the ICY reader supplies metadata.
func (c *Controller) wantsReader(url, bitrate string) bool {
	switch c.mode {
	case ModeReader:
		return c.provider != nil
	case ModePlatform:
		return false
	}
	if c.provider == nil {
		return false
	}
	u := strings.ToLower(url)
	return strings.Contains(u, ".flac") || strings.Contains(u, ".ogg") ||
		strings.Contains(strings.ToLower(bitrate), "flac")
}

// Stop halts playback and cancels the sleep timer.
func (c *Controller) Stop() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.stopSleep()
	c.stopPlayback()
}

// stopPlayback expects playMu to be held.
func (c *Controller) stopPlayback() {
	c.stopWatcher()
	if err := c.backend.Stop(); err != nil && !errors.Is(err, ErrNotInitialized) {
		c.log.Warn().Err(err).Msg("backend stop")
	}

	c.mu.Lock()
	c.generation++
	c.playing = false
	c.station, c.url, c.bitrate = "", "", ""
	c.artist, c.track = "", ""
	c.useReader = false
	c.mu.Unlock()

	c.emitState()
	c.emitStation()
	c.emitMetadata("", "")
}

// SetVolume clamps v to 0..100, applies and persists it.
func (c *Controller) SetVolume(v int) {
	v = clamp(v, 0, 100)
	if err := c.backend.SetVolume(v); err != nil {
		c.log.Warn().Err(err).Int("volume", v).Msg("set volume")
	}
	c.mu.Lock()
	c.volume = v
	if !c.muted {
		c.volumeBeforeMute = v
	}
	c.mu.Unlock()
	c.settings.RememberVolume(v)
	c.emitVolume(v)
}

// ChangeVolume moves the volume by delta.
func (c *Controller) ChangeVolume(delta int) {
	c.mu.Lock()
	v := c.volume + delta
	c.mu.Unlock()
	c.SetVolume(v)
}

// ToggleMute flips mute and returns the new state. Unmuting restores the
// volume from before the mute.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	muted := !c.muted
	c.muted = muted
	if muted {
		c.volumeBeforeMute = c.volume
	}
	restore := c.volumeBeforeMute
	c.mu.Unlock()

	if err := c.backend.SetMute(muted); err != nil {
		c.log.Warn().Err(err).Bool("muted", muted).Msg("set mute")
	}
	if !muted {
		c.SetVolume(restore)
	}
	c.settings.RememberMuted(muted)
	c.emitState()
	return muted
}

func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controller) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Controller) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Station is the name of the station playing, or "".
func (c *Controller) Station() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.station
}

func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Controller) Bitrate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitrate
}

// NowPlaying returns the last reported artist and track.
func (c *Controller) NowPlaying() (artist, track string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artist, c.track
}

// usesReader reports whether the ICY reader is the metadata source.
func (c *Controller) usesReader() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useReader
}

// ----------------- metadata workers -----------------

func (c *Controller) startWatcher(gen uint64, url string, useReader bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.watchMu.Lock()
	if c.watchCancel != nil {
		c.watchCancel()
	}
	c.watchCancel = cancel
	c.watchWG.Add(1)
	c.watchMu.Unlock()

	go func() {
		defer c.watchWG.Done()
		if useReader && c.runReader(ctx, gen, url) {
			return
		}
		c.runPlatformPoll(ctx, gen)
	}()
}

// stopWatcher cancels the metadata worker and waits for it to exit.
func (c *Controller) stopWatcher() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}
	c.watchWG.Wait()
}

// runReader follows ICY metadata until the stream ends. It returns false when
// the stream has none, so the caller can fall back to backend metadata.
func (c *Controller) runReader(ctx context.Context, gen uint64, url string) bool {
	err := c.provider.Watch(ctx, url, func(np metadata.NowPlaying) {
		if !np.Empty() {
			c.applyMetadata(gen, np.Artist, np.Track)
		}
	}, func(s metadata.Strategy) {
		c.log.Debug().Str("strategy", string(s)).Str("url", url).Msg("metadata source")
	})
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, metadata.ErrNoICY) {
		c.log.Debug().Str("url", url).Msg("no icy metadata, using backend metadata")
		return false
	}
	c.log.Info().Err(err).Str("url", url).Msg("metadata reader stopped")
	return true
}

// runPlatformPoll reads backend metadata every poll interval.
func (c *Controller) runPlatformPoll(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		raw, ok := c.backend.NowPlaying()
		if !ok {
			continue
		}
		if artist, track, ok := metadata.ParseNowPlaying(raw); ok {
			c.applyMetadata(gen, artist, track)
		}
	}
}

// applyMetadata records a new (artist, track) and notifies listeners. Stale
// updates from a previous Play and repeats are dropped.
func (c *Controller) applyMetadata(gen uint64, artist, track string) {
	c.mu.Lock()
	if gen != c.generation || !c.playing || (artist == c.artist && track == c.track) {
		c.mu.Unlock()
		return
	}
	c.artist, c.track = artist, track
	c.mu.Unlock()
	c.log.Debug().Str("artist", artist).Str("track", track).Msg("now playing")
	c.emitMetadata(artist, track)
}

// ----------------- listeners -----------------

// OnVolumeChanged registers fn for volume changes.
func (c *Controller) OnVolumeChanged(fn func(volume int)) {
	c.lmu.Lock()
	c.listeners.volume = append(c.listeners.volume, fn)
	c.lmu.Unlock()
}

// OnStateChanged registers fn for play/stop/mute changes, i.e. whenever the
// tray icon may need to change.
func (c *Controller) OnStateChanged(fn func()) {
	c.lmu.Lock()
	c.listeners.state = append(c.listeners.state, fn)
	c.lmu.Unlock()
}

func (c *Controller) OnStationChanged(fn func()) {
	c.lmu.Lock()
	c.listeners.station = append(c.listeners.station, fn)
	c.lmu.Unlock()
}

// OnMetadataChanged registers fn for now-playing changes. Both values are
// empty after Stop.
func (c *Controller) OnMetadataChanged(fn func(artist, track string)) {
	c.lmu.Lock()
	c.listeners.metadata = append(c.listeners.metadata, fn)
	c.lmu.Unlock()
}

func (c *Controller) OnSleepTimerChanged(fn func(active bool, minutesLeft int)) {
	c.lmu.Lock()
	c.listeners.sleep = append(c.listeners.sleep, fn)
	c.lmu.Unlock()
}

// OnQuitRequested registers fn for a sleep timer that was set to quit.
func (c *Controller) OnQuitRequested(fn func()) {
	c.lmu.Lock()
	c.listeners.quit = append(c.listeners.quit, fn)
	c.lmu.Unlock()
}

func (c *Controller) snapshotListeners() listeners {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	return c.listeners
}

func (c *Controller) emitVolume(v int) {
	for _, fn := range c.snapshotListeners().volume {
		fn(v)
	}
}

func (c *Controller) emitState() {
	for _, fn := range c.snapshotListeners().state {
		fn()
	}
}

func (c *Controller) emitStation() {
	for _, fn := range c.snapshotListeners().station {
		fn()
	}
}

func (c *Controller) emitMetadata(artist, track string) {
	for _, fn := range c.snapshotListeners().metadata {
		fn(artist, track)
	}
}

func (c *Controller) emitSleep(active bool, left int) {
	for _, fn := range c.snapshotListeners().sleep {
		fn(active, left)
	}
}

func (c *Controller) emitQuit() {
	for _, fn := range c.snapshotListeners().quit {
		fn()
	}
}
