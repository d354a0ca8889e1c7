package player

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// VLCBackend plays streams through libVLC. Every libVLC call is serialised
// behind one mutex.
type VLCBackend struct {
	vlcMu sync.Mutex
	p     *vlc.Player
	media *vlc.Media
	muted bool

	log          zerolog.Logger
	vlcMajor     int
	parseTimeout int // ms
}

// NewVLCBackend constructs a backend; call Init before anything else.
func NewVLCBackend(log zerolog.Logger) *VLCBackend {
	return &VLCBackend{log: log, parseTimeout: 4000}
}

func parseVlcMajor(ver string) int {
	ver = strings.TrimSpace(ver)
	if ver == "" {
		return 0
	}
	cut := ver
	if i := strings.IndexAny(ver, ". "); i >= 0 {
		cut = ver[:i]
	}
	m, _ := strconv.Atoi(cut)
	return m
}

// Init configures libVLC (plugin path, caching) and applies the initial
// volume and mute state.
func (b *VLCBackend) Init(volume int, muted bool) error {
	// a bundled plugins/ dir next to the executable wins over the system one
	if exe, err := os.Executable(); err == nil {
		plugins := filepath.Join(filepath.Dir(exe), "plugins")
		if st, err := os.Stat(plugins); err == nil && st.IsDir() {
			_ = os.Setenv("VLC_PLUGIN_PATH", plugins)
		}
	}

	args := []string{
		"--no-video",
		"--no-color",
		"--network-caching=1500",
		"--live-caching=1500",
		"--http-reconnect",
	}
	if isTraceLoggingEnabled() {
		args = append(args,
			"--verbose=2",
			"--file-logging",
			"--log-verbose=2",
			"--logfile=vlc.log",
		)
	}

	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if err := vlc.Init(args...); err != nil {
		return errors.Wrap(err, "libvlc init")
	}
	ver := vlc.Version().String()
	b.vlcMajor = parseVlcMajor(ver)
	b.log.Info().Str("version", ver).Msg("libvlc ready")

	p, err := vlc.NewPlayer()
	if err != nil {
		vlc.Release()
		return errors.Wrap(err, "new vlc player")
	}
	b.p = p
	_ = b.p.SetVolume(clamp(volume, 0, 100))
	if muted {
		b.p.ToggleMute()
		b.muted = true
	}
	return nil
}

// Load prepares media for url and starts parsing it in the background so
// metadata reads are safe later.
func (b *VLCBackend) Load(url string) error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return ErrNotInitialized
	}
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}

	m, err := vlc.NewMediaFromURL(strings.TrimSpace(url))
	if err != nil {
		return errors.Wrap(err, "new media from url")
	}
	_ = m.AddOptions(
		":metadata-network-access=1",
		":icy-metadata=1",
		":demux=any",
		":http-user-agent=TrayWave/1.0",
		":network-caching=1500",
		":live-caching=1500",
		":http-reconnect",
	)
	if err := b.p.SetMedia(m); err != nil {
		m.Release()
		return errors.Wrap(err, "set media")
	}
	b.media = m

	go func(mm *vlc.Media, timeout int) {
		_ = mm.ParseWithOptions(timeout, vlc.MediaParseNetwork, vlc.MediaFetchNetwork)
	}(m, b.parseTimeout)
	return nil
}

func (b *VLCBackend) Play() error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return ErrNotInitialized
	}
	return errors.Wrap(b.p.Play(), "play")
}

func (b *VLCBackend) Stop() error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return ErrNotInitialized
	}
	return errors.Wrap(b.p.Stop(), "stop")
}

func (b *VLCBackend) SetVolume(v int) error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return ErrNotInitialized
	}
	return errors.Wrap(b.p.SetVolume(clamp(v, 0, 100)), "set volume")
}

// SetMute makes libVLC reflect the requested mute state.
func (b *VLCBackend) SetMute(muted bool) error {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p == nil {
		return ErrNotInitialized
	}
	if muted != b.muted {
		b.p.ToggleMute()
		b.muted = muted
	}
	return nil
}

// NowPlaying reads the stream metadata libVLC parsed itself. VLC 4 builds are
// skipped since Meta strings are not reliable there.
func (b *VLCBackend) NowPlaying() (string, bool) {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.media == nil || b.vlcMajor >= 4 {
		return "", false
	}
	if status, _ := b.media.ParseStatus(); status != vlc.MediaParseDone {
		return "", false
	}
	now, _ := b.media.Meta(vlc.MediaNowPlaying)
	if now = strings.TrimSpace(now); now != "" {
		return now, true
	}
	title, _ := b.media.Meta(vlc.MediaTitle)
	artist, _ := b.media.Meta(vlc.MediaArtist)
	s := strings.Trim(strings.TrimSpace(artist+" - "+title), " -")
	return s, s != ""
}

// Release frees the player, the media and libVLC itself.
func (b *VLCBackend) Release() {
	b.vlcMu.Lock()
	defer b.vlcMu.Unlock()
	if b.p != nil {
		_ = b.p.Stop()
		b.p.Release()
		b.p = nil
	}
	if b.media != nil {
		b.media.Release()
		b.media = nil
	}
	vlc.Release()
}
