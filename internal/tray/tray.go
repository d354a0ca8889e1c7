// Package tray binds the playback controller and the station catalog to the
// fyne system tray: menu, icon and tooltip.
package tray

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/systray"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/edward-ap/traywave/internal/config"
	"github.com/edward-ap/traywave/internal/player"
	"github.com/edward-ap/traywave/internal/playlist"
	"github.com/edward-ap/traywave/internal/stations"
)

const (
	resolveTimeout = 10 * time.Second
	userAgent      = "TrayWave/1.0"
)

// surface is the part of desktop.App the tray draws on.
type surface interface {
	SetSystemTrayMenu(menu *fyne.Menu)
	SetSystemTrayIcon(icon fyne.Resource)
}

// App owns the fyne application and keeps the tray in sync with the
// controller, the catalog and the settings.
type App struct {
	fa         fyne.App
	tray       surface
	setTooltip func(string)
	client     *http.Client

	ctl     *player.Controller
	catalog *stations.Catalog
	cfg     *config.Config
	log     zerolog.Logger

	mu      sync.Mutex
	started bool
	icon    IconKind
	iconSet bool
	tooltip string
	// aliases maps a stream resolved from a playlist back to the catalog URL.
	aliases  map[string]string
	shutOnce sync.Once
}

// New creates the fyne application and attaches the tray to it.
func New(ctl *player.Controller, catalog *stations.Catalog, cfg *config.Config, log zerolog.Logger) (*App, error) {
	fa := app.NewWithID(config.AppID)
	desk, ok := fa.(desktop.App)
	if !ok {
		return nil, errors.New("system tray is not supported by this driver")
	}
	fa.SetIcon(Icon(IconIdle))

	a := newApp(desk, ctl, catalog, cfg, log)
	a.fa = fa
	fa.Lifecycle().SetOnStarted(func() {
		a.mu.Lock()
		a.started = true
		a.mu.Unlock()
		a.refresh()
	})
	return a, nil
}

func newApp(tray surface, ctl *player.Controller, catalog *stations.Catalog, cfg *config.Config, log zerolog.Logger) *App {
	a := &App{
		tray:       tray,
		setTooltip: systray.SetTooltip,
		client:     &http.Client{Timeout: resolveTimeout},
		aliases:    map[string]string{},
		ctl:        ctl,
		catalog:    catalog,
		cfg:        cfg,
		log:        log,
	}
	changed := func() { callOnMain(a.refresh) }
	ctl.OnStateChanged(changed)
	ctl.OnStationChanged(changed)
	ctl.OnVolumeChanged(func(int) { changed() })
	ctl.OnMetadataChanged(func(string, string) { changed() })
	ctl.OnSleepTimerChanged(func(bool, int) { changed() })
	ctl.OnQuitRequested(func() { callOnMain(a.Quit) })
	catalog.OnChanged(changed)
	a.refresh()
	return a
}

// Run blocks until the application quits, then releases the player.
func (a *App) Run() {
	a.fa.Run()
	a.shutdown()
}

// Quit stops playback, releases the backend and ends the fyne loop.
func (a *App) Quit() {
	a.shutdown()
	if a.fa != nil {
		a.fa.Quit()
	}
}

func (a *App) shutdown() {
	a.shutOnce.Do(func() {
		a.log.Info().Msg("quit")
		a.ctl.Close()
	})
}

// State collects what the tray currently shows.
func (a *App) State() State {
	set := a.cfg.Snapshot()
	artist, track := a.ctl.NowPlaying()
	active, left := a.ctl.SleepTimer()
	url := a.ctl.URL()
	a.mu.Lock()
	if orig, ok := a.aliases[url]; ok {
		url = orig
	}
	a.mu.Unlock()
	s := State{
		Station:      a.ctl.Station(),
		URL:          url,
		Artist:       artist,
		Track:        track,
		Playing:      a.ctl.IsPlaying(),
		Muted:        a.ctl.IsMuted(),
		Volume:       a.ctl.Volume(),
		ShowSongInfo: set.ShowSongInfo,
		SleepActive:  active,
		SleepLeft:    left,
		SleepQuit:    set.SleepQuit,
	}
	if last := set.LastStation; last != nil {
		s.LastName, s.LastURL = last.Name, last.URL
	}
	return s
}

func (a *App) refresh() {
	s := a.State()
	a.tray.SetSystemTrayMenu(BuildMenu(s, a.catalog.Snapshot(), a.actions()))

	kind := IconFor(s)
	tip := StatusText(s)

	a.mu.Lock()
	setIcon := !a.iconSet || a.icon != kind
	a.icon, a.iconSet = kind, true
	setTip := a.started && tip != a.tooltip
	if setTip {
		a.tooltip = tip
	}
	a.mu.Unlock()

	if setIcon {
		if res := Icon(kind); res != nil {
			a.tray.SetSystemTrayIcon(res)
		}
	}
	if setTip && a.setTooltip != nil {
		a.setTooltip(tip)
	}
}

func (a *App) actions() Actions {
	return Actions{
		Play:         a.play,
		Stop:         a.ctl.Stop,
		ToggleMute:   func() { a.ctl.ToggleMute() },
		ChangeVolume: a.ctl.ChangeVolume,
		SetSleep: func(minutes int) {
			a.ctl.SetSleepTimer(minutes, a.cfg.Snapshot().SleepQuit)
		},
		CancelSleep: a.ctl.CancelSleepTimer,
		ToggleSleepQuit: func() {
			a.cfg.SetSleepQuit(!a.cfg.Snapshot().SleepQuit)
			a.refresh()
		},
		ToggleSongInfo: func() {
			a.cfg.SetShowSongInfo(!a.cfg.Snapshot().ShowSongInfo)
			a.refresh()
		},
		ReloadStations: func() {
			if err := a.catalog.Refresh(); err != nil {
				a.log.Warn().Err(err).Str("path", a.catalog.Path()).Msg("reload stations")
			}
		},
		Quit: a.Quit,
	}
}

// play starts st. Playlist URLs are resolved to their first stream off the
// UI thread so libVLC and the metadata reader open the same URL.
func (a *App) play(st stations.Station) {
	if playlist.Detect("", st.URL, nil) == playlist.None {
		a.start(st, st.URL)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		target, err := playlist.Resolve(ctx, a.client, st.URL, userAgent)
		switch {
		case errors.Is(err, playlist.ErrNotPlaylist):
		case err != nil:
			a.log.Warn().Err(err).Str("url", st.URL).Msg("resolve playlist")
			target = st.URL
		default:
			a.log.Debug().Str("playlist", st.URL).Str("stream", target).Msg("playlist resolved")
		}
		if target != st.URL {
			a.mu.Lock()
			a.aliases[target] = st.URL
			a.mu.Unlock()
		}
		a.start(st, target)
	}()
}

func (a *App) start(st stations.Station, url string) {
	bitrate := ""
	if last := a.cfg.Snapshot().LastStation; last != nil && (last.URL == st.URL || last.URL == url) {
		bitrate = last.Bitrate
	}
	if err := a.ctl.Play(url, st.Name, bitrate); err != nil {
		a.log.Error().Err(err).Str("station", st.Name).Msg("play")
	}
}

// Resume plays the remembered station, if any, under its current catalog
// name.
func (a *App) Resume() {
	last := a.cfg.Snapshot().LastStation
	if last == nil || last.URL == "" {
		return
	}
	st := stations.Station{Name: last.Name, URL: last.URL}
	if _, found, ok := a.catalog.Find(last.URL); ok {
		st.Name = found.Name
	}
	a.play(st)
}
